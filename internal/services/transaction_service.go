// Package services orchestrates operations that touch more than one
// backend: the ledger store, the Sheets mirror and the alert queue.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finai/internal/core"
	"finai/internal/sms"
	"finai/internal/storage"
)

// TxMirror mirrors saved transactions to an external sheet.
type TxMirror interface {
	Append(ctx context.Context, tx core.Transaction) error
}

// AlertPublisher queues budget alert events for async delivery.
type AlertPublisher interface {
	PublishBudgetAlerts(ctx context.Context, ownerID int64, messages []string) error
}

// TransactionService wraps the store with best-effort side effects: a
// failed mirror or publish never fails the user's request.
type TransactionService struct {
	store  storage.Store
	mirror TxMirror
	alerts AlertPublisher
}

func NewTransactionService(store storage.Store, mirror TxMirror, alerts AlertPublisher) *TransactionService {
	return &TransactionService{
		store:  store,
		mirror: mirror,
		alerts: alerts,
	}
}

// Create saves a transaction and mirrors it when a mirror is configured.
func (s *TransactionService) Create(ctx context.Context, tx *core.Transaction) error {
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	if s.mirror != nil {
		if err := s.mirror.Append(ctx, *tx); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction",
				"id", tx.ID, "error", err)
			// transaction is saved locally, keep going
		}
	}

	return nil
}

// CreateFromCandidate persists a parsed SMS candidate. The category comes
// from the caller's confirmation step and falls back to the generic one.
func (s *TransactionService) CreateFromCandidate(ctx context.Context, ownerID int64, c *sms.Candidate, categorySlug string) (*core.Transaction, error) {
	if categorySlug == "" {
		categorySlug = core.DefaultCategorySlug
	}

	var categoryID *int64
	if cat, err := s.store.CategoryBySlug(ctx, categorySlug); err == nil {
		categoryID = &cat.ID
	}

	date := time.Now().UTC()
	if c.Date != "" {
		if d, err := time.Parse("2006-01-02", c.Date); err == nil {
			date = d
		}
	}

	tx := &core.Transaction{
		OwnerID:     ownerID,
		Amount:      core.Money{Units: c.Amount},
		Kind:        core.TxKind(c.Kind),
		Description: c.Description,
		CategoryID:  categoryID,
		Date:        core.Date{Time: date},
		Source:      core.TxSource(c.Source),
		RawSMS:      c.RawSMS,
	}
	if err := s.Create(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// PublishAlerts queues alert messages for an owner, best effort.
func (s *TransactionService) PublishAlerts(ctx context.Context, ownerID int64, messages []string) {
	if s.alerts == nil || len(messages) == 0 {
		return
	}
	if err := s.alerts.PublishBudgetAlerts(ctx, ownerID, messages); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget alerts",
			"owner", ownerID, "error", err)
	}
}
