// Package storage persists the ledger and its satellite data. The SQLite
// implementation in this package is the default backend; postgres offers
// the same contract for deployments with a real server.
package storage

import (
	"context"
	"time"

	"finai/internal/core"
)

// TxFilter narrows a transaction listing. Zero values mean "no filter".
type TxFilter struct {
	Kind         core.TxKind
	CategorySlug string
	From         time.Time
	To           time.Time
	Limit        int
}

// PushSubscription is a stored web-push endpoint for one owner.
type PushSubscription struct {
	ID        int64
	OwnerID   int64
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent string
	CreatedAt time.Time
}

// Store is the full persistence contract. Every owner-scoped read returns
// core.ErrNotFound for rows belonging to other owners; duplicate inserts
// against a unique constraint surface core.ErrDuplicate.
type Store interface {
	// Transactions
	CreateTransaction(ctx context.Context, tx *core.Transaction) error
	GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *core.Transaction) error
	DeleteTransaction(ctx context.Context, ownerID, id int64) error
	ListTransactions(ctx context.Context, ownerID int64, filter TxFilter) ([]core.Transaction, error)

	// Aggregations backing the analytics engine
	SumByKind(ctx context.Context, ownerID int64, from, to time.Time) (core.KindTotals, error)
	ExpenseTotalsByCategory(ctx context.Context, ownerID int64, from, to time.Time) ([]core.CategoryTotal, error)

	// Categories (reference data seeded by migrations)
	ListCategories(ctx context.Context) ([]core.Category, error)
	CategoryBySlug(ctx context.Context, slug string) (core.Category, error)

	// Budget limits
	ListBudgetLimits(ctx context.Context, ownerID int64) ([]core.BudgetLimit, error)
	UpsertBudgetLimit(ctx context.Context, ownerID, categoryID, amount int64) error
	DeleteBudgetLimit(ctx context.Context, ownerID, limitID int64) error

	// Patrimoine
	CreatePatrimoineEntry(ctx context.Context, entry *core.PatrimoineEntry) error
	ListPatrimoineEntries(ctx context.Context, ownerID int64) ([]core.PatrimoineEntry, error)
	DeletePatrimoineEntry(ctx context.Context, ownerID, id int64) error
	PatrimoineTotals(ctx context.Context, ownerID int64) (assets, liabilities int64, err error)
	PatrimoineByCategory(ctx context.Context, ownerID int64, kind core.PatrimoineKind) ([]core.CategoryAmount, error)

	// Profiles
	GetProfile(ctx context.Context, ownerID int64) (core.Profile, error)
	UpsertProfile(ctx context.Context, ownerID int64, profile core.Profile) error

	// Advisor chat and weekly report cache
	RecentChatMessages(ctx context.Context, ownerID int64, limit int) ([]core.ChatMessage, error)
	AddChatMessage(ctx context.Context, ownerID int64, role, content string) error
	WeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time) (string, error)
	SaveWeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time, content string) error
	DeleteWeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time) error

	// Web push subscriptions
	UpsertPushSubscription(ctx context.Context, ownerID int64, endpoint, p256dh, auth, userAgent string) error
	ListPushSubscriptions(ctx context.Context, ownerID int64) ([]PushSubscription, error)

	Close() error
}
