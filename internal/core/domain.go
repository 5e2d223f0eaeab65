package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindExpense        TxKind = "expense"
	KindIncome         TxKind = "income"
	KindPlannedExpense TxKind = "planned_expense"
	KindPlannedIncome  TxKind = "planned_income"
)

const (
	SourceManual TxSource = "manual"
	SourceSMS    TxSource = "sms"
	SourceAI     TxSource = "ai"
)

const (
	PatrimoineAsset     PatrimoineKind = "actif"
	PatrimoineLiability PatrimoineKind = "passif"
)

// Display metadata used when a transaction has no category.
const (
	DefaultCategoryName  = "Divers"
	DefaultCategorySlug  = "divers"
	DefaultCategoryIcon  = "fa-circle-dot"
	DefaultCategoryColor = "ci-divers"
)

type (
	TxKind         string
	TxSource       string
	PatrimoineKind string

	Date struct {
		time.Time
	}

	// Category is immutable reference data seeded by migrations.
	Category struct {
		ID    int64
		Name  string
		Slug  string
		Icon  string
		Color string
	}

	// Transaction is a single ledger entry. Amount is always non-negative;
	// the sign is derived from Kind, never stored.
	Transaction struct {
		ID          int64
		OwnerID     int64
		Amount      Money
		Kind        TxKind
		Description string
		CategoryID  *int64
		Category    *Category
		Date        Date
		Source      TxSource
		RawSMS      string
		Notes       string
		CreatedAt   time.Time
	}

	// BudgetLimit caps monthly spend for one category. At most one row
	// exists per (owner, category); the store enforces uniqueness.
	BudgetLimit struct {
		ID       int64
		OwnerID  int64
		Category Category
		Amount   Money
	}

	// PatrimoineEntry is one net-worth line (asset or liability).
	PatrimoineEntry struct {
		ID        int64
		OwnerID   int64
		Kind      PatrimoineKind
		Category  string
		Label     string
		Value     Money
		Date      Date
		Notes     string
		CreatedAt time.Time
	}

	// Profile carries the user fields embedded in AI prompts.
	Profile struct {
		Name       string
		City       string
		Country    string
		Profession string
	}

	// ChatMessage is one turn of the advisor conversation, persisted so
	// follow-up questions keep their context.
	ChatMessage struct {
		ID        int64
		OwnerID   int64
		Role      string
		Content   string
		CreatedAt time.Time
	}
)

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInvalidSource    = errors.New("invalid transaction source")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyLabel       = errors.New("empty label")
	ErrInvalidDate      = errors.New("invalid date")
)

func (k TxKind) Valid() bool {
	switch k {
	case KindExpense, KindIncome, KindPlannedExpense, KindPlannedIncome:
		return true
	}
	return false
}

// IsExpense reports whether the kind debits the ledger.
func (k TxKind) IsExpense() bool {
	return k == KindExpense || k == KindPlannedExpense
}

// IsPlanned reports whether the kind is a forecast rather than a real movement.
func (k TxKind) IsPlanned() bool {
	return k == KindPlannedExpense || k == KindPlannedIncome
}

// Label returns the French display label, as used by the CSV export.
func (k TxKind) Label() string {
	switch k {
	case KindExpense:
		return "Dépense"
	case KindIncome:
		return "Revenu"
	case KindPlannedExpense:
		return "Dépense planifiée"
	case KindPlannedIncome:
		return "Revenu attendu"
	}
	return string(k)
}

func (s TxSource) Valid() bool {
	switch s {
	case SourceManual, SourceSMS, SourceAI:
		return true
	}
	return false
}

func (s TxSource) Label() string {
	switch s {
	case SourceManual:
		return "Saisie manuelle"
	case SourceSMS:
		return "SMS Mobile Money"
	case SourceAI:
		return "Extrait par IA"
	}
	return string(s)
}

func (k PatrimoineKind) Valid() bool {
	return k == PatrimoineAsset || k == PatrimoineLiability
}

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ISO renders the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// SignedAmount returns the amount with the sign implied by the kind.
func (t Transaction) SignedAmount() int64 {
	if t.Kind.IsExpense() {
		return -t.Amount.Units
	}
	return t.Amount.Units
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if !t.Source.Valid() {
		return ErrInvalidSource
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 300 {
		return errors.New("description too long (max 300 characters)")
	}
	return nil
}

func (e PatrimoineEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := e.Value.Validate(); err != nil {
		return err
	}
	if !e.Kind.Valid() {
		return errors.New("invalid patrimoine kind")
	}
	if len(strings.TrimSpace(e.Label)) == 0 {
		return ErrEmptyLabel
	}
	if len(e.Label) > 200 {
		return errors.New("label too long (max 200 characters)")
	}
	return nil
}

// DisplayName resolves the category name for a transaction, falling back
// to the generic bucket when uncategorized.
func (t Transaction) DisplayName() string {
	if t.Category != nil && t.Category.Name != "" {
		return t.Category.Name
	}
	return DefaultCategoryName
}
