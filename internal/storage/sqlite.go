package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finai/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them. WAL
	// lets readers proceed while a write is in flight, and the busy
	// timeout makes a contended writer wait instead of failing with
	// SQLITE_BUSY under concurrent handlers.
	dsn := "file:" + dbPath +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// mapErr translates driver errors to the package sentinels.
func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return core.ErrDuplicate
	}
	return err
}

// ── Transactions ──

func (s *SQLiteStore) CreateTransaction(ctx context.Context, tx *core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (owner_id, amount, kind, description, category_id, tx_date, source, raw_sms, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.OwnerID, tx.Amount.Units, string(tx.Kind), tx.Description, tx.CategoryID,
		tx.Date.ISO(), string(tx.Source), tx.RawSMS, tx.Notes, now)
	if err != nil {
		return fmt.Errorf("create transaction: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create transaction id: %w", err)
	}
	tx.ID = id
	tx.CreatedAt = now

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"owner", tx.OwnerID,
		"kind", tx.Kind,
		"amount", tx.Amount.Units,
		"source", tx.Source)
	return nil
}

const txColumns = `t.id, t.owner_id, t.amount, t.kind, t.description, t.category_id, t.tx_date,
	t.source, t.raw_sms, t.notes, t.created_at,
	c.id, c.name, c.slug, c.icon, c.color_class`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx        core.Transaction
		kind      string
		source    string
		txDate    string
		createdAt time.Time
		catID     sql.NullInt64
		catName   sql.NullString
		catSlug   sql.NullString
		catIcon   sql.NullString
		catColor  sql.NullString
	)
	err := row.Scan(&tx.ID, &tx.OwnerID, &tx.Amount.Units, &kind, &tx.Description, &tx.CategoryID,
		&txDate, &source, &tx.RawSMS, &tx.Notes, &createdAt,
		&catID, &catName, &catSlug, &catIcon, &catColor)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.TxKind(kind)
	tx.Source = core.TxSource(source)
	tx.CreatedAt = createdAt
	if d, err := time.Parse(dateLayout, txDate); err == nil {
		tx.Date = core.Date{Time: d}
	}
	if catID.Valid {
		tx.Category = &core.Category{
			ID:    catID.Int64,
			Name:  catName.String,
			Slug:  catSlug.String,
			Icon:  catIcon.String,
			Color: catColor.String,
		}
	}
	return tx, nil
}

func (s *SQLiteStore) GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+txColumns+`
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.id = ? AND t.owner_id = ?`, id, ownerID)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, mapErr(err))
	}
	return tx, nil
}

func (s *SQLiteStore) UpdateTransaction(ctx context.Context, tx *core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET amount = ?, kind = ?, description = ?, category_id = ?, tx_date = ?, notes = ?
		WHERE id = ? AND owner_id = ?`,
		tx.Amount.Units, string(tx.Kind), tx.Description, tx.CategoryID, tx.Date.ISO(), tx.Notes,
		tx.ID, tx.OwnerID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, mapErr(err))
	}
	return ensureAffected(res, tx.ID)
}

func (s *SQLiteStore) DeleteTransaction(ctx context.Context, ownerID, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return ensureAffected(res, id)
}

func ensureAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, ownerID int64, filter TxFilter) ([]core.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.owner_id = ?`
	args := []any{ownerID}

	if filter.Kind != "" {
		query += ` AND t.kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.CategorySlug != "" {
		query += ` AND c.slug = ?`
		args = append(args, filter.CategorySlug)
	}
	if !filter.From.IsZero() {
		query += ` AND t.tx_date >= ?`
		args = append(args, filter.From.Format(dateLayout))
	}
	if !filter.To.IsZero() {
		query += ` AND t.tx_date <= ?`
		args = append(args, filter.To.Format(dateLayout))
	}
	query += ` ORDER BY t.tx_date DESC, t.created_at DESC, t.id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// ── Aggregations ──

func (s *SQLiteStore) SumByKind(ctx context.Context, ownerID int64, from, to time.Time) (core.KindTotals, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COALESCE(SUM(amount), 0), COUNT(*)
		FROM transactions
		WHERE owner_id = ? AND tx_date >= ? AND tx_date <= ?
		GROUP BY kind`,
		ownerID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return core.KindTotals{}, fmt.Errorf("sum by kind: %w", err)
	}
	defer rows.Close()

	var totals core.KindTotals
	for rows.Next() {
		var (
			kind  string
			sum   int64
			count int
		)
		if err := rows.Scan(&kind, &sum, &count); err != nil {
			return core.KindTotals{}, fmt.Errorf("scan kind total: %w", err)
		}
		switch core.TxKind(kind) {
		case core.KindIncome:
			totals.Income = sum
			totals.Count += count
		case core.KindExpense:
			totals.Expense = sum
			totals.Count += count
		case core.KindPlannedIncome:
			totals.PlannedIncome = sum
		case core.KindPlannedExpense:
			totals.PlannedExpense = sum
		}
	}
	return totals, rows.Err()
}

func (s *SQLiteStore) ExpenseTotalsByCategory(ctx context.Context, ownerID int64, from, to time.Time) ([]core.CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(t.category_id, 0),
		       COALESCE(c.name, ''), COALESCE(c.slug, ''), COALESCE(c.icon, ''), COALESCE(c.color_class, ''),
		       SUM(t.amount)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.owner_id = ? AND t.kind = 'expense' AND t.tx_date >= ? AND t.tx_date <= ?
		GROUP BY COALESCE(t.category_id, 0)
		ORDER BY SUM(t.amount) DESC, COALESCE(t.category_id, 0) ASC`,
		ownerID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("expense totals by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Slug, &ct.Icon, &ct.Color, &ct.Total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// ── Categories ──

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, icon, color_class FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *SQLiteStore) CategoryBySlug(ctx context.Context, slug string) (core.Category, error) {
	var c core.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, icon, color_class FROM categories WHERE slug = ?`, slug).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Color)
	if err != nil {
		return core.Category{}, fmt.Errorf("category %q: %w", slug, mapErr(err))
	}
	return c, nil
}

// ── Budget limits ──

func (s *SQLiteStore) ListBudgetLimits(ctx context.Context, ownerID int64) ([]core.BudgetLimit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.owner_id, b.amount, c.id, c.name, c.slug, c.icon, c.color_class
		FROM budget_limits b
		JOIN categories c ON c.id = b.category_id
		WHERE b.owner_id = ?
		ORDER BY c.name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list budget limits: %w", err)
	}
	defer rows.Close()

	var limits []core.BudgetLimit
	for rows.Next() {
		var lim core.BudgetLimit
		if err := rows.Scan(&lim.ID, &lim.OwnerID, &lim.Amount.Units,
			&lim.Category.ID, &lim.Category.Name, &lim.Category.Slug,
			&lim.Category.Icon, &lim.Category.Color); err != nil {
			return nil, fmt.Errorf("scan budget limit: %w", err)
		}
		limits = append(limits, lim)
	}
	return limits, rows.Err()
}

func (s *SQLiteStore) UpsertBudgetLimit(ctx context.Context, ownerID, categoryID, amount int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_limits (owner_id, category_id, amount)
		VALUES (?, ?, ?)
		ON CONFLICT (owner_id, category_id) DO UPDATE SET amount = excluded.amount`,
		ownerID, categoryID, amount)
	if err != nil {
		return fmt.Errorf("upsert budget limit (owner=%d, category=%d): %w", ownerID, categoryID, mapErr(err))
	}
	return nil
}

func (s *SQLiteStore) DeleteBudgetLimit(ctx context.Context, ownerID, limitID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM budget_limits WHERE id = ? AND owner_id = ?`, limitID, ownerID)
	if err != nil {
		return fmt.Errorf("delete budget limit %d: %w", limitID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("budget limit %d: %w", limitID, core.ErrNotFound)
	}
	return nil
}

// ── Patrimoine ──

func (s *SQLiteStore) CreatePatrimoineEntry(ctx context.Context, entry *core.PatrimoineEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO patrimoine_entries (owner_id, kind, category, label, value, entry_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OwnerID, string(entry.Kind), entry.Category, entry.Label,
		entry.Value.Units, entry.Date.ISO(), entry.Notes, now)
	if err != nil {
		return fmt.Errorf("create patrimoine entry: %w", mapErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create patrimoine entry id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}

func (s *SQLiteStore) ListPatrimoineEntries(ctx context.Context, ownerID int64) ([]core.PatrimoineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, category, label, value, entry_date, notes, created_at
		FROM patrimoine_entries
		WHERE owner_id = ?
		ORDER BY entry_date DESC, created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list patrimoine entries: %w", err)
	}
	defer rows.Close()

	var entries []core.PatrimoineEntry
	for rows.Next() {
		var (
			e    core.PatrimoineEntry
			kind string
			date string
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &kind, &e.Category, &e.Label,
			&e.Value.Units, &date, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan patrimoine entry: %w", err)
		}
		e.Kind = core.PatrimoineKind(kind)
		if d, err := time.Parse(dateLayout, date); err == nil {
			e.Date = core.Date{Time: d}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) DeletePatrimoineEntry(ctx context.Context, ownerID, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM patrimoine_entries WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete patrimoine entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("patrimoine entry %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) PatrimoineTotals(ctx context.Context, ownerID int64) (int64, int64, error) {
	var assets, liabilities int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'actif' THEN value ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN kind = 'passif' THEN value ELSE 0 END), 0)
		FROM patrimoine_entries
		WHERE owner_id = ?`, ownerID).Scan(&assets, &liabilities)
	if err != nil {
		return 0, 0, fmt.Errorf("patrimoine totals: %w", err)
	}
	return assets, liabilities, nil
}

func (s *SQLiteStore) PatrimoineByCategory(ctx context.Context, ownerID int64, kind core.PatrimoineKind) ([]core.CategoryAmount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, SUM(value)
		FROM patrimoine_entries
		WHERE owner_id = ? AND kind = ?
		GROUP BY category
		ORDER BY SUM(value) DESC, category ASC`, ownerID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("patrimoine by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Category, &ca.Total); err != nil {
			return nil, fmt.Errorf("scan patrimoine category: %w", err)
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}

// ── Profiles ──

func (s *SQLiteStore) GetProfile(ctx context.Context, ownerID int64) (core.Profile, error) {
	var p core.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT name, city, country, profession FROM profiles WHERE owner_id = ?`, ownerID).
		Scan(&p.Name, &p.City, &p.Country, &p.Profession)
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile (owner=%d): %w", ownerID, mapErr(err))
	}
	return p, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, ownerID int64, profile core.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (owner_id, name, city, country, profession)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			name = excluded.name, city = excluded.city,
			country = excluded.country, profession = excluded.profession`,
		ownerID, profile.Name, profile.City, profile.Country, profile.Profession)
	if err != nil {
		return fmt.Errorf("upsert profile (owner=%d): %w", ownerID, err)
	}
	return nil
}

// ── Advisor chat and report cache ──

func (s *SQLiteStore) RecentChatMessages(ctx context.Context, ownerID int64, limit int) ([]core.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, role, content, created_at
		FROM chat_messages
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []core.ChatMessage
	for rows.Next() {
		var m core.ChatMessage
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// oldest first for prompt assembly
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) AddChatMessage(ctx context.Context, ownerID int64, role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (owner_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`, ownerID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add chat message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) WeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM ai_reports WHERE owner_id = ? AND week_start = ?`,
		ownerID, weekStart.Format(dateLayout)).Scan(&content)
	if err != nil {
		return "", fmt.Errorf("weekly report (owner=%d): %w", ownerID, mapErr(err))
	}
	return content, nil
}

func (s *SQLiteStore) SaveWeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_reports (owner_id, week_start, content, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, week_start) DO UPDATE SET
			content = excluded.content, created_at = excluded.created_at`,
		ownerID, weekStart.Format(dateLayout), content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save weekly report (owner=%d): %w", ownerID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteWeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ai_reports WHERE owner_id = ? AND week_start = ?`,
		ownerID, weekStart.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("delete weekly report (owner=%d): %w", ownerID, err)
	}
	return nil
}

// ── Push subscriptions ──

func (s *SQLiteStore) UpsertPushSubscription(ctx context.Context, ownerID int64, endpoint, p256dh, auth, userAgent string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (owner_id, endpoint, p256dh, auth, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, endpoint) DO UPDATE SET
			p256dh = excluded.p256dh, auth = excluded.auth, user_agent = excluded.user_agent`,
		ownerID, endpoint, p256dh, auth, userAgent, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert push subscription (owner=%d): %w", ownerID, err)
	}
	return nil
}

func (s *SQLiteStore) ListPushSubscriptions(ctx context.Context, ownerID int64) ([]PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, endpoint, p256dh, auth, user_agent, created_at
		FROM push_subscriptions
		WHERE owner_id = ?
		ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []PushSubscription
	for rows.Next() {
		var sub PushSubscription
		if err := rows.Scan(&sub.ID, &sub.OwnerID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.UserAgent, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
