// Package postgres implements storage.Store on PostgreSQL via pgx. It is
// the backend for multi-instance deployments; the embedded SQLite store
// remains the default.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"finai/internal/core"
	"finai/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New connects a pool and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return core.ErrDuplicate
	}
	return err
}

// ── Transactions ──

func (s *Store) CreateTransaction(ctx context.Context, tx *core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx, `
		INSERT INTO transactions (owner_id, amount, kind, description, category_id, tx_date, source, raw_sms, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		tx.OwnerID, tx.Amount.Units, string(tx.Kind), tx.Description, tx.CategoryID,
		tx.Date.Time, string(tx.Source), tx.RawSMS, tx.Notes, now).Scan(&tx.ID)
	if err != nil {
		return fmt.Errorf("create transaction: %w", mapErr(err))
	}
	tx.CreatedAt = now
	return nil
}

const txColumns = `t.id, t.owner_id, t.amount, t.kind, t.description, t.category_id, t.tx_date,
	t.source, t.raw_sms, t.notes, t.created_at,
	c.id, c.name, c.slug, c.icon, c.color_class`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx       core.Transaction
		kind     string
		source   string
		txDate   time.Time
		catID    *int64
		catName  *string
		catSlug  *string
		catIcon  *string
		catColor *string
	)
	err := row.Scan(&tx.ID, &tx.OwnerID, &tx.Amount.Units, &kind, &tx.Description, &tx.CategoryID,
		&txDate, &source, &tx.RawSMS, &tx.Notes, &tx.CreatedAt,
		&catID, &catName, &catSlug, &catIcon, &catColor)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.TxKind(kind)
	tx.Source = core.TxSource(source)
	tx.Date = core.Date{Time: txDate}
	if catID != nil {
		tx.Category = &core.Category{ID: *catID}
		if catName != nil {
			tx.Category.Name = *catName
		}
		if catSlug != nil {
			tx.Category.Slug = *catSlug
		}
		if catIcon != nil {
			tx.Category.Icon = *catIcon
		}
		if catColor != nil {
			tx.Category.Color = *catColor
		}
	}
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.id = $1 AND t.owner_id = $2`, id, ownerID)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, mapErr(err))
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions
		SET amount = $1, kind = $2, description = $3, category_id = $4, tx_date = $5, notes = $6
		WHERE id = $7 AND owner_id = $8`,
		tx.Amount.Units, string(tx.Kind), tx.Description, tx.CategoryID, tx.Date.Time, tx.Notes,
		tx.ID, tx.OwnerID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d: %w", tx.ID, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, ownerID, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, ownerID int64, filter storage.TxFilter) ([]core.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.owner_id = $1`
	args := []any{ownerID}

	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(` AND t.kind = $%d`, len(args))
	}
	if filter.CategorySlug != "" {
		args = append(args, filter.CategorySlug)
		query += fmt.Sprintf(` AND c.slug = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(` AND t.tx_date >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(` AND t.tx_date <= $%d`, len(args))
	}
	query += ` ORDER BY t.tx_date DESC, t.created_at DESC, t.id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Store) SumByKind(ctx context.Context, ownerID int64, from, to time.Time) (core.KindTotals, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, COALESCE(SUM(amount), 0), COUNT(*)
		FROM transactions
		WHERE owner_id = $1 AND tx_date >= $2 AND tx_date <= $3
		GROUP BY kind`, ownerID, from, to)
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

func (s *Store) ExpenseTotalsByCategory(ctx context.Context, ownerID int64, from, to time.Time) ([]core.CategoryTotal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(t.category_id, 0),
		       COALESCE(c.name, ''), COALESCE(c.slug, ''), COALESCE(c.icon, ''), COALESCE(c.color_class, ''),
		       SUM(t.amount)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.owner_id = $1 AND t.kind = 'expense' AND t.tx_date >= $2 AND t.tx_date <= $3
		GROUP BY COALESCE(t.category_id, 0), c.name, c.slug, c.icon, c.color_class
		ORDER BY SUM(t.amount) DESC, COALESCE(t.category_id, 0) ASC`, ownerID, from, to)
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

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx,
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

func (s *Store) CategoryBySlug(ctx context.Context, slug string) (core.Category, error) {
	var c core.Category
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, icon, color_class FROM categories WHERE slug = $1`, slug).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Icon, &c.Color)
	if err != nil {
		return core.Category{}, fmt.Errorf("category %q: %w", slug, mapErr(err))
	}
	return c, nil
}

// ── Budget limits ──

func (s *Store) ListBudgetLimits(ctx context.Context, ownerID int64) ([]core.BudgetLimit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.owner_id, b.amount, c.id, c.name, c.slug, c.icon, c.color_class
		FROM budget_limits b
		JOIN categories c ON c.id = b.category_id
		WHERE b.owner_id = $1
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

func (s *Store) UpsertBudgetLimit(ctx context.Context, ownerID, categoryID, amount int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO budget_limits (owner_id, category_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, category_id) DO UPDATE SET amount = EXCLUDED.amount`,
		ownerID, categoryID, amount)
	if err != nil {
		return fmt.Errorf("upsert budget limit (owner=%d, category=%d): %w", ownerID, categoryID, mapErr(err))
	}
	return nil
}

func (s *Store) DeleteBudgetLimit(ctx context.Context, ownerID, limitID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM budget_limits WHERE id = $1 AND owner_id = $2`, limitID, ownerID)
	if err != nil {
		return fmt.Errorf("delete budget limit %d: %w", limitID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("budget limit %d: %w", limitID, core.ErrNotFound)
	}
	return nil
}

// ── Patrimoine ──

func (s *Store) CreatePatrimoineEntry(ctx context.Context, entry *core.PatrimoineEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx, `
		INSERT INTO patrimoine_entries (owner_id, kind, category, label, value, entry_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		entry.OwnerID, string(entry.Kind), entry.Category, entry.Label,
		entry.Value.Units, entry.Date.Time, entry.Notes, now).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("create patrimoine entry: %w", mapErr(err))
	}
	entry.CreatedAt = now
	return nil
}

func (s *Store) ListPatrimoineEntries(ctx context.Context, ownerID int64) ([]core.PatrimoineEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, kind, category, label, value, entry_date, notes, created_at
		FROM patrimoine_entries
		WHERE owner_id = $1
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
			date time.Time
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &kind, &e.Category, &e.Label,
			&e.Value.Units, &date, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan patrimoine entry: %w", err)
		}
		e.Kind = core.PatrimoineKind(kind)
		e.Date = core.Date{Time: date}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) DeletePatrimoineEntry(ctx context.Context, ownerID, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM patrimoine_entries WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete patrimoine entry %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patrimoine entry %d: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) PatrimoineTotals(ctx context.Context, ownerID int64) (int64, int64, error) {
	var assets, liabilities int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'actif' THEN value ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN kind = 'passif' THEN value ELSE 0 END), 0)
		FROM patrimoine_entries
		WHERE owner_id = $1`, ownerID).Scan(&assets, &liabilities)
	if err != nil {
		return 0, 0, fmt.Errorf("patrimoine totals: %w", err)
	}
	return assets, liabilities, nil
}

func (s *Store) PatrimoineByCategory(ctx context.Context, ownerID int64, kind core.PatrimoineKind) ([]core.CategoryAmount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, SUM(value)
		FROM patrimoine_entries
		WHERE owner_id = $1 AND kind = $2
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

func (s *Store) GetProfile(ctx context.Context, ownerID int64) (core.Profile, error) {
	var p core.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT name, city, country, profession FROM profiles WHERE owner_id = $1`, ownerID).
		Scan(&p.Name, &p.City, &p.Country, &p.Profession)
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile (owner=%d): %w", ownerID, mapErr(err))
	}
	return p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, ownerID int64, profile core.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (owner_id, name, city, country, profession)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id) DO UPDATE SET
			name = EXCLUDED.name, city = EXCLUDED.city,
			country = EXCLUDED.country, profession = EXCLUDED.profession`,
		ownerID, profile.Name, profile.City, profile.Country, profile.Profession)
	if err != nil {
		return fmt.Errorf("upsert profile (owner=%d): %w", ownerID, err)
	}
	return nil
}

// ── Advisor chat and report cache ──

func (s *Store) RecentChatMessages(ctx context.Context, ownerID int64, limit int) ([]core.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, role, content, created_at
		FROM chat_messages
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, ownerID, limit)
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

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Store) AddChatMessage(ctx context.Context, ownerID int64, role, content string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (owner_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)`, ownerID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add chat message: %w", err)
	}
	return nil
}

func (s *Store) WeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time) (string, error) {
	var content string
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM ai_reports WHERE owner_id = $1 AND week_start = $2`,
		ownerID, weekStart).Scan(&content)
	if err != nil {
		return "", fmt.Errorf("weekly report (owner=%d): %w", ownerID, mapErr(err))
	}
	return content, nil
}

func (s *Store) SaveWeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time, content string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ai_reports (owner_id, week_start, content, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, week_start) DO UPDATE SET
			content = EXCLUDED.content, created_at = EXCLUDED.created_at`,
		ownerID, weekStart, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save weekly report (owner=%d): %w", ownerID, err)
	}
	return nil
}

func (s *Store) DeleteWeeklyReport(ctx context.Context, ownerID int64, weekStart time.Time) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM ai_reports WHERE owner_id = $1 AND week_start = $2`, ownerID, weekStart)
	if err != nil {
		return fmt.Errorf("delete weekly report (owner=%d): %w", ownerID, err)
	}
	return nil
}

// ── Push subscriptions ──

func (s *Store) UpsertPushSubscription(ctx context.Context, ownerID int64, endpoint, p256dh, auth, userAgent string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO push_subscriptions (owner_id, endpoint, p256dh, auth, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, endpoint) DO UPDATE SET
			p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth, user_agent = EXCLUDED.user_agent`,
		ownerID, endpoint, p256dh, auth, userAgent, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert push subscription (owner=%d): %w", ownerID, err)
	}
	return nil
}

func (s *Store) ListPushSubscriptions(ctx context.Context, ownerID int64) ([]storage.PushSubscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, endpoint, p256dh, auth, user_agent, created_at
		FROM push_subscriptions
		WHERE owner_id = $1
		ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []storage.PushSubscription
	for rows.Next() {
		var sub storage.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.OwnerID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.UserAgent, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
