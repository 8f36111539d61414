// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Foreign keys are enabled per connection, so set them in the DSN.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSplit persists a split, replacing an existing split with the same ID
// and owner.
func (s *SQLiteStore) SaveSplit(ctx context.Context, split *models.SavedSplit) error {
	if split.Owner == "" {
		return errors.New("split owner is required")
	}
	if split.ID == "" {
		split.ID = uuid.New().String()
	}
	if split.Timestamp == 0 {
		split.Timestamp = s.now().Unix()
	}
	if split.Title == "" {
		split.Title = generateTitle(split.Participants, time.Unix(split.Timestamp, 0))
	}
	if split.DistributionMethod == "" {
		split.DistributionMethod = models.Proportional
	}
	split.ItemCount = len(split.Receipt.Items)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingOwner string
	err = tx.QueryRowContext(ctx, "SELECT owner FROM splits WHERE id = ?", split.ID).Scan(&existingOwner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to check split owner: %w", err)
	case existingOwner != split.Owner:
		return fmt.Errorf("%w: %s", storage.ErrNotOwner, split.ID)
	}

	// Child rows go with the parent through ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, "DELETE FROM splits WHERE id = ?", split.ID); err != nil {
		return fmt.Errorf("failed to replace split: %w", err)
	}

	r := split.Receipt
	_, err = tx.ExecContext(ctx,
		`INSERT INTO splits (id, owner, title, created_at, currency, subtotal, tax, tip, total, distribution_method, item_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		split.ID, split.Owner, split.Title, split.Timestamp, r.Currency, r.Subtotal, r.Tax, r.Tip, r.Total,
		string(split.DistributionMethod), split.ItemCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert split: %w", err)
	}

	for i, item := range r.Items {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO split_items (split_id, item_id, position, description, price, quantity) VALUES (?, ?, ?, ?, ?, ?)",
			split.ID, item.ID, i, item.Description, item.Price, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	for itemID, names := range split.Assignments {
		seen := make(map[string]bool, len(names))
		for i, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			_, err = tx.ExecContext(ctx,
				"INSERT INTO item_assignments (split_id, item_id, position, participant) VALUES (?, ?, ?, ?)",
				split.ID, itemID, i, name,
			)
			if err != nil {
				return fmt.Errorf("failed to insert item assignment: %w", err)
			}
		}
	}

	for itemID, amounts := range split.ManualSplits {
		for name, amount := range amounts {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO manual_splits (split_id, item_id, participant, amount) VALUES (?, ?, ?, ?)",
				split.ID, itemID, name, amount,
			)
			if err != nil {
				return fmt.Errorf("failed to insert manual split: %w", err)
			}
		}
	}

	for itemID, o := range split.Overrides {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO item_overrides (split_id, item_id, tax, tip) VALUES (?, ?, ?, ?)",
			split.ID, itemID, nullFloat(o.Tax), nullFloat(o.Tip),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item override: %w", err)
		}
	}

	for i, name := range split.Participants {
		_, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO participants (split_id, position, name) VALUES (?, ?, ?)",
			split.ID, i, name,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	for payer, amount := range split.Payments {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO payments (split_id, payer, amount) VALUES (?, ?, ?)",
			split.ID, payer, amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSplit retrieves a split by ID with its receipt, assignments, manual
// splits, overrides, participants and payments.
func (s *SQLiteStore) GetSplit(ctx context.Context, owner, splitID string) (*models.SavedSplit, error) {
	split := &models.SavedSplit{}
	var method string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, title, created_at, currency, subtotal, tax, tip, total, distribution_method, item_count
		 FROM splits WHERE id = ? AND owner = ?`,
		splitID, owner,
	).Scan(&split.ID, &split.Owner, &split.Title, &split.Timestamp, &split.Receipt.Currency,
		&split.Receipt.Subtotal, &split.Receipt.Tax, &split.Receipt.Tip, &split.Receipt.Total,
		&method, &split.ItemCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, splitID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get split: %w", err)
	}
	split.DistributionMethod = models.DistributionMethod(method)
	split.Total = split.Receipt.Total
	split.Currency = split.Receipt.Currency

	if err := s.loadItems(ctx, split); err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, split); err != nil {
		return nil, err
	}
	if err := s.loadManualSplits(ctx, split); err != nil {
		return nil, err
	}
	if err := s.loadOverrides(ctx, split); err != nil {
		return nil, err
	}
	if split.Participants, err = s.participants(ctx, split.ID); err != nil {
		return nil, err
	}
	if err := s.loadPayments(ctx, split); err != nil {
		return nil, err
	}

	return split, nil
}

// ListSplits returns split headers, newest first.
func (s *SQLiteStore) ListSplits(ctx context.Context, owner string, limit int) ([]*models.SavedSplit, error) {
	query := `SELECT id, title, created_at, currency, total, distribution_method, item_count
		FROM splits WHERE owner = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{owner}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var splits []*models.SavedSplit
	for rows.Next() {
		split := &models.SavedSplit{Owner: owner}
		var method string
		if err := rows.Scan(&split.ID, &split.Title, &split.Timestamp, &split.Currency,
			&split.Total, &method, &split.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.DistributionMethod = models.DistributionMethod(method)
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	rows.Close()

	for _, split := range splits {
		if split.Participants, err = s.participants(ctx, split.ID); err != nil {
			return nil, err
		}
	}

	return splits, nil
}

// DeleteSplit removes a split by ID.
func (s *SQLiteStore) DeleteSplit(ctx context.Context, owner, splitID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM splits WHERE id = ? AND owner = ?", splitID, owner)
	if err != nil {
		return fmt.Errorf("failed to delete split: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, splitID)
	}
	return nil
}

// ClearSplits removes all history of one owner.
func (s *SQLiteStore) ClearSplits(ctx context.Context, owner string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM splits WHERE owner = ?", owner)
	if err != nil {
		return 0, fmt.Errorf("failed to clear splits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check deleted rows: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) loadItems(ctx context.Context, split *models.SavedSplit) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_id, description, price, quantity FROM split_items WHERE split_id = ? ORDER BY position",
		split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	split.Receipt.Items = []models.ReceiptItem{}
	for rows.Next() {
		var item models.ReceiptItem
		if err := rows.Scan(&item.ID, &item.Description, &item.Price, &item.Quantity); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		split.Receipt.Items = append(split.Receipt.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate items: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadAssignments(ctx context.Context, split *models.SavedSplit) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_id, participant FROM item_assignments WHERE split_id = ? ORDER BY item_id, position",
		split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get item assignments: %w", err)
	}
	defer rows.Close()

	split.Assignments = models.AssignmentMap{}
	for rows.Next() {
		var itemID, participant string
		if err := rows.Scan(&itemID, &participant); err != nil {
			return fmt.Errorf("failed to scan assignment: %w", err)
		}
		split.Assignments[itemID] = append(split.Assignments[itemID], participant)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate assignments: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadManualSplits(ctx context.Context, split *models.SavedSplit) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_id, participant, amount FROM manual_splits WHERE split_id = ?",
		split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get manual splits: %w", err)
	}
	defer rows.Close()

	split.ManualSplits = models.ItemManualSplitsMap{}
	for rows.Next() {
		var itemID, participant string
		var amount float64
		if err := rows.Scan(&itemID, &participant, &amount); err != nil {
			return fmt.Errorf("failed to scan manual split: %w", err)
		}
		if split.ManualSplits[itemID] == nil {
			split.ManualSplits[itemID] = map[string]float64{}
		}
		split.ManualSplits[itemID][participant] = amount
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate manual splits: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadOverrides(ctx context.Context, split *models.SavedSplit) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_id, tax, tip FROM item_overrides WHERE split_id = ?",
		split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get item overrides: %w", err)
	}
	defer rows.Close()

	split.Overrides = models.ItemOverridesMap{}
	for rows.Next() {
		var itemID string
		var tax, tip sql.NullFloat64
		if err := rows.Scan(&itemID, &tax, &tip); err != nil {
			return fmt.Errorf("failed to scan item override: %w", err)
		}
		split.Overrides[itemID] = models.ItemTaxTipOverride{Tax: floatPtr(tax), Tip: floatPtr(tip)}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate item overrides: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadPayments(ctx context.Context, split *models.SavedSplit) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payer, amount FROM payments WHERE split_id = ?",
		split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payer string
		var amount float64
		if err := rows.Scan(&payer, &amount); err != nil {
			return fmt.Errorf("failed to scan payment: %w", err)
		}
		if split.Payments == nil {
			split.Payments = map[string]float64{}
		}
		split.Payments[payer] = amount
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate payments: %w", err)
	}
	return nil
}

func (s *SQLiteStore) participants(ctx context.Context, splitID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM participants WHERE split_id = ? ORDER BY position",
		splitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return names, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// generateTitle creates an auto-generated title from participants.
func generateTitle(participants []string, at time.Time) string {
	if len(participants) == 0 {
		return fmt.Sprintf("Split - %s", at.Format("Jan 2, 2006"))
	}
	if len(participants) <= 3 {
		return fmt.Sprintf("Split with %s", strings.Join(participants, ", "))
	}
	return fmt.Sprintf("Split with %s and %d others",
		strings.Join(participants[:2], ", "),
		len(participants)-2,
	)
}
