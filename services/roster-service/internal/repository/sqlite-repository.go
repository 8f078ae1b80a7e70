package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/burakmert236/volei-list/common/database"
	"github.com/burakmert236/volei-list/common/models"
)

const entryColumns = `id, name, registered_at, position, status`

type sqliteStore struct {
	client *database.SQLiteClient
	loc    *time.Location
}

// NewSQLiteStore returns a store whose timestamps come back in loc.
func NewSQLiteStore(client *database.SQLiteClient, loc *time.Location) RosterStore {
	if loc == nil {
		loc = time.UTC
	}
	return &sqliteStore{client: client, loc: loc}
}

// View runs fn in a deferred read transaction, so readers never take the
// write lock that Update holds.
func (s *sqliteStore) View(ctx context.Context, fn func(repo EntryRepository) error) error {
	tx, err := s.client.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(&sqliteRepo{tx: tx, loc: s.loc})
}

func (s *sqliteStore) Update(ctx context.Context, fn func(repo EntryRepository) error) error {
	tx, err := s.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteRepo{tx: tx, loc: s.loc}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *sqliteStore) Close() error {
	return s.client.Close()
}

type sqliteRepo struct {
	tx  *sql.Tx
	loc *time.Location
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sqliteRepo) scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		id           int64
		entry        models.Entry
		registeredAt int64
		status       string
	)
	if err := row.Scan(&id, &entry.Name, &registeredAt, &entry.Position, &status); err != nil {
		return nil, err
	}

	entry.EntryId = strconv.FormatInt(id, 10)
	entry.RegisteredAt = time.UnixMilli(registeredAt).In(r.loc)
	entry.Status = models.EntryStatus(status)
	if !entry.Status.Valid() {
		return nil, fmt.Errorf("entry %d has unknown status %q", id, status)
	}
	return &entry, nil
}

func (r *sqliteRepo) queryOne(ctx context.Context, query string, args ...any) (*models.Entry, error) {
	entry, err := r.scanEntry(r.tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

func (r *sqliteRepo) ListByStatus(ctx context.Context, status models.EntryStatus) ([]models.Entry, error) {
	rows, err := r.tx.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE status = ? ORDER BY position, registered_at, id`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.Entry, 0)
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	return entries, nil
}

func (r *sqliteRepo) CountByStatus(ctx context.Context, status models.EntryStatus) (int, error) {
	var count int
	err := r.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func (r *sqliteRepo) FindByName(ctx context.Context, name string, status models.EntryStatus) (*models.Entry, error) {
	entry, err := r.queryOne(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE name = ? AND status = ? LIMIT 1`,
		name, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	return entry, nil
}

func (r *sqliteRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM entries WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check entry: %w", err)
	}
	return exists, nil
}

func (r *sqliteRepo) FindEarliestWaiting(ctx context.Context) (*models.Entry, error) {
	entry, err := r.queryOne(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE status = ? ORDER BY registered_at, id LIMIT 1`,
		string(models.EntryStatusWaiting),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find earliest waiting entry: %w", err)
	}
	return entry, nil
}

func (r *sqliteRepo) Create(ctx context.Context, entry *models.Entry) error {
	res, err := r.tx.ExecContext(ctx,
		`INSERT INTO entries (name, registered_at, position, status) VALUES (?, ?, ?, ?)`,
		entry.Name, entry.RegisteredAt.UnixMilli(), entry.Position, string(entry.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read entry id: %w", err)
	}

	entry.EntryId = strconv.FormatInt(id, 10)
	entry.RegisteredAt = time.UnixMilli(entry.RegisteredAt.UnixMilli()).In(r.loc)
	return nil
}

func (r *sqliteRepo) UpdatePlacement(ctx context.Context, entry *models.Entry) error {
	id, err := parseEntryId(entry.EntryId)
	if err != nil {
		return err
	}

	res, err := r.tx.ExecContext(ctx,
		`UPDATE entries SET status = ?, position = ? WHERE id = ?`,
		string(entry.Status), entry.Position, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return expectOneRow(res, entry.EntryId)
}

func (r *sqliteRepo) Delete(ctx context.Context, entryId string) error {
	id, err := parseEntryId(entryId)
	if err != nil {
		return err
	}

	res, err := r.tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return expectOneRow(res, entryId)
}

func (r *sqliteRepo) DeleteAll(ctx context.Context) (int, error) {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM entries`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	return int(n), nil
}

func parseEntryId(entryId string) (int64, error) {
	id, err := strconv.ParseInt(entryId, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry id %q: %w", entryId, err)
	}
	return id, nil
}

func expectOneRow(res sql.Result, entryId string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("entry %s: %w", entryId, ErrConflict)
	}
	return nil
}
