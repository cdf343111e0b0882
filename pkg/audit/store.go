package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Store provides append and read access to security logs
type Store interface {
	// Append writes one entry and sets its ID
	Append(ctx context.Context, entry *Entry) error
	// Search returns one page of entries, newest first
	Search(ctx context.Context, q Query) ([]*Entry, error)
	// Count returns the number of entries matching the query filters
	Count(ctx context.Context, q Query) (int64, error)
}

// PostgresStore implements Store using PostgreSQL. Reads may go to a replica.
type PostgresStore struct {
	db     *sql.DB
	reader func() *sql.DB
}

// NewPostgresStore creates a store that reads and writes through db
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		reader: func() *sql.DB { return db },
	}
}

// WithReader routes Search and Count through reader, e.g. ConnectionManager.Replica
func (s *PostgresStore) WithReader(reader func() *sql.DB) *PostgresStore {
	s.reader = reader
	return s
}

// Append inserts an entry
func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO security_logs (account_id, method, url, status_code, ip_address, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var ip sql.NullString
	if entry.IPAddress != "" {
		ip = sql.NullString{String: entry.IPAddress, Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query,
		entry.AccountID, entry.Method, entry.URL, entry.StatusCode,
		ip, entry.ResponseTimeMS, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert security log: %w", err)
	}
	return nil
}

// where builds the filter clause shared by Search and Count
func where(q Query) (string, []interface{}) {
	clause := " WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if q.StatusCode != nil {
		clause += fmt.Sprintf(" AND status_code = $%d", argCount)
		args = append(args, *q.StatusCode)
		argCount++
	}

	if ip := strings.TrimSpace(q.IP); ip != "" {
		clause += fmt.Sprintf(" AND ip_address ILIKE $%d", argCount)
		args = append(args, "%"+escapeLike(ip)+"%")
		argCount++
	}

	if q.StartDate != nil {
		clause += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *q.StartDate)
		argCount++
	}

	if q.EndDate != nil {
		clause += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *q.EndDate)
	}

	return clause, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Search returns one page of entries ordered newest first
func (s *PostgresStore) Search(ctx context.Context, q Query) ([]*Entry, error) {
	q = q.Normalize()
	clause, args := where(q)

	query := `
		SELECT id, account_id, method, url, status_code, ip_address, response_time_ms, created_at
		FROM security_logs` + clause +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset())

	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search security logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry := &Entry{}
		var accountID sql.NullInt64
		var ip sql.NullString

		if err := rows.Scan(
			&entry.ID, &accountID, &entry.Method, &entry.URL,
			&entry.StatusCode, &ip, &entry.ResponseTimeMS, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan security log: %w", err)
		}
		if accountID.Valid {
			id := accountID.Int64
			entry.AccountID = &id
		}
		entry.IPAddress = ip.String
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security logs: %w", err)
	}
	return entries, nil
}

// Count returns the total number of entries matching the filters
func (s *PostgresStore) Count(ctx context.Context, q Query) (int64, error) {
	clause, args := where(q)

	var total int64
	if err := s.reader().QueryRowContext(ctx, "SELECT COUNT(*) FROM security_logs"+clause, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count security logs: %w", err)
	}
	return total, nil
}
