package pairing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts or replaces a session by code.
func (r *SQLiteRepository) Save(ctx context.Context, s *Session) error {
	var configJSON sql.NullString
	if s.Config != nil {
		data, err := json.Marshal(s.Config)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		configJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT OR REPLACE INTO pairing_sessions
			(code, status, created_at, expires_at, paired_at, config)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		s.Code,
		string(s.Status),
		s.CreatedAt.UTC().Format(time.RFC3339),
		s.ExpiresAt.UTC().Format(time.RFC3339),
		nullableTime(s.PairedAt),
		configJSON,
	)
	if err != nil {
		return fmt.Errorf("saving pairing session: %w", err)
	}
	return nil
}

// Delete removes a session by code.
func (r *SQLiteRepository) Delete(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pairing_sessions WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("deleting pairing session: %w", err)
	}
	return nil
}

// List retrieves all persisted sessions.
func (r *SQLiteRepository) List(ctx context.Context) ([]Session, error) {
	query := `
		SELECT code, status, created_at, expires_at, paired_at, config
		FROM pairing_sessions
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing pairing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s          Session
			status     string
			createdAt  string
			expiresAt  string
			pairedAt   sql.NullString
			configJSON sql.NullString
		)
		if err := rows.Scan(&s.Code, &status, &createdAt, &expiresAt, &pairedAt, &configJSON); err != nil {
			return nil, fmt.Errorf("scanning pairing session: %w", err)
		}

		s.Status = Status(status)
		if s.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if s.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", err)
		}
		if pairedAt.Valid {
			t, err := time.Parse(time.RFC3339, pairedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing paired_at: %w", err)
			}
			s.PairedAt = &t
		}
		if configJSON.Valid {
			var cfg Config
			if err := json.Unmarshal([]byte(configJSON.String), &cfg); err != nil {
				return nil, fmt.Errorf("unmarshaling config: %w", err)
			}
			s.Config = &cfg
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pairing sessions: %w", err)
	}
	return sessions, nil
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
