package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByKey retrieves a device by its key.
	// Returns ErrNotFound if the device does not exist.
	GetByKey(ctx context.Context, key string) (*Device, error)

	// List retrieves all devices ordered by first contact.
	List(ctx context.Context) ([]Device, error)

	// Upsert inserts or replaces a device record.
	Upsert(ctx context.Context, d *Device) error

	// Delete removes a device by key.
	// Returns ErrNotFound if the device does not exist.
	Delete(ctx context.Context, key string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByKey retrieves a device by its key.
func (r *SQLiteRepository) GetByKey(ctx context.Context, key string) (*Device, error) {
	query := `
		SELECT key, first_seen, last_seen, firmware_version, battery_mv, rssi, fetch_count
		FROM devices
		WHERE key = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting device %s: %w", key, err)
	}
	return d, nil
}

// List retrieves all devices ordered by first contact.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `
		SELECT key, first_seen, last_seen, firmware_version, battery_mv, rssi, fetch_count
		FROM devices
		ORDER BY first_seen`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Upsert inserts or replaces a device record.
func (r *SQLiteRepository) Upsert(ctx context.Context, d *Device) error {
	query := `
		INSERT OR REPLACE INTO devices
			(key, first_seen, last_seen, firmware_version, battery_mv, rssi, fetch_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.Key,
		d.FirstSeen.UTC().Format(time.RFC3339),
		d.LastSeen.UTC().Format(time.RFC3339),
		d.FirmwareVersion,
		d.BatteryMillivolts,
		d.RSSI,
		d.FetchCount,
	)
	if err != nil {
		return fmt.Errorf("upserting device %s: %w", d.Key, err)
	}
	return nil
}

// Delete removes a device by key.
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanDevice.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a single row into a Device.
func scanDevice(row scanner) (*Device, error) {
	var (
		d         Device
		firstSeen string
		lastSeen  string
	)
	if err := row.Scan(&d.Key, &firstSeen, &lastSeen, &d.FirmwareVersion,
		&d.BatteryMillivolts, &d.RSSI, &d.FetchCount); err != nil {
		return nil, err
	}

	var err error
	if d.FirstSeen, err = time.Parse(time.RFC3339, firstSeen); err != nil {
		return nil, fmt.Errorf("parsing first_seen: %w", err)
	}
	if d.LastSeen, err = time.Parse(time.RFC3339, lastSeen); err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}
	return &d, nil
}
