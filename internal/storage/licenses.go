package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type License struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	ServerID  string    `json:"serverId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Store) CreateLicense(ctx context.Context, license License) (License, error) {
	if license.ID == "" {
		license.ID = uuid.NewString()
	}
	license.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO licenses (id, license_key, server_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, license.ID, license.Key, license.ServerID, license.ExpiresAt.Unix(), license.CreatedAt.Unix())
	if err != nil {
		return License{}, err
	}
	return license, nil
}

func (s *Store) GetLicense(ctx context.Context, id string) (License, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, license_key, server_id, expires_at, created_at
		FROM licenses WHERE id = ?`, id)
	return scanLicenseRow(row)
}

func (s *Store) GetLicenseByServer(ctx context.Context, serverID string) (License, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, license_key, server_id, expires_at, created_at
		FROM licenses WHERE server_id = ?`, serverID)
	return scanLicenseRow(row)
}

func (s *Store) ListLicenses(ctx context.Context) ([]License, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, license_key, server_id, expires_at, created_at
		FROM licenses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	licenses := []License{}
	for rows.Next() {
		license, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, license)
	}
	return licenses, rows.Err()
}

func (s *Store) UpdateLicense(ctx context.Context, license License) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE licenses SET license_key = ?, expires_at = ? WHERE id = ?
	`, license.Key, license.ExpiresAt.Unix(), license.ID)
	return err
}

func (s *Store) DeleteLicense(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM licenses WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanLicense(row rowScanner) (License, error) {
	var license License
	var expires, created int64
	if err := row.Scan(&license.ID, &license.Key, &license.ServerID, &expires, &created); err != nil {
		return License{}, err
	}
	license.ExpiresAt = time.Unix(expires, 0)
	license.CreatedAt = time.Unix(created, 0)
	return license, nil
}

func scanLicenseRow(row *sql.Row) (License, bool, error) {
	license, err := scanLicense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return License{}, false, nil
		}
		return License{}, false, err
	}
	return license, true, nil
}
