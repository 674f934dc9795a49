package history

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes shape. There is no
// migration path; a stale database must be deleted and rebuilt.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible
// version of this package.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// initSchema brings a freshly opened database up to the current schema, or
// rejects one recorded at a different version.
func (s *Store) initSchema(ctx context.Context) error {
	recorded, err := s.recordedSchemaVersion(ctx)
	if err != nil {
		return err
	}
	switch recorded {
	case 0:
		return s.createSchema(ctx)
	case schemaVersion:
		return nil
	default:
		return fmt.Errorf("%w: database has version %d, expected %d (delete the database to rebuild it)",
			ErrSchemaMismatch, recorded, schemaVersion)
	}
}

// recordedSchemaVersion reports the version stored in the database, or 0
// when the database has never been initialized.
func (s *Store) recordedSchemaVersion(ctx context.Context) (int, error) {
	const probe = "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'"
	var tables int
	if err := s.db.QueryRowContext(ctx, probe).Scan(&tables); err != nil {
		return 0, fmt.Errorf("check schema_version table: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	stamp := "INSERT INTO schema_version (version) VALUES (?)"
	if _, err := tx.ExecContext(ctx, stamp, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
