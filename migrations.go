package grantauth

import (
	"context"
	"crypto/md5"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"
)

// Migration is one versioned schema step: an up/down script pair,
// checksummed and recorded in schema_migrations so Status can tell an
// operator what's pending.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

// GetMigrations returns every schema migration grantauth ships, in order.
// Version 1 creates the three tables SQLStore persists to: grantees
// (users and roles, tagged by is_role), grantee_rights (one row per
// direct Right on one object, stored as its bitset plus a JSON column-set
// overlay so a round trip through Save/Load is lossless — see store.go),
// and grantee_roles (direct role edges).
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create grantauth schema",
			UpScript: `
CREATE TABLE IF NOT EXISTS grantees (
	name             VARCHAR(128) PRIMARY KEY,
	is_role          BOOLEAN NOT NULL DEFAULT FALSE,
	is_public        BOOLEAN NOT NULL DEFAULT FALSE,
	is_system        BOOLEAN NOT NULL DEFAULT FALSE,
	is_admin         BOOLEAN NOT NULL DEFAULT FALSE,
	password_digest  VARCHAR(256) NOT NULL DEFAULT '',
	is_local_only    BOOLEAN NOT NULL DEFAULT FALSE,
	is_external_only BOOLEAN NOT NULL DEFAULT FALSE,
	initial_schema   VARCHAR(128) NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS grantee_rights (
	grantee_name     VARCHAR(128) NOT NULL REFERENCES grantees(name) ON DELETE CASCADE,
	object_name      VARCHAR(256) NOT NULL,
	bits             INTEGER NOT NULL,
	has_filter       BOOLEAN NOT NULL DEFAULT FALSE,
	columns_json     TEXT NOT NULL DEFAULT '{}',
	grantable_bits   INTEGER NOT NULL DEFAULT 0,
	grantable_columns_json TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (grantee_name, object_name)
);
CREATE TABLE IF NOT EXISTS grantee_roles (
	grantee_name     VARCHAR(128) NOT NULL REFERENCES grantees(name) ON DELETE CASCADE,
	role_name        VARCHAR(128) NOT NULL REFERENCES grantees(name) ON DELETE CASCADE,
	PRIMARY KEY (grantee_name, role_name)
);
`,
			DownScript: `
DROP TABLE IF EXISTS grantee_roles;
DROP TABLE IF EXISTS grantee_rights;
DROP TABLE IF EXISTS grantees;
`,
		},
	}
}

// dropSchema removes every table grantauth owns, including the migrations
// ledger itself. Used only by Migrator.Reset.
const dropSchema = `
DROP TABLE IF EXISTS grantee_roles CASCADE;
DROP TABLE IF EXISTS grantee_rights CASCADE;
DROP TABLE IF EXISTS grantees CASCADE;
DROP TABLE IF EXISTS schema_migrations CASCADE;
`

// Migrator applies and rolls back GetMigrations' steps against a *sql.DB,
// tracking applied versions in a schema_migrations table.
type Migrator struct {
	db     *sql.DB
	logger *log.Logger
}

// NewMigrator builds a Migrator. A nil logger defaults to one prefixed
// "[grantauth-migrator] ".
func NewMigrator(db *sql.DB, logger *log.Logger) *Migrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[grantauth-migrator] ", log.LstdFlags)
	}
	return &Migrator{db: db, logger: logger}
}

// MigrationOptions configures Init's behavior.
type MigrationOptions struct {
	TargetVersion int  // 0 means "latest"
	DryRun        bool // log what would run without executing it
}

// DefaultMigrationOptions returns the latest-version, non-dry-run defaults.
func DefaultMigrationOptions() *MigrationOptions {
	return &MigrationOptions{TargetVersion: 0, DryRun: false}
}

// Init brings the schema to opts.TargetVersion (or the latest migration
// if opts is nil or TargetVersion is 0), applying or rolling back steps
// as needed inside a single transaction.
func (m *Migrator) Init(ctx context.Context, opts *MigrationOptions) error {
	if opts == nil {
		opts = DefaultMigrationOptions()
	}

	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("grantauth: create migrations table: %w", err)
	}

	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("grantauth: read current schema version: %w", err)
	}

	migrations := GetMigrations()
	targetVersion := opts.TargetVersion
	if targetVersion == 0 {
		targetVersion = len(migrations)
	}

	if currentVersion == targetVersion {
		m.logger.Println("schema already at target version", targetVersion)
		return nil
	}
	if currentVersion > targetVersion {
		return m.migrate(ctx, migrations, currentVersion, targetVersion, opts, false)
	}
	return m.migrate(ctx, migrations, currentVersion, targetVersion, opts, true)
}

func (m *Migrator) migrate(ctx context.Context, migrations []Migration, from, to int, opts *MigrationOptions, up bool) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("grantauth: begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	if up {
		for i := from; i < to; i++ {
			mig := migrations[i]
			if opts.DryRun {
				m.logger.Printf("would apply migration %d: %s", mig.Version, mig.Name)
				continue
			}
			start := time.Now()
			if err := m.executeScript(ctx, tx, mig.UpScript); err != nil {
				return fmt.Errorf("grantauth: apply migration %d (%s): %w", mig.Version, mig.Name, err)
			}
			if err := m.recordMigration(ctx, tx, mig, time.Since(start)); err != nil {
				return fmt.Errorf("grantauth: record migration %d: %w", mig.Version, err)
			}
		}
	} else {
		for i := from - 1; i >= to; i-- {
			mig := migrations[i]
			if opts.DryRun {
				m.logger.Printf("would roll back migration %d: %s", mig.Version, mig.Name)
				continue
			}
			if err := m.executeScript(ctx, tx, mig.DownScript); err != nil {
				return fmt.Errorf("grantauth: roll back migration %d (%s): %w", mig.Version, mig.Name, err)
			}
			if err := m.removeMigration(ctx, tx, mig.Version); err != nil {
				return fmt.Errorf("grantauth: remove migration record %d: %w", mig.Version, err)
			}
		}
	}

	if opts.DryRun {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("grantauth: commit migration transaction: %w", err)
	}
	return nil
}

// Reset drops every grantauth table, including the migrations ledger.
func (m *Migrator) Reset(ctx context.Context) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("grantauth: begin reset transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, dropSchema); err != nil {
		return fmt.Errorf("grantauth: drop schema: %w", err)
	}
	return tx.Commit()
}

// MigrationStatus reports where the schema stands relative to GetMigrations.
type MigrationStatus struct {
	CurrentVersion    int
	LatestVersion     int
	PendingCount      int
	AppliedMigrations []AppliedMigration
}

// AppliedMigration is one row out of schema_migrations.
type AppliedMigration struct {
	Version         int
	Name            string
	AppliedAt       time.Time
	ExecutionTimeMs int
	Checksum        string
}

// Status reports the current and latest schema versions, and every
// migration recorded as applied so far.
func (m *Migrator) Status(ctx context.Context) (*MigrationStatus, error) {
	status := &MigrationStatus{}

	currentVersion, err := m.getCurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	status.CurrentVersion = currentVersion

	migrations := GetMigrations()
	status.LatestVersion = len(migrations)
	status.PendingCount = status.LatestVersion - status.CurrentVersion

	rows, err := m.db.QueryContext(ctx, `
		SELECT version, name, applied_at, execution_time_ms, checksum
		FROM schema_migrations
		ORDER BY version`)
	if err != nil {
		return status, nil // table may not exist yet
	}
	defer rows.Close()

	for rows.Next() {
		var am AppliedMigration
		if err := rows.Scan(&am.Version, &am.Name, &am.AppliedAt, &am.ExecutionTimeMs, &am.Checksum); err != nil {
			continue
		}
		status.AppliedMigrations = append(status.AppliedMigrations, am)
	}
	return status, nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			execution_time_ms INTEGER,
			checksum VARCHAR(64)
		)`)
	return err
}

func (m *Migrator) getCurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, nil // table doesn't exist yet
	}
	return version, nil
}

func (m *Migrator) executeScript(ctx context.Context, tx *sql.Tx, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w (statement: %s)", err, stmt)
		}
	}
	return nil
}

func (m *Migrator) recordMigration(ctx context.Context, tx *sql.Tx, mig Migration, duration time.Duration) error {
	checksum := fmt.Sprintf("%x", md5.Sum([]byte(mig.UpScript)))
	_, err := tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (version, name, applied_at, execution_time_ms, checksum)
		VALUES ($1, $2, $3, $4, $5)`,
		mig.Version, mig.Name, time.Now(), duration.Milliseconds(), checksum)
	return err
}

func (m *Migrator) removeMigration(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
	return err
}
