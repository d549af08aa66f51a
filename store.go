package grantauth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store persists and reloads a GranteeManager's full arena: every
// grantee's identity, direct rights, and direct role edges. grantauth
// never talks to the catalog's own tables — this is its own private
// schema, created by Migrator (migrations.go).
//
// A narrow interface plus one *sql.DB-backed implementation, so a caller
// can swap in a different backend for tests without touching the manager.
type Store interface {
	Save(ctx context.Context, m *GranteeManager) error
	Load(ctx context.Context, hasher *PasswordHasher, log *slog.Logger) (*GranteeManager, error)
}

// SQLStore implements Store against database/sql. It works against both
// PostgreSQL (lib/pq, production) and SQLite (mattn/go-sqlite3, tests) —
// both drivers are blank-imported here rather than left to the caller, so
// callers never have to remember to import a driver themselves.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an already-open *sql.DB. The caller owns the
// connection's lifecycle; SQLStore never closes it.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Save truncates and rewrites every grantauth table from m's current
// in-memory state, inside a single transaction. Save is not incremental —
// grantauth's write volume (DDL and grant/revoke calls) is low enough
// that a full rewrite per save is simpler than diffing.
func (s *SQLStore) Save(ctx context.Context, m *GranteeManager) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("grantauth: begin save transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"grantee_roles", "grantee_rights", "grantees"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("grantauth: clear %s: %w", table, err)
		}
	}

	for _, name := range m.order {
		g := m.byName[name]
		u, isUser := m.users[name]

		var passwordDigest, initialSchema string
		var isLocalOnly, isExternalOnly bool
		if isUser {
			passwordDigest = u.passwordDigest
			initialSchema = u.initialSchema
			isLocalOnly = u.isLocalOnly
			isExternalOnly = u.isExternalOnly
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO grantees (name, is_role, is_public, is_system, is_admin,
				password_digest, is_local_only, is_external_only, initial_schema)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			g.name, g.isRole, g.isPublic, g.isSystem, g.isAdminDirect,
			passwordDigest, isLocalOnly, isExternalOnly, initialSchema)
		if err != nil {
			return fmt.Errorf("grantauth: insert grantee %s: %w", g.name, err)
		}

		for objectName, right := range g.directRights {
			if err := s.saveRight(ctx, tx, g.name, objectName, right, g.directGrantable[objectName]); err != nil {
				return err
			}
		}
		for _, role := range g.directRoles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO grantee_roles (grantee_name, role_name) VALUES ($1, $2)`,
				g.name, role.name); err != nil {
				return fmt.Errorf("grantauth: insert role edge %s->%s: %w", g.name, role.name, err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLStore) saveRight(ctx context.Context, tx *sql.Tx, granteeName, objectName string, right, grantable Right) error {
	cols, err := right.MarshalColumns()
	if err != nil {
		return fmt.Errorf("grantauth: marshal columns for %s/%s: %w", granteeName, objectName, err)
	}
	grantableCols, err := grantable.MarshalColumns()
	if err != nil {
		return fmt.Errorf("grantauth: marshal grantable columns for %s/%s: %w", granteeName, objectName, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO grantee_rights
			(grantee_name, object_name, bits, has_filter, columns_json, grantable_bits, grantable_columns_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		granteeName, objectName, int(right.Bits()), right.HasFilter(), cols,
		int(grantable.Bits()), grantableCols)
	if err != nil {
		return fmt.Errorf("grantauth: insert right %s/%s: %w", granteeName, objectName, err)
	}
	return nil
}

// Load rebuilds a fresh GranteeManager from the persisted tables: the six
// reserved principals are installed the usual way by NewGranteeManager
// (the reserved _SYSTEM user then takes its stored password digest,
// initial schema and local-only flag; other stored flags of reserved
// principals are not read back), and every other grantee is recreated
// and linked up. Identities, role edges and rights are applied in three
// separate passes — first identities, then roles, then rights — since a role edge
// can reference a grantee row inserted later in iteration order.
func (s *SQLStore) Load(ctx context.Context, hasher *PasswordHasher, log *slog.Logger) (*GranteeManager, error) {
	m, err := NewGranteeManager(hasher, log)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, is_role, is_public, is_system, is_admin,
			password_digest, is_local_only, is_external_only, initial_schema
		FROM grantees`)
	if err != nil {
		return nil, fmt.Errorf("grantauth: load grantees: %w", err)
	}
	type row struct {
		name                                string
		isRole, isPublic, isSystem, isAdmin bool
		passwordDigest                      string
		isLocalOnly, isExternalOnly         bool
		initialSchema                       string
	}
	var loaded []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.name, &r.isRole, &r.isPublic, &r.isSystem, &r.isAdmin,
			&r.passwordDigest, &r.isLocalOnly, &r.isExternalOnly, &r.initialSchema); err != nil {
			rows.Close()
			return nil, fmt.Errorf("grantauth: scan grantee row: %w", err)
		}
		loaded = append(loaded, r)
	}
	rows.Close()

	for _, r := range loaded {
		if _, ok := m.byName[r.name]; ok {
			// Reserved principal already installed by NewGranteeManager;
			// refresh its mutable fields from the stored row.
			if u, ok := m.users[r.name]; ok {
				u.passwordDigest = r.passwordDigest
				u.initialSchema = r.initialSchema
				u.isLocalOnly = r.isLocalOnly
			}
			continue
		}
		if r.isRole {
			m.installRole(newGrantee(r.name, true))
			continue
		}
		u := newUser(r.name)
		u.passwordDigest = r.passwordDigest
		u.initialSchema = r.initialSchema
		u.isLocalOnly = r.isLocalOnly
		u.isExternalOnly = r.isExternalOnly
		m.installUser(u)
	}

	roleRows, err := s.db.QueryContext(ctx, `SELECT grantee_name, role_name FROM grantee_roles`)
	if err != nil {
		return nil, fmt.Errorf("grantauth: load role edges: %w", err)
	}
	var edges [][2]string
	for roleRows.Next() {
		var a, b string
		if err := roleRows.Scan(&a, &b); err != nil {
			roleRows.Close()
			return nil, fmt.Errorf("grantauth: scan role edge: %w", err)
		}
		edges = append(edges, [2]string{a, b})
	}
	roleRows.Close()
	for _, e := range edges {
		grantee, gok := m.byName[e[0]]
		role, rok := m.byName[e[1]]
		if gok && rok {
			grantee.grantRole(role)
		}
	}

	rightRows, err := s.db.QueryContext(ctx, `
		SELECT grantee_name, object_name, bits, has_filter, columns_json, grantable_bits, grantable_columns_json
		FROM grantee_rights`)
	if err != nil {
		return nil, fmt.Errorf("grantauth: load rights: %w", err)
	}
	defer rightRows.Close()
	for rightRows.Next() {
		var granteeName, objectName, columnsJSON, grantableColumnsJSON string
		var bits, grantableBits int
		var hasFilter bool
		if err := rightRows.Scan(&granteeName, &objectName, &bits, &hasFilter, &columnsJSON, &grantableBits, &grantableColumnsJSON); err != nil {
			return nil, fmt.Errorf("grantauth: scan right row: %w", err)
		}
		g, ok := m.byName[granteeName]
		if !ok {
			continue
		}
		right, err := RightFromStored(privBit(bits), hasFilter, columnsJSON)
		if err != nil {
			return nil, fmt.Errorf("grantauth: decode right for %s/%s: %w", granteeName, objectName, err)
		}
		grantable, err := RightFromStored(privBit(grantableBits), false, grantableColumnsJSON)
		if err != nil {
			return nil, fmt.Errorf("grantauth: decode grantable right for %s/%s: %w", granteeName, objectName, err)
		}
		g.directRights[objectName] = right
		if !grantable.IsEmpty() {
			g.directGrantable[objectName] = grantable
		}
	}

	m.propagateRightsChangeLocked()
	return m, nil
}
