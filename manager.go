package grantauth

import (
	"log/slog"
	"sync"
)

// reservedSchemaNames are schema names the manager will not let addUser /
// addRole shadow — _SYSTEM's own initial schema plus the catalog's
// information schemas.
var reservedSchemaNames = map[string]bool{
	"SYSTEM_SCHEMA":      true,
	"INFORMATION_SCHEMA": true,
	"SYSTEM_LOBS":        true,
}

// GranteeManager owns the full grantee arena: every user and role, keyed
// by name, plus the reserved/immutable bookkeeping and the single password
// hasher shared by every principal. It is the only thing that ever
// constructs, mutates, or destroys a Grantee or User — see grantee.go.
//
// Uses a single coarse sync.Mutex rather than a reader/writer split: the
// whole point of the role graph is that one grant can touch every
// grantee's effective rights, so there is no meaningful read-only fast
// path worth protecting separately from writers.
type GranteeManager struct {
	mu sync.Mutex

	byName map[string]*Grantee // both users and roles
	users  map[string]*User    // subset of byName that are users, same pointers' Grantee
	order  []string            // insertion order, for deterministic DDL output

	reservedNames  map[string]bool
	immutableNames map[string]bool

	hasher *PasswordHasher
	log    *slog.Logger
}

// NewGranteeManager builds a manager with the six reserved principals
// installed in a fixed order: _SYSTEM first (so it exists before anything
// else can reference it), then PUBLIC, then DBA, then the three plain
// bootstrap roles. hasher is used for every password set through this
// manager; a nil hasher defaults to SHA-256.
func NewGranteeManager(hasher *PasswordHasher, log *slog.Logger) (*GranteeManager, error) {
	if hasher == nil {
		var err error
		hasher, err = NewPasswordHasher("")
		if err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = defaultLogger()
	}

	m := &GranteeManager{
		byName: make(map[string]*Grantee),
		users:  make(map[string]*User),
		reservedNames: map[string]bool{
			"_SYSTEM": true, "PUBLIC": true, "DBA": true,
			"SCHEMA_CREATE": true, "CHANGE_AUTHORIZATION": true, "SCRIPT_OPS": true,
		},
		immutableNames: map[string]bool{
			"_SYSTEM": true, "DBA": true,
			"SCHEMA_CREATE": true, "CHANGE_AUTHORIZATION": true, "SCRIPT_OPS": true,
		},
		hasher: hasher,
		log:    log,
	}

	system := newUser("_SYSTEM")
	system.isSystem = true
	system.isAdminDirect = true
	system.initialSchema = "SYSTEM_SCHEMA"
	m.installUser(system)

	public := newGrantee("PUBLIC", true)
	public.isPublic = true
	m.installRole(public)

	dba := newGrantee("DBA", true)
	dba.isAdminDirect = true
	m.installRole(dba)

	for _, name := range []string{"SCHEMA_CREATE", "CHANGE_AUTHORIZATION", "SCRIPT_OPS"} {
		m.installRole(newGrantee(name, true))
	}

	m.log.Debug("grantee manager initialized", "reserved", len(m.reservedNames))
	return m, nil
}

// installRole registers a role grantee, recording insertion order.
func (m *GranteeManager) installRole(g *Grantee) {
	m.byName[g.name] = g
	m.order = append(m.order, g.name)
}

// installUser registers a user, under both byName (as its embedded
// Grantee) and the users table (for password/DDL operations specific to
// User).
func (m *GranteeManager) installUser(u *User) {
	m.byName[u.name] = &u.Grantee
	m.users[u.name] = u
	m.order = append(m.order, u.name)
}

// Hasher returns the shared password hasher.
func (m *GranteeManager) Hasher() *PasswordHasher { return m.hasher }

// Lookup returns the named grantee, or nil if it doesn't exist.
func (m *GranteeManager) Lookup(name string) *Grantee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byName[name]
}

// SetPassword sets name's password digest: value is hashed with the
// manager's PasswordHasher unless isDigest is true, in which case value
// is taken to already be a hex digest (e.g. replayed from
// PASSWORD DIGEST '<hex>' DDL) and stored as-is. Fails with
// CodeGranteeNotFound if name doesn't exist, or CodeInvalidAuthSpec if
// it exists but isn't a user (a role has no password to set).
func (m *GranteeManager) SetPassword(name, value string, isDigest bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[name]
	if !ok {
		if _, exists := m.byName[name]; exists {
			return newErr(CodeInvalidAuthSpec, name)
		}
		return newErr(CodeGranteeNotFound, name)
	}
	u.setPassword(m.hasher, value, isDigest)
	return nil
}

// Names returns every grantee name in insertion order.
func (m *GranteeManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *GranteeManager) isImmutable(name string) bool {
	return m.immutableNames[name]
}
