package grantauth

import "sort"

// GetSQLArray renders the identity-establishing DDL for every grantee the
// manager owns, in insertion order: CREATE ROLE for plain roles, CREATE
// USER plus ALTER USER ... SET LOCAL TRUE / SET INITIAL SCHEMA for users.
// Reserved principals (_SYSTEM and the five bootstrap roles) and
// external-only users are never emitted — they are recreated by
// NewGranteeManager and an external identity provider respectively, not
// by replaying DDL.
func (m *GranteeManager) GetSQLArray() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, name := range m.order {
		if m.reservedNames[name] {
			continue
		}
		if u, ok := m.users[name]; ok {
			if u.IsExternalOnly() {
				continue
			}
			out = append(out, u.GetSQL())
			if sql := u.GetLocalUserSQL(); sql != "" {
				out = append(out, sql)
			}
			if sql := u.GetInitialSchemaSQL(); sql != "" {
				out = append(out, sql)
			}
			continue
		}
		out = append(out, "CREATE ROLE "+quoteName(name))
	}
	return out
}

// GetRightsSQLArray renders every direct privilege grant and direct role
// membership in the arena as GRANT statements, in insertion order of
// grantee and then alphabetical order of object name (object names come
// out of a Go map and have no other natural order; alphabetizing is what
// keeps this output byte-stable across runs. Unlike GetSQLArray, this
// skips only immutable and external-only grantees, not every reserved
// name: PUBLIC is reserved but not immutable, and grants made to it
// (e.g. "GRANT SELECT ON T TO PUBLIC") are real state that must survive
// a dump/reload, even though "CREATE ROLE PUBLIC" itself must not be
// re-emitted.
func (m *GranteeManager) GetRightsSQLArray() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, name := range m.order {
		if m.isImmutable(name) {
			continue
		}
		g := m.byName[name]
		if u, ok := m.users[name]; ok && u.IsExternalOnly() {
			continue
		}

		objects := make([]string, 0, len(g.directRights))
		for obj := range g.directRights {
			objects = append(objects, obj)
		}
		sort.Strings(objects)
		for _, obj := range objects {
			right := g.directRights[obj]
			grantable := g.directGrantable[obj]
			stmt := "GRANT " + joinRightNames(right) + " ON " + quoteName(obj) + " TO " + quoteName(name)
			if !grantable.IsEmpty() {
				stmt += " WITH GRANT OPTION"
			}
			out = append(out, stmt)
		}

		for _, role := range g.directRoles {
			out = append(out, "GRANT "+quoteName(role.name)+" TO "+quoteName(name))
		}
	}
	return out
}

func joinRightNames(r Right) string {
	names := rightNames(r)
	if len(names) == 0 {
		return ""
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}
