package grantauth

// AddRole creates a new role named name. Fails with CodeGranteeExists if
// the name is already taken (by a role or a user) and CodeGranteeImmutable
// if name collides with a reserved principal or a reserved schema name.
func (m *GranteeManager) AddRole(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNewName(name); err != nil {
		return err
	}
	m.installRole(newGrantee(name, true))
	return nil
}

// AddUser creates a new user named name with no password set. Same
// preconditions as AddRole.
func (m *GranteeManager) AddUser(name string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNewName(name); err != nil {
		return nil, err
	}
	u := newUser(name)
	m.installUser(u)
	return u, nil
}

// checkNewName validates a prospective grantee name against the existence
// and reserved/schema-shadowing rules shared by AddRole and AddUser.
func (m *GranteeManager) checkNewName(name string) error {
	if m.reservedNames[name] || reservedSchemaNames[name] {
		return newErr(CodeGranteeImmutable, name)
	}
	if _, exists := m.byName[name]; exists {
		return newErr(CodeGranteeExists, name)
	}
	return nil
}

// DropRole removes a role entirely: fails with CodeInvalidRole if name
// isn't a role at all (or doesn't exist) and CodeNotAuthorized if name is
// one of the reserved bootstrap roles (PUBLIC, DBA, SCHEMA_CREATE,
// CHANGE_AUTHORIZATION, SCRIPT_OPS) — distinct from the general
// CodeGranteeImmutable used elsewhere, matching the dropRole("DBA")
// case where DBA itself can never be dropped.
func (m *GranteeManager) DropRole(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.byName[name]
	if !ok || !g.IsRole() {
		return newErr(CodeInvalidRole, name)
	}
	if m.reservedNames[name] {
		return newErr(CodeNotAuthorized, name)
	}
	m.removeGranteeLocked(name)
	return nil
}

// RemoveGrantee drops a user or role from the manager outright: every
// other grantee's directRoles is swept for a reference to it, its own
// entries are deleted, and (if it was a role) every grantee's effective
// rights are recomputed. Reserved principals are never removed; calling
// this on one is a no-op that reports false.
func (m *GranteeManager) RemoveGrantee(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeGranteeLocked(name)
}

func (m *GranteeManager) removeGranteeLocked(name string) bool {
	if m.reservedNames[name] {
		return false
	}
	g, ok := m.byName[name]
	if !ok {
		return false
	}

	for _, other := range m.byName {
		if other == g {
			continue
		}
		other.removeRoleEverywhere(g)
	}

	delete(m.byName, name)
	delete(m.users, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if g.IsRole() {
		m.propagateRightsChangeLocked()
	}
	return true
}

// RemoveDbObject strips every grantee's direct rights (and grant-option
// subset) on objectName, then recomputes every grantee's effective rights.
// Called by the catalog layer when a table, view, schema, or routine is
// dropped — grantauth never discovers this on its own.
func (m *GranteeManager) RemoveDbObject(objectName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.byName {
		g.revokeDbObject(objectName)
	}
	m.propagateRightsChangeLocked()
}

// RemoveDbObjects is RemoveDbObject for a batch, recomputing effective
// rights only once at the end rather than once per name.
func (m *GranteeManager) RemoveDbObjects(objectNames []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.byName {
		for _, name := range objectNames {
			g.revokeDbObject(name)
		}
	}
	m.propagateRightsChangeLocked()
}

// propagateRightsChangeLocked is the two-pass recomputation driver:
// every role's own effective rights are rebuilt first, then
// every user's. Safe to call unconditionally after any mutation to a
// directRights/directRoles table anywhere in the arena — updateAllRights
// always walks the live role graph rather than trusting a cached closure,
// so it is idempotent regardless of how many times it runs. Caller must
// hold m.mu.
func (m *GranteeManager) propagateRightsChangeLocked() {
	for _, name := range m.order {
		if g := m.byName[name]; g.IsRole() {
			g.updateNestedRoles(nil)
		}
	}
	for _, name := range m.order {
		if g := m.byName[name]; !g.IsRole() {
			g.updateAllRights()
		}
	}
}
