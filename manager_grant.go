package grantauth

import "errors"

// Grant applies right on object to every grantee in granteeNames, as
// authorized by grantorName:
//
//  1. A routine overload set (object.SpecificRoutines() non-nil) is
//     expanded and granted per-overload; if none of them could be
//     granted at all, the whole call fails with CodeDependentGrantMissing.
//  2. grantorName must be able to do something at all on object
//     (CodeDependentGrantMissing otherwise).
//  3. The grantor can only back the portion of right it actually holds
//     WITH GRANT OPTION (or everything, if it's an admin). If that
//     portion is empty, session gets a W_01007 warning and the call is a
//     no-op; if it's a strict subset of right, the warning is raised but
//     the grantable portion is still applied.
//  4. Every name in granteeNames must exist (CodeGranteeNotFound), must
//     not be an immutable principal (CodeGranteeImmutable; every reserved
//     name except PUBLIC, which may receive grants), and
//     must not be an external-only user (CodeInvalidAuthSpec).
//  5. A row-filtered right can only be granted to a role
//     (CodeInvalidRole otherwise).
//  6. withGrantOption additionally records the grantable subset in the
//     grantee's directGrantable table.
func (m *GranteeManager) Grant(session Session, granteeNames []string, object SchemaObject, right Right, grantorName string, withGrantOption bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if routines := object.SpecificRoutines(); len(routines) > 0 {
		anyApplied := false
		for _, routine := range routines {
			applied, err := m.grantOneLocked(session, granteeNames, routine, right, grantorName, withGrantOption)
			if err != nil {
				var ge *GranteeError
				if errors.As(err, &ge) && ge.Code == CodeDependentGrantMissing {
					continue // grantor cannot access this overload; try the rest
				}
				return err
			}
			if applied {
				anyApplied = true
			}
		}
		if !anyApplied {
			return newErr(CodeDependentGrantMissing, object.Name())
		}
		return nil
	}

	_, err := m.grantOneLocked(session, granteeNames, object, right, grantorName, withGrantOption)
	return err
}

func (m *GranteeManager) grantOneLocked(session Session, granteeNames []string, object SchemaObject, right Right, grantorName string, withGrantOption bool) (bool, error) {
	grantor, ok := m.byName[grantorName]
	if !ok {
		return false, newErr(CodeGranteeNotFound, grantorName)
	}
	if !grantor.IsAccessible(object.Name()) {
		return false, newErr(CodeDependentGrantMissing, grantorName)
	}

	applyRight := right
	if !grantor.IsAdmin() {
		have := grantor.grantableRights[object.Name()]
		applyRight = right.Intersect(have)
	}
	if applyRight.IsEmpty() {
		session.AddWarning(newPartialGrantWarning(object.Name()))
		m.log.Warn("grant is a no-op: grantor backs none of the requested right", "object", object.Name(), "grantor", grantorName)
		return false, nil
	}
	if !applyRight.Equal(right) {
		session.AddWarning(newPartialGrantWarning(object.Name()))
		m.log.Warn("partial grant: grantor only backs a subset of the requested right", "object", object.Name(), "grantor", grantorName)
	}

	// An admin's grant is recorded as coming from the object's owner
	// rather than the admin itself — grantauth has no per-Right grantor
	// field to stamp this onto (see DESIGN.md), so the only observable
	// effect today is this attribution in the log.
	effectiveGrantor := grantorName
	if grantor.IsAdmin() {
		effectiveGrantor = object.Owner()
	}

	grantees := make([]*Grantee, 0, len(granteeNames))
	for _, name := range granteeNames {
		g, ok := m.byName[name]
		if !ok {
			return false, newErr(CodeGranteeNotFound, name)
		}
		if m.isImmutable(name) {
			return false, newErr(CodeGranteeImmutable, name)
		}
		if u, ok := m.users[name]; ok && u.IsExternalOnly() {
			return false, newErr(CodeInvalidAuthSpec, name)
		}
		if applyRight.HasFilter() && !g.IsRole() {
			return false, newErr(CodeInvalidRole, name)
		}
		grantees = append(grantees, g)
	}

	for _, g := range grantees {
		g.grantRight(object.Name(), applyRight, withGrantOption)
	}
	m.propagateRightsChangeLocked()
	m.log.Debug("granted right", "object", object.Name(), "grantor", effectiveGrantor, "grantees", granteeNames)
	return true, nil
}

// Revoke subtracts right from object for every grantee in granteeNames, as
// authorized by grantorName. grantorName must be an admin or hold some
// privilege on object through one of its roles, per
// Grantee.IsFullyAccessibleByRole (CodeNotAuthorizedObject otherwise).
// grantOption true downgrades only the WITH GRANT OPTION
// subset; cascade true allows a column-subset right to be revoked even
// when the grantee's own column subset isn't a superset of what's being
// revoked (see Right.Remove).
func (m *GranteeManager) Revoke(granteeNames []string, object SchemaObject, right Right, grantorName string, grantOption bool, cascade bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if routines := object.SpecificRoutines(); len(routines) > 0 {
		for _, routine := range routines {
			if err := m.revokeOneLocked(granteeNames, routine, right, grantorName, grantOption, cascade); err != nil {
				return err
			}
		}
		return nil
	}
	return m.revokeOneLocked(granteeNames, object, right, grantorName, grantOption, cascade)
}

func (m *GranteeManager) revokeOneLocked(granteeNames []string, object SchemaObject, right Right, grantorName string, grantOption bool, cascade bool) error {
	grantor, ok := m.byName[grantorName]
	if !ok {
		return newErr(CodeGranteeNotFound, grantorName)
	}
	if !grantor.IsFullyAccessibleByRole(object.Name()) {
		return newErr(CodeNotAuthorizedObject, object.Name())
	}

	for _, name := range granteeNames {
		g, ok := m.byName[name]
		if !ok {
			continue // revoking from a grantee that no longer exists is a silent no-op
		}
		if err := g.revokeRight(object.Name(), right, grantOption, cascade); err != nil {
			return err
		}
	}
	m.propagateRightsChangeLocked()
	return nil
}

// GrantRole grants roleName to granteeName, authorized by grantorName.
// Fails with CodeGranteeNotFound if granteeName doesn't exist,
// CodeGranteeImmutable if it's a reserved principal, CodeInvalidRole if
// roleName isn't a known role, CodeInvalidRoleCycle if roleName equals
// granteeName or granting it would create a cycle in the role graph, and
// CodeDependentGrantMissing if grantorName isn't authorized to grant
// roleName (per Grantee.IsGrantableRole — admin-only, see DESIGN.md).
func (m *GranteeManager) GrantRole(granteeName, roleName, grantorName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	grantee, ok := m.byName[granteeName]
	if !ok {
		return newErr(CodeGranteeNotFound, granteeName)
	}
	if m.isImmutable(granteeName) {
		return newErr(CodeGranteeImmutable, granteeName)
	}
	role, ok := m.byName[roleName]
	if !ok || !role.IsRole() {
		return newErr(CodeInvalidRole, roleName)
	}
	if role == grantee || role.HasRole(grantee) {
		return newErr(CodeInvalidRoleCycle, roleName)
	}
	grantor, ok := m.byName[grantorName]
	if !ok {
		return newErr(CodeGranteeNotFound, grantorName)
	}
	if !grantor.IsGrantableRole(role) {
		return newErr(CodeDependentGrantMissing, grantorName)
	}

	grantee.grantRole(role)
	m.propagateRightsChangeLocked()
	return nil
}

// RevokeRole revokes roleName from granteeName. Admin-only — any
// non-admin grantorName fails with CodeNotAuthorized. granteeName must
// exist (CodeInvalidAuthSpec if not — a different code than the general
// CodeGranteeNotFound used elsewhere).
// roleName need not currently be held: revoking a role the grantee
// doesn't have is a silent no-op.
func (m *GranteeManager) RevokeRole(granteeName, roleName, grantorName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	grantor, ok := m.byName[grantorName]
	if !ok || !grantor.IsAdmin() {
		return newErr(CodeNotAuthorized, grantorName)
	}
	grantee, ok := m.byName[granteeName]
	if !ok {
		return newErr(CodeInvalidAuthSpec, granteeName)
	}
	role, ok := m.byName[roleName]
	if !ok {
		return nil
	}

	grantee.revokeRole(role)
	m.propagateRightsChangeLocked()
	return nil
}
