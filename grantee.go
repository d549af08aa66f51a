package grantauth

// Grantee is a principal — a user or a role — that can hold privileges.
// It is the tagged-variant the manager operates on: Grantee alone models
// a role, and User embeds a Grantee to add password/auth fields: a tagged
// variant over a shared capability set rather than two unrelated types.
//
// A Grantee is never constructed directly by callers; it is created,
// mutated, and destroyed only through GranteeManager methods. Direct
// roles are held by reference (not by name) — safe here because the
// manager is the sole owner of the grantee arena and serializes every
// mutation under its own lock, so there is no aliasing hazard to guard
// against the way a value-copying language would need to.
type Grantee struct {
	name string

	isRole        bool
	isPublic      bool
	isSystem      bool
	isAdminDirect bool

	directRights    map[string]Right // object name -> Right, at most one entry per name
	directGrantable map[string]Right // subset of directRights also held WITH GRANT OPTION
	directRoles     []*Grantee       // ordered, roles only

	fullRights      map[string]Right // recomputed transitive closure, never persisted
	grantableRights map[string]Right // same shape, grant-option subset only
}

func newGrantee(name string, isRole bool) *Grantee {
	g := &Grantee{
		name:            name,
		isRole:          isRole,
		directRights:    make(map[string]Right),
		directGrantable: make(map[string]Right),
	}
	g.updateAllRights()
	return g
}

// Name returns the grantee's qualified catalog name.
func (g *Grantee) Name() string { return g.name }

// IsRole reports whether this grantee is a role (cannot authenticate).
func (g *Grantee) IsRole() bool { return g.isRole }

// IsPublic reports whether this is the PUBLIC role.
func (g *Grantee) IsPublic() bool { return g.isPublic }

// IsSystem reports whether this is the _SYSTEM user.
func (g *Grantee) IsSystem() bool { return g.isSystem }

// IsAdmin reports admin status, which holds either because the grantee
// was created as an admin directly (DBA, _SYSTEM) or because it
// transitively holds the DBA role.
func (g *Grantee) IsAdmin() bool {
	if g.isAdminDirect {
		return true
	}
	_, ok := g.fullRights[adminMarkerKey]
	return ok
}

// adminMarkerKey is a sentinel object name used internally to propagate
// "holds the DBA role transitively" through fullRights without a
// separate back-pointer table (see updateAllRights).
const adminMarkerKey = "\x00ADMIN\x00"

// DirectRoles returns the grantee's directly-granted roles, in grant order.
func (g *Grantee) DirectRoles() []*Grantee {
	out := make([]*Grantee, len(g.directRoles))
	copy(out, g.directRoles)
	return out
}

// HasRole reports whether role is reachable from g's role closure,
// including g itself (used by the manager's cycle check: "role.hasRole(grantee)").
func (g *Grantee) HasRole(role *Grantee) bool {
	if g == role {
		return true
	}
	visited := make(map[*Grantee]bool)
	var walk func(*Grantee) bool
	walk = func(cur *Grantee) bool {
		if visited[cur] {
			return false
		}
		visited[cur] = true
		for _, r := range cur.directRoles {
			if r == role || walk(r) {
				return true
			}
		}
		return false
	}
	return walk(g)
}

// IsAccessible reports whether the grantee can do anything at all on the
// named object — directly, via role closure, or by being an admin.
func (g *Grantee) IsAccessible(objectName string) bool {
	if g.IsAdmin() {
		return true
	}
	r, ok := g.fullRights[objectName]
	return ok && !r.IsEmpty()
}

// IsGrantable reports whether the grantee's grant-option projection
// contains right for objectName.
func (g *Grantee) IsGrantable(objectName string, right Right) bool {
	if g.IsAdmin() {
		return true
	}
	r, ok := g.grantableRights[objectName]
	return ok && r.Contains(right)
}

// IsGrantableRole reports whether the grantee may grant role to someone
// else. This collapses to admin-only — the accepted weaker contract,
// see DESIGN.md.
func (g *Grantee) IsGrantableRole(role *Grantee) bool {
	return g.IsAdmin()
}

// IsFullyAccessibleByRole reports whether g would satisfy any privilege
// on name purely via its role-derived rights (used to authorize revoke:
// a grantor must hold the privilege through the role graph, not just
// directly, to be allowed to strip it from someone else).
func (g *Grantee) IsFullyAccessibleByRole(name string) bool {
	if g.IsAdmin() {
		return true
	}
	for _, role := range g.directRoles {
		if r, ok := role.fullRights[name]; ok && !r.IsEmpty() {
			return true
		}
	}
	return false
}

// checkRight fails with CodeNotAuthorizedObject unless the grantee's
// effective rights on objectName contain want.
func (g *Grantee) checkRight(objectName string, want Right) error {
	if g.IsAdmin() {
		return nil
	}
	have, ok := g.fullRights[objectName]
	if !ok || !have.Contains(want) {
		return newErr(CodeNotAuthorizedObject, objectName)
	}
	return nil
}

func (g *Grantee) CheckSelect(objectName string, columns ...string) error {
	want := NewRight(PrivSelect)
	if len(columns) > 0 {
		want = want.WithColumns(PrivSelect, columns...)
	}
	return g.checkRight(objectName, want)
}

func (g *Grantee) CheckInsert(objectName string, columns ...string) error {
	want := NewRight(PrivInsert)
	if len(columns) > 0 {
		want = want.WithColumns(PrivInsert, columns...)
	}
	return g.checkRight(objectName, want)
}

func (g *Grantee) CheckUpdate(objectName string, columns ...string) error {
	want := NewRight(PrivUpdate)
	if len(columns) > 0 {
		want = want.WithColumns(PrivUpdate, columns...)
	}
	return g.checkRight(objectName, want)
}

func (g *Grantee) CheckDelete(objectName string) error {
	return g.checkRight(objectName, NewRight(PrivDelete))
}

func (g *Grantee) CheckReferences(objectName string, columns ...string) error {
	want := NewRight(PrivReferences)
	if len(columns) > 0 {
		want = want.WithColumns(PrivReferences, columns...)
	}
	return g.checkRight(objectName, want)
}

func (g *Grantee) CheckTrigger(objectName string) error {
	return g.checkRight(objectName, NewRight(PrivTrigger))
}

func (g *Grantee) CheckExecute(objectName string) error {
	return g.checkRight(objectName, NewRight(PrivExecute))
}

func (g *Grantee) CheckUsage(objectName string) error {
	return g.checkRight(objectName, NewRight(PrivUsage))
}

// --- write-side, called only by GranteeManager ---

func (g *Grantee) grantRight(objectName string, right Right, withGrantOption bool) {
	g.directRights[objectName] = g.directRights[objectName].Add(right)
	if withGrantOption {
		g.directGrantable[objectName] = g.directGrantable[objectName].Add(right)
	}
}

// revokeRight subtracts right from objectName. When grantOption is true,
// only the WITH GRANT OPTION subset is downgraded — the grantee keeps the
// plain privilege but loses the ability to re-grant it. Otherwise the
// privilege is removed outright from both tables. cascade is forwarded to
// Right.Remove for the column-subset safety check.
func (g *Grantee) revokeRight(objectName string, right Right, grantOption bool, cascade bool) error {
	if grantOption {
		cur, ok := g.directGrantable[objectName]
		if !ok {
			return nil
		}
		next, err := cur.Remove(right, cascade)
		if err != nil {
			return err
		}
		if next.IsEmpty() {
			delete(g.directGrantable, objectName)
		} else {
			g.directGrantable[objectName] = next
		}
		return nil
	}

	if cur, ok := g.directRights[objectName]; ok {
		next, err := cur.Remove(right, cascade)
		if err != nil {
			return err
		}
		if next.IsEmpty() {
			delete(g.directRights, objectName)
		} else {
			g.directRights[objectName] = next
		}
	}
	if cur, ok := g.directGrantable[objectName]; ok {
		next, err := cur.Remove(right, true) // grant-option table never blocks on column-subset cascade
		if err != nil {
			return err
		}
		if next.IsEmpty() {
			delete(g.directGrantable, objectName)
		} else {
			g.directGrantable[objectName] = next
		}
	}
	return nil
}

// revokeDbObject drops any direct entry keyed by objectName, used by
// GranteeManager.removeDbObject when the catalog reports a DROP.
func (g *Grantee) revokeDbObject(objectName string) {
	delete(g.directRights, objectName)
	delete(g.directGrantable, objectName)
}

func (g *Grantee) grantRole(role *Grantee) {
	for _, r := range g.directRoles {
		if r == role {
			return
		}
	}
	g.directRoles = append(g.directRoles, role)
}

func (g *Grantee) revokeRole(role *Grantee) {
	for i, r := range g.directRoles {
		if r == role {
			g.directRoles = append(g.directRoles[:i], g.directRoles[i+1:]...)
			return
		}
	}
}

// removeRoleEverywhere strips role from g's directRoles without regard
// to identity comparisons beyond pointer equality (role is being dropped
// entirely from the manager).
func (g *Grantee) removeRoleEverywhere(role *Grantee) {
	g.revokeRole(role)
}

// updateAllRights recomputes fullRights and grantableRights as the union
// of directRights with, transitively, every directRights reachable
// through directRoles. Idempotent and diamond-safe: a role reached
// through two different paths contributes once, tracked via a
// visited-by-identity set.
func (g *Grantee) updateAllRights() {
	full := make(map[string]Right, len(g.directRights))
	for name, r := range g.directRights {
		full[name] = full[name].Add(r)
	}
	grantable := make(map[string]Right, len(g.directGrantable))
	for name, r := range g.directGrantable {
		grantable[name] = grantable[name].Add(r)
	}

	visited := make(map[*Grantee]bool)
	var walk func(*Grantee)
	walk = func(role *Grantee) {
		if visited[role] {
			return
		}
		visited[role] = true
		for name, r := range role.directRights {
			full[name] = full[name].Add(r)
		}
		for name, r := range role.directGrantable {
			grantable[name] = grantable[name].Add(r)
		}
		if role.isAdminDirect {
			full[adminMarkerKey] = full[adminMarkerKey].Add(NewRight(PrivUsage))
		}
		for _, grantRoleOf := range role.directRoles {
			walk(grantRoleOf)
		}
	}
	for _, role := range g.directRoles {
		walk(role)
	}

	g.fullRights = full
	g.grantableRights = grantable
}

// updateNestedRoles recomputes g's effective rights after role's
// effective rights changed — identical to updateAllRights for a role
// grantee, split out only so GranteeManager can sequence "every role
// first, then every user" per the two-pass propagation in §4.5.
func (g *Grantee) updateNestedRoles(role *Grantee) {
	g.updateAllRights()
}

// FullRights returns a copy of the recomputed effective rights table.
func (g *Grantee) FullRights() map[string]Right {
	out := make(map[string]Right, len(g.fullRights))
	for k, v := range g.fullRights {
		if k == adminMarkerKey {
			continue
		}
		out[k] = v
	}
	return out
}

// DirectRights returns a copy of the grantee's direct (non-transitive)
// rights table.
func (g *Grantee) DirectRights() map[string]Right {
	out := make(map[string]Right, len(g.directRights))
	for k, v := range g.directRights {
		out[k] = v
	}
	return out
}

// DirectGrantable returns a copy of the grantee's direct WITH GRANT
// OPTION subset, keyed the same way as DirectRights.
func (g *Grantee) DirectGrantable() map[string]Right {
	out := make(map[string]Right, len(g.directGrantable))
	for k, v := range g.directGrantable {
		out[k] = v
	}
	return out
}
