package grantauth

import "testing"

// testObject is a minimal SchemaObject for manager tests; grantauth never
// looks up objects on its own, so tests stand one up by hand rather than
// pulling in a real catalog.
type testObject struct {
	name, owner string
	routines    []SchemaObject
}

func (o testObject) Name() string                     { return o.name }
func (o testObject) Owner() string                    { return o.owner }
func (o testObject) SpecificRoutines() []SchemaObject { return o.routines }

// testSession is a minimal Session for manager tests.
type testSession struct {
	user     string
	warnings []error
}

func (s *testSession) CurrentUser() string  { return s.user }
func (s *testSession) AddWarning(err error) { s.warnings = append(s.warnings, err) }

func newTestManager(t *testing.T) *GranteeManager {
	t.Helper()
	m, err := NewGranteeManager(nil, nil)
	if err != nil {
		t.Fatalf("NewGranteeManager: %v", err)
	}
	return m
}

func TestNewGranteeManagerInstallsReservedPrincipalsInOrder(t *testing.T) {
	m := newTestManager(t)
	want := []string{"_SYSTEM", "PUBLIC", "DBA", "SCHEMA_CREATE", "CHANGE_AUTHORIZATION", "SCRIPT_OPS"}
	got := m.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	system := m.Lookup("_SYSTEM")
	if !system.IsSystem() || !system.IsAdmin() {
		t.Fatalf("_SYSTEM should be a system admin")
	}
	if !m.Lookup("PUBLIC").IsPublic() {
		t.Fatalf("PUBLIC should be the public role")
	}
	if !m.Lookup("DBA").IsAdmin() {
		t.Fatalf("DBA should be an admin role")
	}
}

func TestAddRoleAndAddUserPreconditions(t *testing.T) {
	m := newTestManager(t)

	if err := m.AddRole("ANALYST"); err != nil {
		t.Fatalf("AddRole: %v", err)
	}
	if err := m.AddRole("ANALYST"); err == nil {
		t.Fatalf("AddRole should fail on a duplicate name")
	}
	if err := m.AddRole("DBA"); err == nil {
		t.Fatalf("AddRole should fail on a reserved name")
	}

	if _, err := m.AddUser("alice"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if _, err := m.AddUser("alice"); err == nil {
		t.Fatalf("AddUser should fail on a duplicate name")
	}
	if _, err := m.AddUser("SYSTEM_SCHEMA"); err == nil {
		t.Fatalf("AddUser should fail when shadowing a reserved schema name")
	}
}

func TestSetPassword(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.AddUser("alice"); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	if err := m.SetPassword("alice", "hunter2", false); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	alice := m.users["alice"]
	if err := alice.CheckPassword(m.Hasher(), "hunter2"); err != nil {
		t.Fatalf("alice's password should check out after SetPassword: %v", err)
	}

	digest := m.Hasher().Digest("replayed")
	if err := m.SetPassword("alice", digest, true); err != nil {
		t.Fatalf("SetPassword as digest: %v", err)
	}
	if err := alice.CheckPassword(m.Hasher(), "replayed"); err != nil {
		t.Fatalf("a digest set via isDigest=true should still check out: %v", err)
	}

	if err := m.SetPassword("nobody", "x", false); err == nil {
		t.Fatalf("SetPassword should fail for an unknown grantee")
	}
	if err := m.AddRole("ANALYST"); err != nil {
		t.Fatalf("AddRole: %v", err)
	}
	if err := m.SetPassword("ANALYST", "x", false); err == nil {
		t.Fatalf("SetPassword should fail for a role, which has no password")
	}
}

func TestGrantAndCheckRight(t *testing.T) {
	m := newTestManager(t)
	m.AddUser("alice")
	session := &testSession{user: "_SYSTEM"}
	t1 := testObject{name: "T1", owner: "alice"}

	if err := m.Grant(session, []string{"alice"}, t1, NewRight(PrivSelect), "_SYSTEM", false); err != nil {
		t.Fatalf("Grant by admin: %v", err)
	}
	if err := m.Lookup("alice").checkRight("T1", NewRight(PrivSelect)); err != nil {
		t.Fatalf("alice should now have SELECT on T1: %v", err)
	}
	if len(session.warnings) != 0 {
		t.Fatalf("a fully-grantable admin grant should not warn, got %v", session.warnings)
	}
}

func TestGrantPartialEmitsWarningButStillAppliesWhatItCan(t *testing.T) {
	m := newTestManager(t)
	m.AddUser("bob")   // grantor
	m.AddUser("carol") // grantee
	t1 := testObject{name: "T1", owner: "bob"}

	// bob only holds SELECT, with grant option, on T1.
	session := &testSession{user: "_SYSTEM"}
	if err := m.Grant(session, []string{"bob"}, t1, NewRight(PrivSelect), "_SYSTEM", true); err != nil {
		t.Fatalf("seed grant to bob: %v", err)
	}

	// bob tries to grant SELECT and INSERT to carol; only SELECT can go through.
	session2 := &testSession{user: "bob"}
	if err := m.Grant(session2, []string{"carol"}, t1, NewRight(PrivSelect, PrivInsert), "bob", false); err != nil {
		t.Fatalf("partial grant: %v", err)
	}
	if len(session2.warnings) != 1 {
		t.Fatalf("expected exactly one partial-grant warning, got %d", len(session2.warnings))
	}
	if err := m.Lookup("carol").checkRight("T1", NewRight(PrivSelect)); err != nil {
		t.Fatalf("carol should have received SELECT: %v", err)
	}
	if m.Lookup("carol").checkRight("T1", NewRight(PrivInsert)) == nil {
		t.Fatalf("carol should not have received INSERT, bob couldn't back it")
	}
}

func TestGrantRejectsExternalOnlyGrantee(t *testing.T) {
	m := newTestManager(t)
	u, _ := m.AddUser("ext")
	u.isExternalOnly = true
	t1 := testObject{name: "T1", owner: "_SYSTEM"}

	session := &testSession{user: "_SYSTEM"}
	if err := m.Grant(session, []string{"ext"}, t1, NewRight(PrivSelect), "_SYSTEM", false); err == nil {
		t.Fatalf("Grant should reject an external-only grantee")
	}
}

func TestRevokeRequiresAccessThroughRoleAndAppliesSubtraction(t *testing.T) {
	m := newTestManager(t)
	m.AddUser("alice")
	t1 := testObject{name: "T1"}
	session := &testSession{user: "_SYSTEM"}
	if err := m.Grant(session, []string{"alice"}, t1, NewRight(PrivSelect, PrivInsert), "_SYSTEM", false); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	if err := m.Revoke([]string{"alice"}, t1, NewRight(PrivInsert), "bob-does-not-exist", false, false); err == nil {
		t.Fatalf("Revoke by an unknown grantor should fail")
	}
	if err := m.Revoke([]string{"alice"}, t1, NewRight(PrivInsert), "_SYSTEM", false, false); err != nil {
		t.Fatalf("Revoke by admin: %v", err)
	}
	if err := m.Lookup("alice").checkRight("T1", NewRight(PrivInsert)); err == nil {
		t.Fatalf("alice should have lost INSERT")
	}
	if err := m.Lookup("alice").checkRight("T1", NewRight(PrivSelect)); err != nil {
		t.Fatalf("alice should still have SELECT: %v", err)
	}
}

func TestGrantRoleCycleRejected(t *testing.T) {
	m := newTestManager(t)
	m.AddRole("R1")
	m.AddRole("R2")

	if err := m.GrantRole("R2", "R1", "_SYSTEM"); err != nil {
		t.Fatalf("grant R1 to R2: %v", err)
	}
	if err := m.GrantRole("R1", "R2", "_SYSTEM"); err == nil {
		t.Fatalf("granting R2 to R1 should fail, it would close a cycle")
	}
	if err := m.GrantRole("R1", "R1", "_SYSTEM"); err == nil {
		t.Fatalf("a role granted to itself should fail")
	}
}

func TestGrantRoleRequiresGrantableRole(t *testing.T) {
	m := newTestManager(t)
	m.AddUser("alice")
	m.AddRole("R1")

	if err := m.GrantRole("alice", "R1", "alice"); err == nil {
		t.Fatalf("a non-admin should not be able to grant a role")
	}
	if err := m.GrantRole("alice", "R1", "_SYSTEM"); err != nil {
		t.Fatalf("an admin granting a role should succeed: %v", err)
	}
}

func TestRevokeRoleIsAdminOnlyAndSilentNoOpForUnheldRole(t *testing.T) {
	m := newTestManager(t)
	m.AddUser("alice")
	m.AddRole("R1")
	if err := m.GrantRole("alice", "R1", "_SYSTEM"); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	if err := m.RevokeRole("alice", "R1", "alice"); err == nil {
		t.Fatalf("RevokeRole should be admin-only")
	}
	if err := m.RevokeRole("alice", "R1", "_SYSTEM"); err != nil {
		t.Fatalf("RevokeRole by admin: %v", err)
	}
	if !m.Lookup("alice").HasRole(m.Lookup("alice")) {
		t.Fatalf("sanity: HasRole on self should still hold")
	}

	// Revoking a role alice no longer holds is a silent no-op, not an error.
	if err := m.RevokeRole("alice", "R1", "_SYSTEM"); err != nil {
		t.Fatalf("revoking an unheld role should be a silent no-op, got %v", err)
	}
	// Revoking a role that was never granted at all is the same no-op.
	if err := m.RevokeRole("alice", "NOSUCHROLE", "_SYSTEM"); err != nil {
		t.Fatalf("revoking an unknown role should also be a silent no-op, got %v", err)
	}
}

func TestDropRoleRejectsReservedAndNonRoles(t *testing.T) {
	m := newTestManager(t)
	m.AddUser("alice")

	if err := m.DropRole("DBA"); err == nil {
		t.Fatalf("DropRole should reject a reserved role")
	}
	if err := m.DropRole("alice"); err == nil {
		t.Fatalf("DropRole should reject a user")
	}

	m.AddRole("R1")
	if err := m.DropRole("R1"); err != nil {
		t.Fatalf("DropRole on an ordinary role: %v", err)
	}
	if m.Lookup("R1") != nil {
		t.Fatalf("R1 should be gone after DropRole")
	}
}

func TestDropRoleSweepsItFromEveryGrantee(t *testing.T) {
	m := newTestManager(t)
	m.AddRole("R1")
	m.AddUser("alice")
	if err := m.GrantRole("alice", "R1", "_SYSTEM"); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	t1 := testObject{name: "T1"}
	session := &testSession{user: "_SYSTEM"}
	if err := m.Grant(session, []string{"R1"}, t1, NewRight(PrivSelect), "_SYSTEM", false); err != nil {
		t.Fatalf("seed object grant: %v", err)
	}
	if err := m.Lookup("alice").checkRight("T1", NewRight(PrivSelect)); err != nil {
		t.Fatalf("sanity check before drop: %v", err)
	}

	if err := m.DropRole("R1"); err != nil {
		t.Fatalf("DropRole: %v", err)
	}
	if m.Lookup("alice").checkRight("T1", NewRight(PrivSelect)) == nil {
		t.Fatalf("alice should lose T1 access once R1 is dropped")
	}
}

func TestRemoveDbObjectClearsEveryGranteesRights(t *testing.T) {
	m := newTestManager(t)
	m.AddUser("alice")
	t1 := testObject{name: "T1"}
	session := &testSession{user: "_SYSTEM"}
	if err := m.Grant(session, []string{"alice"}, t1, NewRight(PrivSelect), "_SYSTEM", false); err != nil {
		t.Fatalf("seed grant: %v", err)
	}

	m.RemoveDbObject("T1")
	if m.Lookup("alice").checkRight("T1", NewRight(PrivSelect)) == nil {
		t.Fatalf("alice should lose access once T1 is dropped from the catalog")
	}
}

func TestGetSQLArrayExcludesReservedAndExternal(t *testing.T) {
	m := newTestManager(t)
	hasher := m.Hasher()
	u, _ := m.AddUser("alice")
	u.setPassword(hasher, "secret", false)
	m.AddRole("R1")
	ext, _ := m.AddUser("ext")
	ext.isExternalOnly = true

	ddl := m.GetSQLArray()
	foundAlice, foundExt, foundSystem := false, false, false
	for _, stmt := range ddl {
		if stmt == `CREATE USER "alice" PASSWORD DIGEST '`+hasher.Digest("secret")+`'` {
			foundAlice = true
		}
		if stmt == `CREATE USER "ext" PASSWORD DIGEST ''` {
			foundExt = true
		}
		if stmt == `CREATE USER "_SYSTEM" PASSWORD DIGEST ''` {
			foundSystem = true
		}
	}
	if !foundAlice {
		t.Fatalf("GetSQLArray should include alice's CREATE USER, got %v", ddl)
	}
	if foundExt {
		t.Fatalf("GetSQLArray should exclude external-only users, got %v", ddl)
	}
	if foundSystem {
		t.Fatalf("GetSQLArray should exclude _SYSTEM, got %v", ddl)
	}
	for _, stmt := range ddl {
		if stmt == "CREATE ROLE \"DBA\"" {
			t.Fatalf("GetSQLArray should exclude reserved roles, got %v", ddl)
		}
	}
}

func TestGetRightsSQLArrayIsStableAcrossCalls(t *testing.T) {
	m := newTestManager(t)
	m.AddUser("alice")
	m.AddRole("R1")
	t1 := testObject{name: "T1"}
	t2 := testObject{name: "T2"}
	session := &testSession{user: "_SYSTEM"}
	m.Grant(session, []string{"alice"}, t1, NewRight(PrivSelect), "_SYSTEM", true)
	m.Grant(session, []string{"alice"}, t2, NewRight(PrivInsert), "_SYSTEM", false)
	m.GrantRole("alice", "R1", "_SYSTEM")

	first := m.GetRightsSQLArray()
	second := m.GetRightsSQLArray()
	if len(first) != len(second) {
		t.Fatalf("GetRightsSQLArray length changed across calls: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("GetRightsSQLArray not stable at index %d: %q vs %q", i, first[i], second[i])
		}
	}
}
