package grantauth

// User specializes Grantee with the fields a principal needs to actually
// authenticate: a password digest, local/external-only flags, and an
// optional initial schema.
type User struct {
	Grantee

	passwordDigest string // hex, produced by PasswordHasher or supplied directly

	isLocalOnly    bool
	isExternalOnly bool // mutually exclusive with isLocalOnly

	initialSchema string // empty means "use the schema named the same as the user, else default"
}

func newUser(name string) *User {
	return &User{Grantee: *newGrantee(name, false)}
}

// IsLocalOnly reports whether this user may only authenticate locally.
func (u *User) IsLocalOnly() bool { return u.isLocalOnly }

// IsExternalOnly reports whether this user may only authenticate via an
// external identity provider (never emitted by the DDL serializer per
// §4.5/§6).
func (u *User) IsExternalOnly() bool { return u.isExternalOnly }

// InitialSchema returns the user's configured initial schema, or "" if
// none was set.
func (u *User) InitialSchema() string { return u.initialSchema }

// PasswordDigest returns the stored hex digest.
func (u *User) PasswordDigest() string { return u.passwordDigest }

// setPassword stores value as the user's password digest. When isDigest
// is false, value is run through hasher first; when true, value is
// assumed to already be a hex digest (e.g. loaded from DDL replay) and is
// stored as-is.
func (u *User) setPassword(hasher *PasswordHasher, value string, isDigest bool) {
	if isDigest {
		u.passwordDigest = value
		return
	}
	u.passwordDigest = hasher.Digest(value)
}

// CheckPassword hashes clear with hasher and compares it to the stored
// digest, failing with CodeInvalidAuthSpec on mismatch.
func (u *User) CheckPassword(hasher *PasswordHasher, clear string) error {
	if hasher.Digest(clear) != u.passwordDigest {
		return newErr(CodeInvalidAuthSpec, u.name)
	}
	return nil
}

// GetSQL renders the CREATE USER statement that recreates this user's
// identity (not its rights or role memberships — see manager_ddl.go).
func (u *User) GetSQL() string {
	return "CREATE USER " + quoteName(u.name) + " PASSWORD DIGEST '" + u.passwordDigest + "'"
}

// GetLocalUserSQL renders the ALTER USER ... SET LOCAL TRUE statement,
// or "" if the user isn't local-only.
func (u *User) GetLocalUserSQL() string {
	if !u.isLocalOnly {
		return ""
	}
	return "ALTER USER " + quoteName(u.name) + " SET LOCAL TRUE"
}

// GetInitialSchemaSQL renders the ALTER USER ... SET INITIAL SCHEMA
// statement, or "" if no initial schema was configured.
func (u *User) GetInitialSchemaSQL() string {
	if u.initialSchema == "" {
		return ""
	}
	return "ALTER USER " + quoteName(u.name) + " SET INITIAL SCHEMA " + quoteName(u.initialSchema)
}

func quoteName(name string) string {
	return `"` + name + `"`
}
