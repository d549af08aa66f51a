package grantauth

import "fmt"

// Code is a SQLSTATE-aligned condition code. The session layer maps these
// to full SQLSTATE strings at the boundary; grantauth only ever produces
// the bare code plus, for most conditions, a single name argument.
type Code string

const (
	CodeInvalidAuthSpec       Code = "X_28000" // password mismatch, revoke of unknown user, external-only grantee
	CodeGranteeNotFound       Code = "X_28501"
	CodeGranteeImmutable      Code = "X_28502"
	CodeGranteeExists         Code = "X_28503"
	CodeNotAuthorized         Code = "X_42507" // admin-only path used by non-admin; drop of a reserved principal
	CodeNotAuthorizedObject   Code = "X_42501" // object-level check failure
	CodeInvalidRole           Code = "X_0P000" // unknown role, or filter-grant to a non-role
	CodeInvalidRoleCycle      Code = "X_0P501" // self-grant or cycle
	CodeDependentGrantMissing Code = "X_0L000" // grantor holds none of the requested right
	CodeInvalidCollation      Code = "X_2H000" // collation on a non-character type (expression subsystem)
	CodeUnknownRightToken     Code = "X_42581" // unrecognized SQL right keyword
	CodeWarningPartialGrant   Code = "W_01007" // not an error: some subset of the grant was not grantable
)

// GranteeError is the one error type for every fatal authorization
// condition. Name carries the single qualified name the condition refers
// to (a grantee, role, or object name); it is empty when the condition
// doesn't name anything in particular.
type GranteeError struct {
	Code Code
	Name string
}

func (e *GranteeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Code, codeMessage(e.Code))
	}
	return fmt.Sprintf("%s: %s: %q", e.Code, codeMessage(e.Code), e.Name)
}

func newErr(code Code, name string) *GranteeError {
	return &GranteeError{Code: code, Name: name}
}

func codeMessage(code Code) string {
	switch code {
	case CodeInvalidAuthSpec:
		return "invalid authorization specification"
	case CodeGranteeNotFound:
		return "grantee not found"
	case CodeGranteeImmutable:
		return "grantee is immutable"
	case CodeGranteeExists:
		return "grantee already exists"
	case CodeNotAuthorized:
		return "not authorized"
	case CodeNotAuthorizedObject:
		return "not authorized on object"
	case CodeInvalidRole:
		return "invalid role specification"
	case CodeInvalidRoleCycle:
		return "invalid role specification: cyclic role grant"
	case CodeDependentGrantMissing:
		return "dependent privilege not granted"
	case CodeInvalidCollation:
		return "invalid collation name"
	case CodeUnknownRightToken:
		return "not a valid right"
	default:
		return "authorization error"
	}
}

// Warning is the one non-fatal condition in the taxonomy: a partial grant.
// It is handed to Session.AddWarning rather than returned as an error.
type Warning struct {
	Code Code
	Name string
}

func (w *Warning) Error() string {
	return fmt.Sprintf("%s: partial grant, some privileges not grantable: %q", w.Code, w.Name)
}

func newPartialGrantWarning(objectName string) *Warning {
	return &Warning{Code: CodeWarningPartialGrant, Name: objectName}
}
