package domain

import dErrors "fasela/pkg/domain-errors"

// Role is the caller role asserted by the identity provider.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
	RoleUser      Role = "user"
)

// ParseRole validates a role claim.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	switch r {
	case RoleAdmin, RoleVolunteer, RoleUser:
		return r, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
}

// CanManageLedger reports whether the role may confirm, cancel or allocate.
func (r Role) CanManageLedger() bool {
	return r == RoleAdmin
}

// CanReadLedger reports whether the role may read donations and reports.
func (r Role) CanReadLedger() bool {
	return r == RoleAdmin || r == RoleVolunteer
}

func (r Role) String() string {
	return string(r)
}
