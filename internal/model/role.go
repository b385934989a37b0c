package model

import "strings"

// Role は利用者の区分です
type Role string

const (
	RoleDev Role = "DEV"
	RoleHR  Role = "HR"
	RoleHR1 Role = "HR1"
	RoleHR2 Role = "HR2"
)

var knownRoles = []Role{RoleDev, RoleHR, RoleHR1, RoleHR2}

// ParseRole normalizes a role token. Exact names win; any other value with the
// HR prefix collapses to RoleHR.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, r := range knownRoles {
		if Role(normalized) == r {
			return r, nil
		}
	}
	if strings.HasPrefix(normalized, string(RoleHR)) {
		return RoleHR, nil
	}
	return "", InvalidArgument("unknown role")
}

// ParseHRRole is ParseRole restricted to the roles that may create bookings.
func ParseHRRole(value string) (Role, error) {
	r, err := ParseRole(value)
	if err != nil {
		return "", err
	}
	if !r.IsHR() {
		return "", InvalidArgument("unknown role")
	}
	return r, nil
}

// IsHR reports whether r is an HR-side identity.
func (r Role) IsHR() bool {
	return r == RoleHR || r == RoleHR1 || r == RoleHR2
}

func (r Role) String() string {
	return string(r)
}
