package enums

// Role is the verified actor role supplied by the auth collaborator.
type Role string

const (
	RoleUser    Role = "user"
	RoleCourier Role = "courier"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleCourier, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}
