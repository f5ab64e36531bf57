package domain

// Role differentiates ticket submitters from staff.
type Role string

const (
	RoleClient     Role = "CLIENTE"
	RoleTechnician Role = "TECNICO"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleTechnician
}

// Session is the authentication state observed by the UI layer.
type Session struct {
	User        *User  `json:"user,omitempty"`
	Role        Role   `json:"role,omitempty"`
	AccessToken string `json:"-"`
	AuthErr     error  `json:"-"`
}

// Authenticated reports whether a user is attached.
func (s Session) Authenticated() bool {
	return s.User != nil
}
