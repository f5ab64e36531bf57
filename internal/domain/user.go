package domain

import "strings"

// User is the authenticated account behind a session.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// LocalUserID identifies the account used when no backend is configured.
const LocalUserID = "local"

// MetadataRole returns the role recorded in the account metadata, if any.
func (u *User) MetadataRole() (Role, bool) {
	if u == nil || u.Metadata == nil {
		return "", false
	}
	raw, ok := u.Metadata["role"].(string)
	if !ok {
		return "", false
	}
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// NormalizeEmail trims and lower-cases an address for use as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
