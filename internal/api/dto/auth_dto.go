package dto

import "github.com/spec-kit/ticketdesk/internal/domain"

// CredentialsRequest is the body of signup and password grants.
type CredentialsRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// UpdateUserRequest replaces entries in the account metadata.
type UpdateUserRequest struct {
	Data map[string]any `json:"data"`
}

// UserResponse describes an account.
type UserResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// SessionResponse is returned by a password grant, and by signup when
// accounts are confirmed automatically.
type SessionResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// AuthErrorResponse mirrors the error body of the auth endpoints.
type AuthErrorResponse struct {
	ErrorCode        string `json:"error_code,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	Msg              string `json:"msg,omitempty"`
}

func NewUserResponse(u domain.User) UserResponse {
	meta := u.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return UserResponse{ID: u.ID, Email: u.Email, UserMetadata: meta}
}
