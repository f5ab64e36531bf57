package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spec-kit/ticketdesk/internal/domain"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

// AuthError is the error body returned by the auth endpoints. Depending on
// the endpoint it carries msg or error/error_description.
type AuthError struct {
	Status      int    `json:"-"`
	Code        string `json:"error_code,omitempty"`
	Name        string `json:"error,omitempty"`
	Description string `json:"error_description,omitempty"`
	Msg         string `json:"msg,omitempty"`
}

func (e *AuthError) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Description != "":
		return e.Description
	case e.Name != "":
		return e.Name
	}
	return http.StatusText(e.Status)
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u userResponse) toDomain() domain.User {
	return domain.User{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata}
}

// sessionResponse covers both shapes returned by signup: a full session, or
// the bare user when confirmation is required.
type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	User         *userResponse `json:"user"`
	userResponse
}

// RestProvider talks to the auth endpoints under /auth/v1.
type RestProvider struct {
	client  *resty.Client
	anonKey string
	now     func() time.Time
}

// NewRestProvider wraps a configured resty client.
func NewRestProvider(client *resty.Client, anonKey string) *RestProvider {
	return &RestProvider{client: client, anonKey: anonKey, now: time.Now}
}

func (p *RestProvider) request(ctx context.Context, bearer string) *resty.Request {
	req := p.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetError(&AuthError{})
	if p.anonKey != "" {
		req.SetHeader("apikey", p.anonKey)
	}
	if bearer == "" {
		bearer = p.anonKey
	}
	if bearer != "" {
		req.SetAuthToken(bearer)
	}
	return req
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p *RestProvider) SignIn(ctx context.Context, email, password string) (*AuthSession, error) {
	var out sessionResponse
	resp, err := p.request(ctx, "").
		SetQueryParam("grant_type", "password").
		SetBody(credentials{Email: email, Password: password}).
		SetResult(&out).
		Post("/auth/v1/token")
	if err := authResponseError(resp, err); err != nil {
		return nil, err
	}
	return p.toSession(out)
}

func (p *RestProvider) SignUp(ctx context.Context, email, password string) (*AuthSession, error) {
	var out sessionResponse
	resp, err := p.request(ctx, "").
		SetBody(credentials{Email: email, Password: password}).
		SetResult(&out).
		Post("/auth/v1/signup")
	if err := authResponseError(resp, err); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return &AuthSession{User: out.userResponse.toDomain(), Pending: true}, nil
	}
	return p.toSession(out)
}

func (p *RestProvider) UpdateMetadata(ctx context.Context, accessToken string, data map[string]any) (*domain.User, error) {
	var out userResponse
	resp, err := p.request(ctx, accessToken).
		SetBody(map[string]any{"data": data}).
		SetResult(&out).
		Put("/auth/v1/user")
	if err := authResponseError(resp, err); err != nil {
		return nil, err
	}
	user := out.toDomain()
	return &user, nil
}

func (p *RestProvider) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	if accessToken == "" || TokenExpired(accessToken, p.now()) {
		return nil, apperrors.NewUnauthorizedError("session expired", nil)
	}
	var out userResponse
	resp, err := p.request(ctx, accessToken).
		SetResult(&out).
		Get("/auth/v1/user")
	if err := authResponseError(resp, err); err != nil {
		return nil, err
	}
	user := out.toDomain()
	return &user, nil
}

func (p *RestProvider) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	resp, err := p.request(ctx, accessToken).Post("/auth/v1/logout")
	return authResponseError(resp, err)
}

// toSession fills the user from the token claims when the response omits it.
func (p *RestProvider) toSession(out sessionResponse) (*AuthSession, error) {
	session := &AuthSession{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	if out.ExpiresIn > 0 {
		session.ExpiresAt = p.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	if out.User != nil {
		session.User = out.User.toDomain()
		return session, nil
	}
	claims, err := ParseUnverified(out.AccessToken)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("malformed access token", err)
	}
	session.User = claims.User()
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// authResponseError maps transport failures to NETWORK, rejected credentials
// or tokens to UNAUTHORIZED and anything else to UNKNOWN.
func authResponseError(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apperrors.NewNetworkError(err)
	}
	if resp == nil || resp.IsSuccess() {
		return nil
	}
	authErr, ok := resp.Error().(*AuthError)
	if !ok || authErr == nil {
		authErr = &AuthError{}
	}
	authErr.Status = resp.StatusCode()
	switch {
	case authErr.Status >= 400 && authErr.Status < 500:
		return apperrors.NewUnauthorizedError(authErr.Error(), authErr)
	default:
		return apperrors.NewUnknownError(authErr.Error(), authErr)
	}
}
