package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/ticketdesk/internal/api/dto"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/mapper"
	"github.com/spec-kit/ticketdesk/internal/repository"
)

// AccountsTable holds dev backend accounts.
const AccountsTable = "auth_users"

// AccountColumns are the columns of AccountsTable besides id and created_at.
func AccountColumns() []string {
	return []string{"email", "password_hash", "user_metadata"}
}

// AuthHandler serves the password-based subset of the /auth/v1 API.
type AuthHandler struct {
	store       repository.RowStore
	tokens      *auth.TokenManager
	bcryptCost  int
	autoConfirm bool
}

// NewAuthHandler constructs handler. Accounts live in AccountsTable of store.
func NewAuthHandler(store repository.RowStore, tokens *auth.TokenManager, bcryptCost int, autoConfirm bool) *AuthHandler {
	return &AuthHandler{store: store, tokens: tokens, bcryptCost: bcryptCost, autoConfirm: autoConfirm}
}

// SignUp handles POST /auth/v1/signup.
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return authError(c, http.StatusBadRequest, "bad_json", "invalid payload")
	}
	email := domain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return authError(c, http.StatusBadRequest, "validation_failed", "email and password required")
	}

	if _, _, err := h.findByEmail(c.UserContext(), email); err == nil {
		return authError(c, http.StatusUnprocessableEntity, "user_already_exists", "User already registered")
	} else if !errors.Is(err, errAccountNotFound) {
		return err
	}

	hash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		return err
	}
	meta := req.Data
	if meta == nil {
		meta = map[string]any{}
	}
	row, err := h.store.Insert(c.UserContext(), AccountsTable, repository.Row{
		"id":            uuid.NewString(),
		"email":         email,
		"password_hash": hash,
		"user_metadata": meta,
	})
	if err != nil {
		return err
	}

	user := accountUser(row)
	if !h.autoConfirm {
		return c.JSON(dto.NewUserResponse(user))
	}
	return h.issueSession(c, user)
}

// Token handles POST /auth/v1/token?grant_type=password.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	if grant := c.Query("grant_type"); grant != "password" {
		return authError(c, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant type "+grant)
	}
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return authError(c, http.StatusBadRequest, "bad_json", "invalid payload")
	}

	user, hash, err := h.findByEmail(c.UserContext(), domain.NormalizeEmail(req.Email))
	if errors.Is(err, errAccountNotFound) {
		return invalidGrant(c)
	}
	if err != nil {
		return err
	}
	if !auth.PasswordMatches(hash, req.Password) {
		return invalidGrant(c)
	}
	return h.issueSession(c, user)
}

// User handles GET /auth/v1/user.
func (h *AuthHandler) User(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	row, err := h.findByID(c.UserContext(), principal.Claims.Subject)
	if errors.Is(err, errAccountNotFound) {
		return authError(c, http.StatusNotFound, "user_not_found", "User not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(accountUser(row)))
}

// UpdateUser handles PUT /auth/v1/user. Keys in data are merged into the
// account metadata.
func (h *AuthHandler) UpdateUser(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return authError(c, http.StatusBadRequest, "bad_json", "invalid payload")
	}

	row, err := h.findByID(c.UserContext(), principal.Claims.Subject)
	if errors.Is(err, errAccountNotFound) {
		return authError(c, http.StatusNotFound, "user_not_found", "User not found")
	}
	if err != nil {
		return err
	}
	meta := accountUser(row).Metadata
	for k, v := range req.Data {
		meta[k] = v
	}
	updated, err := h.store.Update(c.UserContext(), AccountsTable, principal.Claims.Subject, repository.Row{"user_metadata": meta})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(accountUser(updated)))
}

// Logout handles POST /auth/v1/logout. Tokens are stateless, so nothing is
// revoked.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return c.SendStatus(http.StatusNoContent)
}

func (h *AuthHandler) issueSession(c *fiber.Ctx, user domain.User) error {
	token, expiresAt, err := h.tokens.GenerateToken(user)
	if err != nil {
		return err
	}
	return c.JSON(dto.SessionResponse{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    int(time.Until(expiresAt).Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		RefreshToken: uuid.NewString(),
		User:         dto.NewUserResponse(user),
	})
}

var errAccountNotFound = errors.New("account not found")

func (h *AuthHandler) findByEmail(ctx context.Context, email string) (domain.User, string, error) {
	row, err := h.findOne(ctx, "email", email)
	if err != nil {
		return domain.User{}, "", err
	}
	hash, _ := row.String("password_hash")
	return accountUser(row), hash, nil
}

func (h *AuthHandler) findByID(ctx context.Context, id string) (repository.Row, error) {
	return h.findOne(ctx, "id", id)
}

func (h *AuthHandler) findOne(ctx context.Context, column, value string) (repository.Row, error) {
	if value == "" {
		return nil, errAccountNotFound
	}
	rows, _, err := h.store.Select(ctx, AccountsTable, repository.SelectQuery{
		Eq:    map[string]any{column: value},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errAccountNotFound
	}
	return rows[0], nil
}

func accountUser(row repository.Row) domain.User {
	email, _ := row.String("email")
	return domain.User{
		ID:       mapper.IDString(row["id"]),
		Email:    email,
		Metadata: metadataValue(row["user_metadata"]),
	}
}

// metadataValue copies metadata held as a map or, from SQL stores, as JSON.
func metadataValue(v any) map[string]any {
	out := map[string]any{}
	switch m := v.(type) {
	case map[string]any:
		for k, val := range m {
			out[k] = val
		}
	case string:
		_ = json.Unmarshal([]byte(m), &out)
	case []byte:
		_ = json.Unmarshal(m, &out)
	}
	return out
}

func invalidGrant(c *fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(dto.AuthErrorResponse{
		Error:            "invalid_grant",
		ErrorDescription: "Invalid login credentials",
	})
}

func authError(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(dto.AuthErrorResponse{ErrorCode: code, Msg: strings.TrimSpace(msg)})
}
