package gateway

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/ticketdesk/internal/repository"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

var schemaCodes = map[string]struct{}{
	"42703":                      {}, // undefined_column
	"42P01":                      {}, // undefined_table
	repository.CodeUnknownColumn: {},
	repository.CodeUnknownTable:  {},
}

// Classify maps a store or transport failure onto the error taxonomy.
// Errors that already carry a code are returned unchanged.
func Classify(err error) *apperrors.DomainError {
	if err == nil {
		return nil
	}

	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := schemaCodes[pgErr.Code]; ok {
			return apperrors.NewSchemaError("", err)
		}
	}
	var storeErr *repository.StoreError
	if errors.As(err, &storeErr) {
		if _, ok := schemaCodes[storeErr.Code]; ok {
			return apperrors.NewSchemaError("", err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewNetworkError(err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return apperrors.NewNetworkError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewNetworkError(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "could not find"),
		strings.Contains(msg, "schema"),
		strings.Contains(msg, "does not exist"):
		return apperrors.NewSchemaError("", err)
	case strings.Contains(msg, "fetch"), strings.Contains(msg, "network"):
		return apperrors.NewNetworkError(err)
	}
	return apperrors.NewUnknownError("", err)
}
