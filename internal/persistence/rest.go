package persistence

import (
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/config"
)

// NewRestClient builds the resty client shared by the PostgREST row store and
// the auth provider. Retries apply to transport failures and 5xx responses.
func NewRestClient(cfg config.RestConfig, logger *zap.Logger) *resty.Client {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetLogger(logger.Named("rest").Sugar()).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode() >= http.StatusInternalServerError)
		})

	if timeout := cfg.Timeout(); timeout > 0 {
		client.SetTimeout(timeout)
	}
	return client
}
