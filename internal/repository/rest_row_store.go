package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

// TokenSource yields the bearer token for the current session, or "" to fall
// back to the anon key.
type TokenSource func() string

// RestRowStore speaks the PostgREST dialect under /rest/v1.
type RestRowStore struct {
	client     *resty.Client
	anonKey    string
	probeTable string
	token      TokenSource
}

// NewRestRowStore wraps a configured resty client. probeTable is the table
// hit by Ping.
func NewRestRowStore(client *resty.Client, anonKey, probeTable string, token TokenSource) *RestRowStore {
	if token == nil {
		token = func() string { return "" }
	}
	return &RestRowStore{client: client, anonKey: anonKey, probeTable: probeTable, token: token}
}

func (s *RestRowStore) request(ctx context.Context) *resty.Request {
	bearer := s.token()
	if bearer == "" {
		bearer = s.anonKey
	}
	req := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetError(&StoreError{})
	if s.anonKey != "" {
		req.SetHeader("apikey", s.anonKey)
	}
	if bearer != "" {
		req.SetAuthToken(bearer)
	}
	return req
}

func tablePath(table string) string {
	return "/rest/v1/" + url.PathEscape(table)
}

func (s *RestRowStore) Ping(ctx context.Context) error {
	resp, err := s.request(ctx).
		SetQueryParam("select", "id").
		SetQueryParam("limit", "1").
		Get(tablePath(s.probeTable))
	return responseError(resp, err)
}

func (s *RestRowStore) Select(ctx context.Context, table string, q SelectQuery) ([]Row, int, error) {
	params := url.Values{}
	params.Set("select", "*")
	for col, v := range q.Eq {
		params.Set(col, "eq."+fmt.Sprint(v))
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var rows []Row
	req := s.request(ctx).SetQueryParamsFromValues(params).SetResult(&rows)
	if q.WithCount {
		req.SetHeader("Prefer", "count=exact")
	}
	resp, err := req.Get(tablePath(table))
	if err := responseError(resp, err); err != nil {
		return nil, 0, err
	}

	total := 0
	if q.WithCount {
		total = parseContentRangeTotal(resp.Header().Get("Content-Range"), len(rows))
	}
	return rows, total, nil
}

func (s *RestRowStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	var rows []Row
	resp, err := s.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetBody([]Row{row}).
		SetResult(&rows).
		Post(tablePath(table))
	if err := responseError(resp, err); err != nil {
		return nil, err
	}
	return first(rows), nil
}

func (s *RestRowStore) Update(ctx context.Context, table, id string, patch Row) (Row, error) {
	var rows []Row
	resp, err := s.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+id).
		SetBody(patch).
		SetResult(&rows).
		Patch(tablePath(table))
	if err := responseError(resp, err); err != nil {
		return nil, err
	}
	return first(rows), nil
}

func (s *RestRowStore) Delete(ctx context.Context, table, id string) error {
	resp, err := s.request(ctx).
		SetQueryParam("id", "eq."+id).
		Delete(tablePath(table))
	return responseError(resp, err)
}

func first(rows []Row) Row {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// responseError turns a transport failure or a non-2xx response into an error.
// Transport failures are returned as-is so callers can inspect them.
func responseError(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp == nil || resp.IsSuccess() {
		return nil
	}
	if storeErr, ok := resp.Error().(*StoreError); ok && storeErr != nil && storeErr.Message != "" {
		storeErr.Status = resp.StatusCode()
		return storeErr
	}
	// Bodies that did not decode as a PostgREST error.
	body := strings.TrimSpace(string(resp.Body()))
	var generic map[string]any
	if json.Unmarshal(resp.Body(), &generic) == nil {
		if msg, ok := generic["message"].(string); ok {
			body = msg
		}
	}
	if body == "" {
		body = resp.Status()
	}
	return &StoreError{Status: resp.StatusCode(), Message: body}
}

// parseContentRangeTotal reads the total from "0-19/42" or "*/0".
func parseContentRangeTotal(header string, fallback int) int {
	idx := strings.LastIndex(header, "/")
	if idx < 0 {
		return fallback
	}
	total, err := strconv.Atoi(strings.TrimSpace(header[idx+1:]))
	if err != nil {
		return fallback
	}
	return total
}
