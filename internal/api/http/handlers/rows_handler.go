package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/repository"
)

// RowsHandler serves the subset of the PostgREST dialect the ticket layer
// speaks: eq filters, one order column, offset/limit, exact counts and
// return=representation.
type RowsHandler struct {
	store repository.RowStore
}

// NewRowsHandler constructs handler.
func NewRowsHandler(store repository.RowStore) *RowsHandler {
	return &RowsHandler{store: store}
}

// Select handles GET /rest/v1/:table.
func (h *RowsHandler) Select(c *fiber.Ctx) error {
	q, err := parseRowQuery(c)
	if err != nil {
		return err
	}
	q.WithCount = preferHas(c, "count=exact")

	rows, total, err := h.store.Select(c.UserContext(), c.Params("table"), q)
	if err != nil {
		return err
	}
	if q.WithCount {
		c.Set("Content-Range", contentRange(q.Offset, len(rows), total))
	}
	return c.JSON(rowsOrEmpty(rows))
}

// Insert handles POST /rest/v1/:table with one row or an array of rows.
func (h *RowsHandler) Insert(c *fiber.Ctx) error {
	rows, err := decodeRows(c.Body())
	if err != nil {
		return err
	}

	created := make([]repository.Row, 0, len(rows))
	for _, row := range rows {
		stored, err := h.store.Insert(c.UserContext(), c.Params("table"), row)
		if err != nil {
			return err
		}
		created = append(created, stored)
	}
	if !preferHas(c, "return=representation") {
		return c.SendStatus(http.StatusCreated)
	}
	return c.Status(http.StatusCreated).JSON(created)
}

// Update handles PATCH /rest/v1/:table?id=eq.<id>.
func (h *RowsHandler) Update(c *fiber.Ctx) error {
	id, err := idFilter(c)
	if err != nil {
		return err
	}
	var patch repository.Row
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return badRequest("PGRST102", "Invalid body: "+err.Error())
	}

	updated, err := h.store.Update(c.UserContext(), c.Params("table"), id, patch)
	if err != nil {
		return err
	}
	rows := []repository.Row{}
	if updated != nil {
		rows = append(rows, updated)
	}
	if !preferHas(c, "return=representation") {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.JSON(rows)
}

// Delete handles DELETE /rest/v1/:table?id=eq.<id>.
func (h *RowsHandler) Delete(c *fiber.Ctx) error {
	id, err := idFilter(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.UserContext(), c.Params("table"), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

var reservedParams = map[string]struct{}{
	"select": {}, "order": {}, "offset": {}, "limit": {},
}

func parseRowQuery(c *fiber.Ctx) (repository.SelectQuery, error) {
	q := repository.SelectQuery{}
	var parseErr error
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		k, v := string(key), string(value)
		if parseErr != nil {
			return
		}
		if _, reserved := reservedParams[k]; reserved {
			return
		}
		op, operand, ok := strings.Cut(v, ".")
		if !ok || op != "eq" {
			parseErr = badRequest("PGRST100", fmt.Sprintf("unsupported filter %s=%s", k, v))
			return
		}
		if q.Eq == nil {
			q.Eq = map[string]any{}
		}
		q.Eq[k] = operand
	})
	if parseErr != nil {
		return q, parseErr
	}

	if order := c.Query("order"); order != "" {
		col, dir, _ := strings.Cut(order, ".")
		q.OrderBy = col
		q.Descending = strings.HasPrefix(dir, "desc")
	}
	var err error
	if q.Offset, err = intParam(c, "offset"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(c, "limit"); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("PGRST100", fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}

func idFilter(c *fiber.Ctx) (string, error) {
	op, id, ok := strings.Cut(c.Query("id"), ".")
	if !ok || op != "eq" || id == "" {
		return "", badRequest("21000", "a filter on id is required")
	}
	return id, nil
}

func decodeRows(body []byte) ([]repository.Row, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var rows []repository.Row
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, badRequest("PGRST102", "Invalid body: "+err.Error())
		}
		return rows, nil
	}
	var row repository.Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, badRequest("PGRST102", "Invalid body: "+err.Error())
	}
	return []repository.Row{row}, nil
}

func preferHas(c *fiber.Ctx, token string) bool {
	for _, part := range strings.Split(c.Get("Prefer"), ",") {
		if strings.TrimSpace(part) == token {
			return true
		}
	}
	return false
}

func contentRange(offset, n, total int) string {
	if n == 0 {
		return fmt.Sprintf("*/%d", total)
	}
	return fmt.Sprintf("%d-%d/%d", offset, offset+n-1, total)
}

func rowsOrEmpty(rows []repository.Row) []repository.Row {
	if rows == nil {
		return []repository.Row{}
	}
	return rows
}

func badRequest(code, message string) error {
	return &repository.StoreError{Status: http.StatusBadRequest, Code: code, Message: message}
}
