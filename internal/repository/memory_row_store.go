package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrStoreOffline is returned by a MemoryRowStore that has been taken offline.
var ErrStoreOffline = errors.New("network unreachable: store offline")

// MemoryRowStore keeps tables in process. Tables declared with a column set
// reject writes naming other columns the way PostgREST does, which lets tests
// and the dev backend reproduce a schema that lags behind the client.
type MemoryRowStore struct {
	mu      sync.RWMutex
	tables  map[string]*memoryTable
	offline bool
	now     func() time.Time
}

type memoryTable struct {
	columns map[string]struct{}
	rows    []Row
	seq     int64
}

// NewMemoryRowStore creates an empty store.
func NewMemoryRowStore() *MemoryRowStore {
	return &MemoryRowStore{
		tables: make(map[string]*memoryTable),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DefineTable declares a table. With no columns the table accepts any column.
// Redefining a table drops its rows.
func (s *MemoryRowStore) DefineTable(name string, columns ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl := &memoryTable{}
	if len(columns) > 0 {
		tbl.columns = make(map[string]struct{}, len(columns)+2)
		for _, c := range columns {
			tbl.columns[c] = struct{}{}
		}
		tbl.columns["id"] = struct{}{}
		tbl.columns["created_at"] = struct{}{}
	}
	s.tables[name] = tbl
}

// SetOffline makes every call fail as if the backend were unreachable.
func (s *MemoryRowStore) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

func (s *MemoryRowStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.offline {
		return ErrStoreOffline
	}
	return nil
}

func (s *MemoryRowStore) Select(ctx context.Context, table string, q SelectQuery) ([]Row, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	tbl, err := s.table(table)
	if err != nil {
		return nil, 0, err
	}
	for col := range q.Eq {
		if !tbl.allows(col) {
			return nil, 0, unknownColumnError(table, col)
		}
	}

	matched := make([]Row, 0, len(tbl.rows))
	for _, row := range tbl.rows {
		if matchesEq(row, q.Eq) {
			matched = append(matched, row)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareValues(matched[i][q.OrderBy], matched[j][q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	total := len(matched)
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	out := make([]Row, 0, end-start)
	for _, row := range matched[start:end] {
		out = append(out, row.Clone())
	}
	if !q.WithCount {
		total = 0
	}
	return out, total, nil
}

func (s *MemoryRowStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}
	if err := tbl.checkColumns(table, row); err != nil {
		return nil, err
	}

	stored := row.Clone()
	if stored == nil {
		stored = Row{}
	}
	if _, ok := stored["id"]; !ok {
		tbl.seq++
		stored["id"] = tbl.seq
	}
	if v, ok := stored["created_at"]; !ok || v == nil {
		stored["created_at"] = s.now()
	}
	tbl.rows = append(tbl.rows, stored)
	return stored.Clone(), nil
}

// Update merges patch into the row with the given id. A missing row yields
// (nil, nil), matching an UPDATE that touched nothing.
func (s *MemoryRowStore) Update(ctx context.Context, table, id string, patch Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}
	if err := tbl.checkColumns(table, patch); err != nil {
		return nil, err
	}

	for _, row := range tbl.rows {
		if idString(row["id"]) != id {
			continue
		}
		for k, v := range patch {
			if k == "id" {
				continue
			}
			row[k] = v
		}
		return row.Clone(), nil
	}
	return nil, nil
}

func (s *MemoryRowStore) Delete(ctx context.Context, table, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, err := s.table(table)
	if err != nil {
		return err
	}
	kept := tbl.rows[:0]
	for _, row := range tbl.rows {
		if idString(row["id"]) != id {
			kept = append(kept, row)
		}
	}
	tbl.rows = kept
	return nil
}

// must be called with s.mu held.
func (s *MemoryRowStore) table(name string) (*memoryTable, error) {
	if s.offline {
		return nil, ErrStoreOffline
	}
	tbl, ok := s.tables[name]
	if !ok {
		return nil, unknownTableError(name)
	}
	return tbl, nil
}

func (t *memoryTable) allows(column string) bool {
	if t.columns == nil {
		return true
	}
	_, ok := t.columns[column]
	return ok
}

func (t *memoryTable) checkColumns(table string, row Row) error {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		if !t.allows(c) {
			return unknownColumnError(table, c)
		}
	}
	return nil
}

func matchesEq(row Row, eq map[string]any) bool {
	for col, want := range eq {
		if fmt.Sprint(row[col]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func idString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// compareValues orders nil first, then times, numbers and strings.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb)
		}
	}
	if na, ok := asFloat(a); ok {
		if nb, ok := asFloat(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
