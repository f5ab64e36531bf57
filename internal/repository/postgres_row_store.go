package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool used by PostgresRowStore.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresRowStore talks to PostgreSQL directly.
type PostgresRowStore struct {
	db   Querier
	psql sq.StatementBuilderType
}

// NewPostgresRowStore constructs the store.
func NewPostgresRowStore(db Querier) *PostgresRowStore {
	return &PostgresRowStore{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *PostgresRowStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("postgres pool not configured")
	}
	return s.db.Ping(ctx)
}

func (s *PostgresRowStore) Select(ctx context.Context, table string, q SelectQuery) ([]Row, int, error) {
	builder := s.psql.Select("*").From(table)
	if len(q.Eq) > 0 {
		builder = builder.Where(sq.Eq(q.Eq))
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		builder = builder.OrderBy(fmt.Sprintf("%s %s", q.OrderBy, dir))
	}
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		builder = builder.Offset(uint64(q.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, 0, err
	}

	if !q.WithCount {
		return out, 0, nil
	}

	countBuilder := s.psql.Select("COUNT(*)").From(table)
	if len(q.Eq) > 0 {
		countBuilder = countBuilder.Where(sq.Eq(q.Eq))
	}
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := s.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, int(total), nil
}

func (s *PostgresRowStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	query, args, err := s.psql.Insert(table).SetMap(map[string]any(row)).Suffix("RETURNING *").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	return s.queryOne(ctx, query, args)
}

func (s *PostgresRowStore) Update(ctx context.Context, table, id string, patch Row) (Row, error) {
	query, args, err := s.psql.Update(table).
		SetMap(map[string]any(patch)).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	return s.queryOne(ctx, query, args)
}

func (s *PostgresRowStore) Delete(ctx context.Context, table, id string) error {
	query, args, err := s.psql.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	_, err = s.db.Exec(ctx, query, args...)
	return err
}

// queryOne returns the first returned row, or nil when the statement matched nothing.
func (s *PostgresRowStore) queryOne(ctx context.Context, query string, args []any) (Row, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		fields := rows.FieldDescriptions()
		row := make(Row, len(fields))
		for i, fd := range fields {
			if i < len(values) {
				row[fd.Name] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
