package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationNames_Sorted(t *testing.T) {
	t.Parallel()

	names, err := MigrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"001_create_tickets.sql",
		"002_create_ticket_events.sql",
		"003_create_technicians.sql",
		"004_ticket_closed_at.sql",
	}, names)
}

func TestRunMigrations_SkipsApplied(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	applied := map[string]bool{
		"001_create_tickets.sql":       true,
		"002_create_ticket_events.sql": true,
	}
	names, err := MigrationNames()
	require.NoError(t, err)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	for _, name := range names {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(name).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(applied[name]))
		if applied[name] {
			continue
		}
		mock.ExpectExec(`CREATE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec(`INSERT INTO schema_migrations`).
			WithArgs(name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	n, err := RunMigrations(context.Background(), mock, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_StopsAtFailure(t *testing.T) {
	t.Parallel()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("001_create_tickets.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS tickets`).
		WillReturnError(errors.New("permission denied for schema public"))

	n, err := RunMigrations(context.Background(), mock, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 001_create_tickets.sql")
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_NoConnection(t *testing.T) {
	t.Parallel()
	_, err := RunMigrations(context.Background(), nil, zap.NewNop())
	assert.Error(t, err)
}
