package records

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qSelect  = `(?s)^SELECT\s+field,\s*value\s+FROM\s+user_record_fields\s+WHERE\s+email\s*=\s*\$1\s*$`
	qUpsert  = `(?s)^INSERT\s+INTO\s+user_record_fields\s*\(email,\s*field,\s*value\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)`
	qBump    = `(?s)^INSERT\s+INTO\s+user_record_fields\s*\(email,\s*field,\s*value\)\s*VALUES\s*\(\$1,\s*'version',\s*'1'\)`
	qCAS     = `(?s)^UPDATE\s+user_record_fields\s+SET\s+value\s*=\s*\$3.*WHERE\s+email\s*=\s*\$1\s+AND\s+field\s*=\s*'version'\s+AND\s+value\s*=\s*\$2`
	qDelete  = `^DELETE\s+FROM\s+user_record_fields\s+WHERE\s+email\s*=\s*\$1$`
	emailA   = "a@x.com"
	calsJSON = `[{"id":"F1","name":"Calendar"}]`
)

func newPostgresWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp), sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func recordRows(version string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"field", "value"}).
		AddRow(FieldPassword, "iv:ct").
		AddRow(FieldCalendars, calsJSON).
		AddRow(FieldVersion, version)
}

func TestPostgres_GetFound(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnRows(recordRows("3"))

	rec, err := repo.Get(context.Background(), emailA)
	require.NoError(t, err)
	assert.Equal(t, &models.UserRecord{
		Email:                emailA,
		CredentialCiphertext: "iv:ct",
		Calendars:            []models.Calendar{{ID: "F1", Name: "Calendar"}},
		Version:              3,
	}, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMissing(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnRows(sqlmock.NewRows([]string{"field", "value"}))

	_, err := repo.Get(context.Background(), emailA)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPostgres_GetDBError(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnError(errors.New("conn refused"))

	_, err := repo.Get(context.Background(), emailA)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}

func TestPostgres_Put(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(qUpsert).WithArgs(emailA, FieldPassword, "iv:ct").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qUpsert).WithArgs(emailA, FieldCalendars, calsJSON).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qBump).WithArgs(emailA).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cals := []models.Calendar{{ID: "F1", Name: "Calendar"}}
	err := repo.Put(context.Background(), emailA, models.RecordFields{CredentialCiphertext: ptr("iv:ct"), Calendars: &cals})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutRollsBackOnError(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(qUpsert).WithArgs(emailA, FieldPassword, "iv:ct").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Put(context.Background(), emailA, models.RecordFields{CredentialCiphertext: ptr("iv:ct")})
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutNothing(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	require.NoError(t, repo.Put(context.Background(), emailA, models.RecordFields{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateCalendars(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnRows(recordRows("3"))
	mock.ExpectExec(qCAS).WithArgs(emailA, "3", "4").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qUpsert).
		WithArgs(emailA, FieldCalendars, `[{"id":"F1","name":"Calendar"},{"id":"F2","name":"Team"}]`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.UpdateCalendars(context.Background(), emailA, func(cur []models.Calendar) []models.Calendar {
		return append(cur, models.Calendar{ID: "F2", Name: "Team"})
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Calendar{{ID: "F1", Name: "Calendar"}, {ID: "F2", Name: "Team"}}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateCalendarsRetriesLostRace(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnRows(recordRows("3"))
	mock.ExpectExec(qCAS).WithArgs(emailA, "3", "4").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnRows(recordRows("4"))
	mock.ExpectExec(qCAS).WithArgs(emailA, "4", "5").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qUpsert).WithArgs(emailA, FieldCalendars, `[]`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.UpdateCalendars(context.Background(), emailA, func([]models.Calendar) []models.Calendar { return nil })
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateCalendarsRetriesSerializationFailure(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnRows(recordRows("3"))
	mock.ExpectExec(qCAS).WithArgs(emailA, "3", "4").WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnRows(recordRows("4"))
	mock.ExpectExec(qCAS).WithArgs(emailA, "4", "5").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qUpsert).WithArgs(emailA, FieldCalendars, `[]`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.UpdateCalendars(context.Background(), emailA, func([]models.Calendar) []models.Calendar { return nil })
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateCalendarsGivesUp(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	for i := 0; i < MaxUpdateRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnRows(recordRows("3"))
		mock.ExpectExec(qCAS).WithArgs(emailA, "3", "4").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
	}

	_, err := repo.UpdateCalendars(context.Background(), emailA, func(cur []models.Calendar) []models.Calendar { return cur })
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateCalendarsMissingRecord(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(qSelect).WithArgs(emailA).WillReturnRows(sqlmock.NewRows([]string{"field", "value"}))
	mock.ExpectRollback()

	_, err := repo.UpdateCalendars(context.Background(), emailA, func(cur []models.Calendar) []models.Calendar { return cur })
	assert.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateCalendarsBeginFails(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := repo.UpdateCalendars(context.Background(), emailA, func(cur []models.Calendar) []models.Calendar { return cur })
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestPostgres_DeleteAndPing(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	mock.ExpectExec(qDelete).WithArgs(emailA).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("gone"))

	require.NoError(t, repo.Delete(context.Background(), emailA))
	require.NoError(t, repo.Ping(context.Background()))
	assert.ErrorIs(t, repo.Ping(context.Background()), common.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_Success(t *testing.T) {
	repo, _ := newPostgresWithMock(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	require.NoError(t, repo.RunMigrations(context.Background()))
}

func TestRunMigrations_Error(t *testing.T) {
	repo, _ := newPostgresWithMock(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := repo.RunMigrations(context.Background())
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}
