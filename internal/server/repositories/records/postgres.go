package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/dbx"
	"github.com/dmitrijs2005/mailvault/internal/server/migrations"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepository stores each hash field of a record as one row of
// user_record_fields.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens a pgx-backed *sql.DB for dsn and checks it answers.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeError(err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func (r *PostgresRepository) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, r.db, ".")
}

func loadHash(ctx context.Context, db dbx.DBTX, email string) (map[string]string, error) {
	query :=
		`SELECT field, value FROM user_record_fields
		 WHERE email = $1
		 `

	rows, err := db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, storeError(err)
	}
	defer rows.Close()

	h := map[string]string{}
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, storeError(err)
		}
		h[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err)
	}
	if len(h) == 0 {
		return nil, common.ErrNotFound
	}
	return h, nil
}

func upsertField(ctx context.Context, db dbx.DBTX, email, field, value string) error {
	query :=
		`INSERT INTO user_record_fields (email, field, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email, field) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		 `

	if _, err := db.ExecContext(ctx, query, email, field, value); err != nil {
		return storeError(err)
	}
	return nil
}

func bumpVersion(ctx context.Context, db dbx.DBTX, email string) error {
	query :=
		`INSERT INTO user_record_fields (email, field, value)
		 VALUES ($1, 'version', '1')
		 ON CONFLICT (email, field) DO UPDATE SET value = (user_record_fields.value::bigint + 1)::text, updated_at = now()
		 `

	if _, err := db.ExecContext(ctx, query, email); err != nil {
		return storeError(err)
	}
	return nil
}

// casVersion moves the version from expected to expected+1 and reports
// whether this writer won.
func casVersion(ctx context.Context, db dbx.DBTX, email string, expected int64) (bool, error) {
	query :=
		`UPDATE user_record_fields SET value = $3, updated_at = now()
		 WHERE email = $1 AND field = 'version' AND value = $2
		 `

	res, err := db.ExecContext(ctx, query, email, fmt.Sprint(expected), fmt.Sprint(expected+1))
	if err != nil {
		return false, storeError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeError(err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Get(ctx context.Context, email string) (*models.UserRecord, error) {
	h, err := loadHash(ctx, r.db, email)
	if err != nil {
		return nil, err
	}
	return recordFromHash(email, h)
}

func (r *PostgresRepository) Put(ctx context.Context, email string, fields models.RecordFields) error {
	if fields.Empty() {
		return nil
	}
	h, err := hashFromFields(fields)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, field := range []string{FieldPassword, FieldCalendars} {
			value, ok := h[field]
			if !ok {
				continue
			}
			if err := upsertField(ctx, tx, email, field, value); err != nil {
				return err
			}
		}
		return bumpVersion(ctx, tx, email)
	})
	return asStoreError(err)
}

func (r *PostgresRepository) ListCalendars(ctx context.Context, email string) ([]models.Calendar, error) {
	rec, err := r.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	return rec.Calendars, nil
}

func (r *PostgresRepository) SetCalendars(ctx context.Context, email string, cals []models.Calendar) error {
	_, err := r.UpdateCalendars(ctx, email, func([]models.Calendar) []models.Calendar { return cals })
	return err
}

// UpdateCalendars reads the record, applies fn and writes the result only
// if the version is still the one that was read.
func (r *PostgresRepository) UpdateCalendars(ctx context.Context, email string, fn CalendarsFunc) ([]models.Calendar, error) {
	for i := 0; i < MaxUpdateRetries; i++ {
		var result []models.Calendar
		won := false

		err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			h, err := loadHash(ctx, tx, email)
			if err != nil {
				return err
			}
			rec, err := recordFromHash(email, h)
			if err != nil {
				return err
			}

			next := models.CloneCalendars(fn(rec.Calendars))
			encoded, err := encodeCalendars(next)
			if err != nil {
				return err
			}

			won, err = casVersion(ctx, tx, email, rec.Version)
			if err != nil || !won {
				return err
			}
			if err := upsertField(ctx, tx, email, FieldCalendars, encoded); err != nil {
				return err
			}
			result = next
			return nil
		})
		if dbx.Retryable(err) {
			continue
		}
		if err != nil {
			return nil, asStoreError(err)
		}
		if won {
			return result, nil
		}
	}
	return nil, fmt.Errorf("update calendars for record: %w", common.ErrVersionConflict)
}

func (r *PostgresRepository) Delete(ctx context.Context, email string) error {
	query := `DELETE FROM user_record_fields WHERE email = $1`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// asStoreError wraps errors that WithTx produced itself (begin/commit)
// while leaving already classified ones alone.
func asStoreError(err error) error {
	if err == nil || errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrStoreUnavailable) {
		return err
	}
	return storeError(err)
}
