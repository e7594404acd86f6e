package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

var columns = []string{"id", "filename", "size_bytes", "mime_type", "key", "bucket", "status", "etag", "owner_id", "meta", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleFile(now time.Time) *models.FileRecord {
	return &models.FileRecord{
		ID:        "f1",
		Filename:  "a.png",
		SizeBytes: 10,
		MimeType:  "image/png",
		Key:       "uploads/x-a.png",
		Bucket:    "photos-dev",
		Status:    models.StatusPending,
		OwnerID:   "u1",
		Meta:      json.RawMessage(`{"album":"x"}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	now := time.Now()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+files\s*\(id,.*\)\s*VALUES\s*\(\$1,.*\$12\)\s*$`).
		WithArgs("f1", "a.png", int64(10), "image/png", "uploads/x-a.png", "photos-dev", "pending", "", "u1", `{"album":"x"}`, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), sampleFile(now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_AnonymousOwnerAndNoMetaAreNull(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	now := time.Now()
	f := sampleFile(now)
	f.OwnerID = ""
	f.Meta = nil

	mock.ExpectExec(`INSERT\s+INTO\s+files`).
		WithArgs("f1", "a.png", int64(10), "image/png", "uploads/x-a.png", "photos-dev", "pending", "", nil, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreate_DuplicateKey(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+files`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "files_key_key"})

	err := repo.Create(context.Background(), sampleFile(time.Now()))
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+files`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), sampleFile(time.Now()))
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	now := time.Now()

	rows := sqlmock.NewRows(columns).
		AddRow("f1", "a.png", int64(10), "image/png", "uploads/x-a.png", "photos-dev", "uploaded", "etag-1", "u1", []byte(`{"album":"x"}`), now, now)
	mock.ExpectQuery(`SELECT id, filename, .* FROM files WHERE id=\$1`).WithArgs("f1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusUploaded || got.ETag != "etag-1" || got.OwnerID != "u1" || string(got.Meta) != `{"album":"x"}` {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestMeta_PassedThroughVerbatim(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	now := time.Now()
	raw := `{"b":1,  "a":2, "a":3}`

	f := sampleFile(now)
	f.Meta = json.RawMessage(raw)
	mock.ExpectExec(`INSERT INTO files`).
		WithArgs("f1", "a.png", int64(10), "image/png", "uploads/x-a.png", "photos-dev", "pending", "", "u1", raw, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM files WHERE id=\$1`).WithArgs("f1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("f1", "a.png", int64(10), "image/png", "uploads/x-a.png", "photos-dev", "pending", "", "u1", []byte(raw), now, now))

	if err := repo.Create(context.Background(), f); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.GetByID(context.Background(), "f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Meta) != raw {
		t.Fatalf("meta rewritten: got %s want %s", got.Meta, raw)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM files WHERE id=\$1`).WithArgs("missing").WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetByKey_NullOwnerAndMeta(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	now := time.Now()

	rows := sqlmock.NewRows(columns).
		AddRow("f1", "a.png", int64(10), "image/png", "uploads/x-a.png", "photos-dev", "pending", "", nil, nil, now, now)
	mock.ExpectQuery(`FROM files WHERE key=\$1`).WithArgs("uploads/x-a.png").WillReturnRows(rows)

	got, err := repo.GetByKey(context.Background(), "uploads/x-a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OwnerID != "" || got.Meta != nil {
		t.Fatalf("expected empty owner and meta, got %+v", got)
	}
}

func TestGetByKey_QueryErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM files WHERE key=\$1`).WithArgs("k").WillReturnError(errors.New("db err"))

	_, err := repo.GetByKey(context.Background(), "k")
	if err == nil || !regexp.MustCompile(`failed to select file: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped select error, got %v", err)
	}
}

func TestTransition_Applied(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	now := time.Now()

	rows := sqlmock.NewRows(columns).
		AddRow("f1", "a.png", int64(10), "image/png", "uploads/x-a.png", "photos-dev", "uploaded", "etag-1", "u1", nil, now, now)
	mock.ExpectQuery(`(?s)UPDATE files SET status=\$3, etag=\$4, updated_at=\$5\s+WHERE id=\$1 AND status=\$2\s+RETURNING`).
		WithArgs("f1", "pending", "uploaded", "etag-1", now).
		WillReturnRows(rows)

	got, applied, err := repo.Transition(context.Background(), "f1", models.StatusPending, models.StatusUploaded, "etag-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied || got.Status != models.StatusUploaded {
		t.Fatalf("expected applied transition, got applied=%v rec=%+v", applied, got)
	}
}

func TestTransition_NotApplied(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()
	now := time.Now()

	mock.ExpectQuery(`UPDATE files SET status`).
		WithArgs("f1", "pending", "uploaded", "etag-1", now).
		WillReturnRows(sqlmock.NewRows(columns))

	got, applied, err := repo.Transition(context.Background(), "f1", models.StatusPending, models.StatusUploaded, "etag-1", now)
	if err != nil || applied || got != nil {
		t.Fatalf("expected no-op, got rec=%v applied=%v err=%v", got, applied, err)
	}
}

func TestTransition_DBErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE files SET status`).WillReturnError(errors.New("db err"))

	_, _, err := repo.Transition(context.Background(), "f1", models.StatusPending, models.StatusError, "", time.Now())
	if err == nil || !regexp.MustCompile(`failed to update file status: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped update error, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name    string
		result  sql.Result
		execErr error
		check   func(error) bool
	}{
		{name: "ok", result: sqlmock.NewResult(0, 1), check: func(err error) bool { return err == nil }},
		{name: "missing", result: sqlmock.NewResult(0, 0), check: func(err error) bool { return errors.Is(err, common.ErrNotFound) }},
		{name: "rows affected err", result: sqlmock.NewErrorResult(errors.New("rows-err")), check: func(err error) bool {
			return err != nil && regexp.MustCompile(`failed to get rows affected: .*rows-err`).MatchString(err.Error())
		}},
		{name: "db err", execErr: errors.New("db err"), check: func(err error) bool {
			return err != nil && regexp.MustCompile(`failed to delete file: .*db err`).MatchString(err.Error())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			exp := mock.ExpectExec(`DELETE FROM files WHERE id=\$1`).WithArgs("f1")
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			if err := repo.Delete(context.Background(), "f1"); !tt.check(err) {
				t.Fatalf("unexpected result: %v", err)
			}
		})
	}
}
