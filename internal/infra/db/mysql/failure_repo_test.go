package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

func TestFailureSave_Defaults(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("INSERT INTO screening_failures").
		WithArgs("p1", "hw1", "classifying", "-", `{"raw":"not json"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(42, 1))

	f := &domain.Failure{SubjectID: "p1", PerformedBy: "hw1", Stage: domain.StageClassifying, DetailsJSON: "not json"}
	require.NoError(t, NewFailureRepository(db).Save(context.Background(), f))
	assert.Equal(t, "42", f.ID)
	assert.False(t, f.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailureListBySubject(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM screening_failures").
		WithArgs("p1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject_id", "performed_by", "stage", "message", "details_json", "created_at"}).
			AddRow(7, "p1", "hw1", "uploading", "image upload failed", "{}", at))

	out, err := NewFailureRepository(db).ListBySubject(context.Background(), "p1", "", 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "7", out[0].ID)
	assert.Equal(t, domain.StageUploading, out[0].Stage)
}

func TestFailureListBySubject_OnePerformer(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("WHERE subject_id = \\? AND performed_by = \\?").
		WithArgs("p1", "hw1", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject_id", "performed_by", "stage", "message", "details_json", "created_at"}))

	out, err := NewFailureRepository(db).ListBySubject(context.Background(), "p1", "hw1", 0)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM assignments").
		WithArgs("doc1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery("SELECT patient_id FROM assignments").
		WithArgs("doc1").
		WillReturnRows(sqlmock.NewRows([]string{"patient_id"}).AddRow("p1").AddRow("p2"))

	ok, err := repo.IsAssigned(context.Background(), "doc1", "p1")
	require.NoError(t, err)
	assert.True(t, ok)

	ps, err := repo.ListPatients(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)
	for range splitStatements(schema) {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Len(t, splitStatements(schema), 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}
