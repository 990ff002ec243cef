package postgres

import (
    "context"
    "database/sql"
    "testing"
    "time"

    "github.com/DATA-DOG/go-sqlmock"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/bryanwahyu/cerviscan/internal/domain/assignment"
    domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

const rid = "6f1c2d1e-8a4b-4c1e-9a61-0d7f1a2b3c4d"

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
    db, mock, err := sqlmock.New()
    require.NoError(t, err)
    t.Cleanup(func() { _ = db.Close() })
    return db, mock
}

func TestGet_NonUUIDIsNotFound(t *testing.T) {
    db, mock := newMock(t)

    _, err := NewAnalysisRepository(db).Get(context.Background(), "not-a-uuid")

    assert.ErrorIs(t, err, domain.ErrNotFound)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyReview_Outcomes(t *testing.T) {
    at := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
    rv := domain.Review{ReviewedBy: "doc1", ReviewNotes: "n", ReviewedAt: at}

    cases := []struct {
        name     string
        affected int64
        exists   bool
        want     error
    }{
        {"applied", 1, true, nil},
        {"conflict", 0, true, domain.ErrReviewConflict},
        {"missing", 0, false, domain.ErrNotFound},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            db, mock := newMock(t)
            mock.ExpectExec(`UPDATE analysis_records SET reviewed_by = \$1`).
                WithArgs("doc1", "n", "", at, rid, "").
                WillReturnResult(sqlmock.NewResult(0, tc.affected))
            if tc.affected == 0 {
                mock.ExpectQuery(`SELECT EXISTS`).
                    WithArgs(rid).
                    WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tc.exists))
            }

            err := NewAnalysisRepository(db).ApplyReview(context.Background(), rid, "", rv)
            if tc.want == nil {
                assert.NoError(t, err)
            } else {
                assert.ErrorIs(t, err, tc.want)
            }
            assert.NoError(t, mock.ExpectationsWereMet())
        })
    }
}

func TestFindBySubjectAndPerformer_LimitPlaceholder(t *testing.T) {
    db, mock := newMock(t)
    mock.ExpectQuery(`WHERE subject_id=\$1 AND performed_by=\$2 ORDER BY created_at DESC, id DESC LIMIT \$3`).
        WithArgs("p1", "hw1", 5).
        WillReturnRows(sqlmock.NewRows([]string{"id"}))

    out, err := NewAnalysisRepository(db).FindBySubjectAndPerformer(context.Background(), "p1", "hw1", 5)
    require.NoError(t, err)
    assert.Empty(t, out)
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummary_Pending(t *testing.T) {
    db, mock := newMock(t)
    since := time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)
    mock.ExpectQuery(`FILTER \(WHERE classification = 'abnormal'\)`).
        WithArgs(since).
        WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c"}).AddRow(5, 2, 5))

    s, err := NewAnalysisRepository(db).Summary(context.Background(), since)
    require.NoError(t, err)
    assert.Equal(t, domain.Summary{Total: 5, Abnormal: 2, Reviewed: 5, Pending: 0}, s)
}

func TestFailureSave_ReturnsID(t *testing.T) {
    db, mock := newMock(t)
    mock.ExpectQuery(`INSERT INTO screening_failures`).
        WithArgs("p1", "hw1", "uploading", "boom", "{}", sqlmock.AnyArg()).
        WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

    f := &domain.Failure{SubjectID: "p1", PerformedBy: "hw1", Stage: domain.StageUploading, Message: "boom"}
    require.NoError(t, NewFailureRepository(db).Save(context.Background(), f))
    assert.Equal(t, "11", f.ID)
}

func TestAssign_Idempotent(t *testing.T) {
    db, mock := newMock(t)
    mock.ExpectExec(`ON CONFLICT \(doctor_id, patient_id\) DO NOTHING`).
        WithArgs("doc1", "p1", sqlmock.AnyArg()).
        WillReturnResult(sqlmock.NewResult(0, 0))

    require.NoError(t, NewAssignmentRepository(db).Assign(context.Background(), &assignment.Assignment{DoctorID: "doc1", PatientID: "p1"}))
    assert.NoError(t, mock.ExpectationsWereMet())
}
