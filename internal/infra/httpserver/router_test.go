package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/cerviscan/internal/application"
	"github.com/bryanwahyu/cerviscan/internal/application/access"
	appreview "github.com/bryanwahyu/cerviscan/internal/application/review"
	appscreening "github.com/bryanwahyu/cerviscan/internal/application/screening"
	"github.com/bryanwahyu/cerviscan/internal/domain/assignment"
	"github.com/bryanwahyu/cerviscan/internal/domain/identity"
	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
	"github.com/bryanwahyu/cerviscan/internal/middleware"
)

var (
	testKey = []byte("router-test-secret-0123")
	fixedAt = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
)

// memRepo returns lists newest first and honours limit like the real stores
type memRepo struct {
	mu    sync.Mutex
	seq   int
	recs  map[domain.RecordID]*domain.AnalysisRecord
	order []domain.RecordID
}

func (m *memRepo) Create(_ context.Context, r *domain.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.ID = domain.RecordID(fmt.Sprintf("rec-%d", m.seq))
	cp := *r
	m.recs[r.ID] = &cp
	m.order = append(m.order, r.ID)
	return nil
}

func (m *memRepo) Get(_ context.Context, id domain.RecordID) (*domain.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) ApplyReview(_ context.Context, id domain.RecordID, expected string, rv domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.ReviewedBy != expected {
		return domain.ErrReviewConflict
	}
	at := rv.ReviewedAt
	r.ReviewedBy, r.ReviewNotes, r.TreatmentPlan, r.ReviewedAt = rv.ReviewedBy, rv.ReviewNotes, rv.TreatmentPlan, &at
	return nil
}

func (m *memRepo) filter(limit int, keep func(*domain.AnalysisRecord) bool) []*domain.AnalysisRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AnalysisRecord
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.recs[m.order[i]]
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (m *memRepo) FindBySubject(_ context.Context, s string, limit int) ([]*domain.AnalysisRecord, error) {
	return m.filter(limit, func(r *domain.AnalysisRecord) bool { return r.SubjectID == s }), nil
}

func (m *memRepo) FindByPerformer(_ context.Context, s string, limit int) ([]*domain.AnalysisRecord, error) {
	return m.filter(limit, func(r *domain.AnalysisRecord) bool { return r.PerformedBy == s }), nil
}

func (m *memRepo) FindBySubjectAndPerformer(_ context.Context, s, by string, limit int) ([]*domain.AnalysisRecord, error) {
	return m.filter(limit, func(r *domain.AnalysisRecord) bool { return r.SubjectID == s && r.PerformedBy == by }), nil
}

func (m *memRepo) FindByReviewer(_ context.Context, s string, limit int) ([]*domain.AnalysisRecord, error) {
	return m.filter(limit, func(r *domain.AnalysisRecord) bool { return r.ReviewedBy == s }), nil
}

func (m *memRepo) Summary(context.Context, time.Time) (domain.Summary, error) {
	all := m.filter(0, func(*domain.AnalysisRecord) bool { return true })
	s := domain.Summary{Total: int64(len(all))}
	for _, r := range all {
		if r.Reviewed() {
			s.Reviewed++
		}
		if r.Classification == domain.ClassAbnormal {
			s.Abnormal++
		}
	}
	s.Pending = s.Total - s.Reviewed
	return s, nil
}

type memFailures struct {
	mu   sync.Mutex
	list []*domain.Failure
}

func (m *memFailures) Save(_ context.Context, f *domain.Failure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, f)
	return nil
}

func (m *memFailures) ListBySubject(_ context.Context, subjectID, performedBy string, _ int) ([]*domain.Failure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Failure
	for _, f := range m.list {
		if f.SubjectID == subjectID && (performedBy == "" || f.PerformedBy == performedBy) {
			out = append(out, f)
		}
	}
	return out, nil
}

type stubBlobs struct{}

func (stubBlobs) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	return "https://blobs.test/" + key, nil
}

type stubClassifier struct {
	raw domain.RawPrediction
	err error
}

func (s stubClassifier) Classify(context.Context, domain.Image) (domain.RawPrediction, error) {
	return s.raw, s.err
}

type memAssignments struct {
	mu    sync.Mutex
	pairs map[string]bool
}

func (m *memAssignments) IsAssigned(_ context.Context, d, p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairs[d+"/"+p], nil
}

func (m *memAssignments) Assign(_ context.Context, a *assignment.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[a.DoctorID+"/"+a.PatientID] = true
	return nil
}

func (m *memAssignments) ListPatients(_ context.Context, d string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.pairs {
		if len(k) > len(d) && k[:len(d)+1] == d+"/" {
			out = append(out, k[len(d)+1:])
		}
	}
	return out, nil
}

type harness struct {
	handler  http.Handler
	repo     *memRepo
	assign   *memAssignments
	failures *memFailures
}

func newHarness(t *testing.T, cls domain.Classifier) *harness {
	t.Helper()
	repo := &memRepo{recs: map[domain.RecordID]*domain.AnalysisRecord{}}
	failures := &memFailures{}
	assign := &memAssignments{pairs: map[string]bool{"doc1/p1": true}}
	clock := application.FixedClock{T: fixedAt}

	h := NewRouter(Deps{
		Screenings:  &appscreening.Service{Repo: repo, Blobs: stubBlobs{}, Classifier: cls, Failures: failures, Clock: clock},
		Reviews:     &appreview.Service{Repo: repo, Assignments: assign, Clock: clock},
		Access:      access.Policy{Assignments: assign},
		Assignments: assign,
		HMACKey:     testKey,
		RateLimit:   struct{ Capacity, RefillRate int }{1000, 100},
	})
	return &harness{handler: h, repo: repo, assign: assign, failures: failures}
}

func score(v float64) *float64 { return &v }

func token(t *testing.T, id string, role identity.Role) string {
	tok, err := middleware.IssueToken(testKey, identity.Principal{ID: id, Role: role}, time.Hour, time.Now())
	require.NoError(t, err)
	return "Bearer " + tok
}

func (h *harness) do(t *testing.T, method, path, auth string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func uploadBody(t *testing.T, subject string, data []byte, partType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("subjectId", subject))
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="cervix.png"`)
	hdr.Set("Content-Type", partType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, _ = part.Write(data)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSubmitThenReviewFlow(t *testing.T) {
	h := newHarness(t, stubClassifier{raw: domain.RawPrediction{Prediction: "Abnormal", Score: score(0.91), Threshold: score(0.5)}})

	body, ct := uploadBody(t, "p1", pngData, "application/octet-stream")
	rec := h.do(t, http.MethodPost, "/v1/screenings", token(t, "hw1", identity.RoleHealthWorker), body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[domain.AnalysisRecord](t, rec)
	assert.Equal(t, domain.ClassAbnormal, created.Classification)
	assert.Equal(t, domain.RiskHigh, created.RiskLevel)
	assert.Equal(t, "hw1", created.PerformedBy)
	assert.Contains(t, created.ImageRef, "https://blobs.test/cervix-images/p1/")

	// assigned doctor reads and reviews
	doc := token(t, "doc1", identity.RoleDoctor)
	rec = h.do(t, http.MethodGet, "/v1/screenings/"+string(created.ID), doc, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPut, "/v1/screenings/"+string(created.ID)+"/review", doc,
		bytes.NewBufferString(`{"notes":"CIN2 suspected","treatmentPlan":"colposcopy"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reviewed := decode[domain.AnalysisRecord](t, rec)
	assert.Equal(t, "doc1", reviewed.ReviewedBy)
	require.NotNil(t, reviewed.ReviewedAt)
	assert.True(t, fixedAt.Equal(*reviewed.ReviewedAt))
	assert.Equal(t, created.Confidence, reviewed.Confidence)

	// a different doctor may not take over
	h.assign.pairs["doc2/p1"] = true
	rec = h.do(t, http.MethodPut, "/v1/screenings/"+string(created.ID)+"/review", token(t, "doc2", identity.RoleDoctor),
		bytes.NewBufferString(`{"notes":"other view"}`), "application/json")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/me/reviews", doc, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.AnalysisRecord](t, rec), 1)

	rec = h.do(t, http.MethodGet, "/v1/summary?days=7", token(t, "admin", identity.RoleAdmin), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reviewed":1`)
}

func TestSubmit_Errors(t *testing.T) {
	t.Run("upstream error carries diagnostics", func(t *testing.T) {
		h := newHarness(t, stubClassifier{err: &domain.UpstreamError{StatusCode: 503, Body: "model asleep"}})
		body, ct := uploadBody(t, "p1", pngData, "image/png")

		rec := h.do(t, http.MethodPost, "/v1/screenings", token(t, "hw1", identity.RoleHealthWorker), body, ct)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		eb := decode[errorBody](t, rec)
		assert.Equal(t, "classifying", eb.Stage)
		assert.Equal(t, 503, eb.UpstreamStatus)
		assert.Equal(t, "model asleep", eb.UpstreamBody)
		assert.Empty(t, h.repo.recs)
	})

	t.Run("timeout", func(t *testing.T) {
		h := newHarness(t, stubClassifier{err: fmt.Errorf("%w: deadline", domain.ErrClassificationTimeout)})
		body, ct := uploadBody(t, "p1", pngData, "image/png")

		rec := h.do(t, http.MethodPost, "/v1/screenings", token(t, "hw1", identity.RoleHealthWorker), body, ct)
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})

	t.Run("not an image", func(t *testing.T) {
		h := newHarness(t, stubClassifier{})
		body, ct := uploadBody(t, "p1", []byte("%PDF-1.7 not an image"), "application/pdf")

		rec := h.do(t, http.MethodPost, "/v1/screenings", token(t, "hw1", identity.RoleHealthWorker), body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validating", decode[errorBody](t, rec).Stage)
	})

	t.Run("doctors cannot submit", func(t *testing.T) {
		h := newHarness(t, stubClassifier{})
		body, ct := uploadBody(t, "p1", pngData, "image/png")

		rec := h.do(t, http.MethodPost, "/v1/screenings", token(t, "doc1", identity.RoleDoctor), body, ct)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no token", func(t *testing.T) {
		h := newHarness(t, stubClassifier{})
		rec := h.do(t, http.MethodGet, "/v1/me/screenings", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestReadAccess(t *testing.T) {
	h := newHarness(t, stubClassifier{})
	rec := &domain.AnalysisRecord{SubjectID: "p1", PerformedBy: "hw1", RiskLevel: domain.RiskLow, Status: domain.StatusClassified}
	require.NoError(t, h.repo.Create(context.Background(), rec))
	path := "/v1/screenings/" + string(rec.ID)

	cases := []struct {
		name string
		id   string
		role identity.Role
		want int
	}{
		{"patient self", "p1", identity.RolePatient, http.StatusOK},
		{"other patient", "p2", identity.RolePatient, http.StatusForbidden},
		{"performer", "hw1", identity.RoleHealthWorker, http.StatusOK},
		{"other worker", "hw2", identity.RoleHealthWorker, http.StatusForbidden},
		{"assigned doctor", "doc1", identity.RoleDoctor, http.StatusOK},
		{"unassigned doctor", "doc9", identity.RoleDoctor, http.StatusForbidden},
		{"admin", "a1", identity.RoleAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := h.do(t, http.MethodGet, path, token(t, tc.id, tc.role), nil, "")
			assert.Equal(t, tc.want, got.Code)
		})
	}

	got := h.do(t, http.MethodGet, "/v1/screenings/rec-404", token(t, "a1", identity.RoleAdmin), nil, "")
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestReviewUnassignedAndValidation(t *testing.T) {
	h := newHarness(t, stubClassifier{})
	rec := &domain.AnalysisRecord{SubjectID: "p7", PerformedBy: "hw1", RiskLevel: domain.RiskLow, Status: domain.StatusClassified}
	require.NoError(t, h.repo.Create(context.Background(), rec))
	path := "/v1/screenings/" + string(rec.ID) + "/review"
	doc := token(t, "doc1", identity.RoleDoctor)

	got := h.do(t, http.MethodPut, path, doc, bytes.NewBufferString(`{"notes":"x"}`), "application/json")
	assert.Equal(t, http.StatusForbidden, got.Code)

	h.assign.pairs["doc1/p7"] = true
	got = h.do(t, http.MethodPut, path, doc, bytes.NewBufferString(`{"notes":"  "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, got.Code)

	got = h.do(t, http.MethodPut, path, doc, bytes.NewBufferString(`{not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, got.Code)

	got = h.do(t, http.MethodPut, "/v1/screenings/rec-999/review", doc, bytes.NewBufferString(`{"notes":"x"}`), "application/json")
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestAssignmentsAndPatients(t *testing.T) {
	h := newHarness(t, stubClassifier{})
	admin := token(t, "a1", identity.RoleAdmin)

	got := h.do(t, http.MethodPost, "/v1/assignments", admin, bytes.NewBufferString(`{"doctorId":"doc5","patientId":"p9"}`), "application/json")
	require.Equal(t, http.StatusCreated, got.Code)

	got = h.do(t, http.MethodPost, "/v1/assignments", admin, bytes.NewBufferString(`{"doctorId":"","patientId":"p9"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, got.Code)

	got = h.do(t, http.MethodPost, "/v1/assignments", token(t, "doc5", identity.RoleDoctor), bytes.NewBufferString(`{"doctorId":"doc5","patientId":"p8"}`), "application/json")
	assert.Equal(t, http.StatusForbidden, got.Code)

	got = h.do(t, http.MethodGet, "/v1/me/patients", token(t, "doc5", identity.RoleDoctor), nil, "")
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, []string{"p9"}, decode[[]string](t, got))
}

func TestDraftWithoutAssistant(t *testing.T) {
	h := newHarness(t, stubClassifier{})
	got := h.do(t, http.MethodPost, "/v1/screenings/rec-1/draft", token(t, "doc1", identity.RoleDoctor), nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, got.Code)
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	h := newHarness(t, stubClassifier{})
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health", "", nil, "").Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "", nil, "").Code)
	got := h.do(t, http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, http.StatusOK, got.Code)
	assert.Contains(t, got.Body.String(), "screenings_total")
}

func TestListSubject_HealthWorkerSeesOwnBeyondLimit(t *testing.T) {
	h := newHarness(t, stubClassifier{})
	ctx := context.Background()
	require.NoError(t, h.repo.Create(ctx, &domain.AnalysisRecord{SubjectID: "p1", PerformedBy: "hw1", CreatedAt: fixedAt}))
	for i := 0; i < 25; i++ {
		require.NoError(t, h.repo.Create(ctx, &domain.AnalysisRecord{SubjectID: "p1", PerformedBy: "hw2", CreatedAt: fixedAt}))
	}

	rec := h.do(t, http.MethodGet, "/v1/subjects/p1/screenings", token(t, "hw1", identity.RoleHealthWorker), nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[[]domain.AnalysisRecord](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "hw1", got[0].PerformedBy)

	rec = h.do(t, http.MethodGet, "/v1/subjects/p1/screenings", token(t, "admin1", identity.RoleAdmin), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.AnalysisRecord](t, rec), 20)
}

func TestFailures_HealthWorkerSeesOwnOnly(t *testing.T) {
	h := newHarness(t, stubClassifier{})
	ctx := context.Background()
	require.NoError(t, h.failures.Save(ctx, &domain.Failure{SubjectID: "p1", PerformedBy: "hw1", Stage: domain.StageUploading}))
	require.NoError(t, h.failures.Save(ctx, &domain.Failure{SubjectID: "p1", PerformedBy: "hw2", Stage: domain.StageClassifying}))

	rec := h.do(t, http.MethodGet, "/v1/subjects/p1/failures", token(t, "hw1", identity.RoleHealthWorker), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]domain.Failure](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "hw1", got[0].PerformedBy)

	rec = h.do(t, http.MethodGet, "/v1/subjects/p1/failures", token(t, "admin1", identity.RoleAdmin), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Failure](t, rec), 2)
}
