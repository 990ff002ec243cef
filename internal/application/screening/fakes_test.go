package screening

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
)

type fakeRepo struct {
	mu        sync.Mutex
	records   map[domain.RecordID]*domain.AnalysisRecord
	createErr error
	creates   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[domain.RecordID]*domain.AnalysisRecord{}}
}

func (r *fakeRepo) Create(_ context.Context, rec *domain.AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	rec.ID = domain.RecordID(fmt.Sprintf("rec-%d", len(r.records)+1))
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id domain.RecordID) (*domain.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRepo) ApplyReview(context.Context, domain.RecordID, string, domain.Review) error {
	return nil
}

func (r *fakeRepo) FindBySubject(_ context.Context, subjectID string, limit int) ([]*domain.AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AnalysisRecord
	for _, rec := range r.records {
		if rec.SubjectID == subjectID && len(out) < limit {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindByPerformer(context.Context, string, int) ([]*domain.AnalysisRecord, error) {
	return nil, nil
}

func (r *fakeRepo) FindBySubjectAndPerformer(_ context.Context, subjectID, performedBy string, limit int) ([]*domain.AnalysisRecord, error) {
	var out []*domain.AnalysisRecord
	for _, rec := range r.records {
		if rec.SubjectID == subjectID && rec.PerformedBy == performedBy && len(out) < limit {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindByReviewer(context.Context, string, int) ([]*domain.AnalysisRecord, error) {
	return nil, nil
}

func (r *fakeRepo) Summary(_ context.Context, since time.Time) (domain.Summary, error) {
	return domain.Summary{Total: 5, Abnormal: 2, Reviewed: 3}, nil
}

type fakeBlobs struct {
	calls int
	keys  []string
	url   string
	err   error
}

func (b *fakeBlobs) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	b.calls++
	b.keys = append(b.keys, key)
	if b.err != nil {
		return "", b.err
	}
	if b.url != "" {
		return b.url, nil
	}
	return "http://blob.local/bucket/" + key, nil
}

type fakeClassifier struct {
	calls  int
	resp   domain.RawPrediction
	err    error
	before func()
	last   domain.Image
}

func (c *fakeClassifier) Classify(_ context.Context, img domain.Image) (domain.RawPrediction, error) {
	c.calls++
	c.last = img
	if c.before != nil {
		c.before()
	}
	return c.resp, c.err
}

type fakeFailures struct {
	saved []*domain.Failure
	err   error
}

func (f *fakeFailures) Save(_ context.Context, e *domain.Failure) error {
	f.saved = append(f.saved, e)
	return f.err
}

func (f *fakeFailures) ListBySubject(_ context.Context, subjectID, performedBy string, _ int) ([]*domain.Failure, error) {
	var out []*domain.Failure
	for _, e := range f.saved {
		if e.SubjectID == subjectID && (performedBy == "" || e.PerformedBy == performedBy) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeEvents struct {
	events []domain.Event
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, e domain.Event) error {
	f.events = append(f.events, e)
	return f.err
}

func score(v float64) *float64 { return &v }
