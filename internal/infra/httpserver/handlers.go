package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appreview "github.com/bryanwahyu/cerviscan/internal/application/review"
	appscreening "github.com/bryanwahyu/cerviscan/internal/application/screening"
	"github.com/bryanwahyu/cerviscan/internal/domain/assignment"
	"github.com/bryanwahyu/cerviscan/internal/domain/identity"
	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
	"github.com/bryanwahyu/cerviscan/internal/middleware"
)

// multipart overhead allowed on top of the image limit
const formSlack = 1 << 20

// POST /v1/screenings
// multipart: image (file), subjectId (field)
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	maxImage := r.screenings.Limits.MaxImageBytes
	if maxImage <= 0 {
		maxImage = appscreening.DefaultMaxImageBytes
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxImage+formSlack)
	if err := req.ParseMultipartForm(maxImage + formSlack); err != nil {
		return fmt.Errorf("%w: image too large or malformed form: %v", errBadRequest, err)
	}
	defer func() {
		if req.MultipartForm != nil {
			_ = req.MultipartForm.RemoveAll()
		}
	}()

	file, hdr, err := req.FormFile("image")
	if err != nil {
		return fmt.Errorf("%w: image file is required", errBadRequest)
	}
	defer file.Close()
	// one extra byte so the size rule can see an oversized image
	data, err := io.ReadAll(io.LimitReader(file, maxImage+1))
	if err != nil {
		return fmt.Errorf("%w: read image: %v", errBadRequest, err)
	}

	// generic part types carry no information, let the service sniff the bytes
	contentType := hdr.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}

	p := principal(req)
	subjectID := middleware.SanitizeString(req.FormValue("subjectId"))
	log := r.logger.With(zap.String("subject_id", subjectID), zap.String("user_id", p.ID))

	middleware.IncrementScreenings()
	rec, err := r.screenings.SubmitScreening(req.Context(), appscreening.SubmitCommand{
		Image:       data,
		Filename:    hdr.Filename,
		ContentType: contentType,
		SubjectID:   subjectID,
		PerformedBy: p.ID,
		Progress: func(s domain.Stage) {
			log.Debug("screening progress", zap.String("stage", string(s)), zap.String("message", s.Message()))
		},
	})
	middleware.DoneScreening(err == nil)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, rec)
	return nil
}

// GET /v1/screenings/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.readableRecord(req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, rec)
	return nil
}

type reviewBody struct {
	Notes         string `json:"notes"`
	TreatmentPlan string `json:"treatmentPlan"`
}

func decodeReview(req *http.Request) (reviewBody, error) {
	var body reviewBody
	if err := json.NewDecoder(io.LimitReader(req.Body, 1<<20)).Decode(&body); err != nil {
		return body, fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	body.Notes = middleware.SanitizeString(body.Notes)
	body.TreatmentPlan = middleware.SanitizeString(body.TreatmentPlan)
	return body, nil
}

// PUT /v1/screenings/{id}/review
// Body: {"notes": "...", "treatmentPlan": "..."}
func (r *Router) handleReview(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRecordID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	body, err := decodeReview(req)
	if err != nil {
		return err
	}
	rec, err := r.reviews.PublishReview(req.Context(), appreview.Command{
		RecordID:      domain.RecordID(id),
		ReviewerID:    principal(req).ID,
		Notes:         body.Notes,
		TreatmentPlan: body.TreatmentPlan,
	})
	if err != nil {
		return err
	}
	middleware.IncrementReviews()
	writeJSON(w, http.StatusOK, rec)
	return nil
}

// POST /v1/subjects/{subjectId}/review
func (r *Router) handleReviewSubject(w http.ResponseWriter, req *http.Request) error {
	subjectID := chi.URLParam(req, "subjectId")
	if err := middleware.ValidateSubjectID(subjectID); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	body, err := decodeReview(req)
	if err != nil {
		return err
	}
	rec, err := r.reviews.PublishReviewForSubject(req.Context(), subjectID, appreview.Command{
		ReviewerID:    principal(req).ID,
		Notes:         body.Notes,
		TreatmentPlan: body.TreatmentPlan,
	})
	if err != nil {
		return err
	}
	middleware.IncrementReviews()
	writeJSON(w, http.StatusOK, rec)
	return nil
}

// POST /v1/screenings/{id}/draft
func (r *Router) handleDraft(w http.ResponseWriter, req *http.Request) error {
	if r.assist == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "draft assistant not configured"})
		return nil
	}
	rec, err := r.readableRecord(req)
	if err != nil {
		return err
	}
	d, err := r.assist.Draft(req.Context(), rec)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, d)
	return nil
}

// GET /v1/subjects/{subjectId}/screenings?limit=20
func (r *Router) handleListSubject(w http.ResponseWriter, req *http.Request) error {
	subjectID := chi.URLParam(req, "subjectId")
	if err := middleware.ValidateSubjectID(subjectID); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	p := principal(req)
	limit := middleware.ValidateLimit(queryInt(req, "limit"))
	var (
		list []*domain.AnalysisRecord
		err  error
	)
	// health workers only see what they performed themselves
	if p.Role == identity.RoleHealthWorker {
		list, err = r.screenings.ListBySubjectForPerformer(req.Context(), subjectID, p.ID, limit)
	} else {
		if err := r.access.CanReadSubject(req.Context(), p, subjectID); err != nil {
			return err
		}
		list, err = r.screenings.ListBySubject(req.Context(), subjectID, limit)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(list))
	return nil
}

// GET /v1/subjects/{subjectId}/failures?limit=20
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	subjectID := chi.URLParam(req, "subjectId")
	if err := middleware.ValidateSubjectID(subjectID); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	// same scoping as records: a health worker only sees their own failed submissions
	var performedBy string
	if p := principal(req); p.Role == identity.RoleHealthWorker {
		performedBy = p.ID
	}
	list, err := r.screenings.ListFailures(req.Context(), subjectID, performedBy, middleware.ValidateLimit(queryInt(req, "limit")))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Failure{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/me/screenings
func (r *Router) handleMyScreenings(w http.ResponseWriter, req *http.Request) error {
	p := principal(req)
	limit := middleware.ValidateLimit(queryInt(req, "limit"))
	var (
		list []*domain.AnalysisRecord
		err  error
	)
	if p.Role == identity.RolePatient {
		list, err = r.screenings.ListBySubject(req.Context(), p.ID, limit)
	} else {
		list, err = r.screenings.ListByPerformer(req.Context(), p.ID, limit)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(list))
	return nil
}

// GET /v1/me/reviews
func (r *Router) handleMyReviews(w http.ResponseWriter, req *http.Request) error {
	list, err := r.screenings.ListByReviewer(req.Context(), principal(req).ID, middleware.ValidateLimit(queryInt(req, "limit")))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, nonNil(list))
	return nil
}

// GET /v1/me/patients
func (r *Router) handleMyPatients(w http.ResponseWriter, req *http.Request) error {
	ids, err := r.assignments.ListPatients(req.Context(), principal(req).ID)
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
	return nil
}

// GET /v1/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days := middleware.ValidateDays(queryInt(req, "days"))
	s, err := r.screenings.Summary(req.Context(), days)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "summary": s})
	return nil
}

// POST /v1/assignments
// Body: {"doctorId": "...", "patientId": "..."}
func (r *Router) handleAssign(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		DoctorID  string `json:"doctorId"`
		PatientID string `json:"patientId"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, 1<<16)).Decode(&body); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	body.DoctorID, body.PatientID = strings.TrimSpace(body.DoctorID), strings.TrimSpace(body.PatientID)
	if err := middleware.ValidateSubjectID(body.PatientID); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if body.DoctorID == "" {
		return fmt.Errorf("%w: doctorId is required", errBadRequest)
	}
	a := &assignment.Assignment{DoctorID: body.DoctorID, PatientID: body.PatientID}
	if err := r.assignments.Assign(req.Context(), a); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, a)
	return nil
}

func (r *Router) readableRecord(req *http.Request) (*domain.AnalysisRecord, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRecordID(id); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	rec, err := r.screenings.Get(req.Context(), domain.RecordID(id))
	if err != nil {
		return nil, err
	}
	if err := r.access.CanReadRecord(req.Context(), principal(req), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func nonNil(list []*domain.AnalysisRecord) []*domain.AnalysisRecord {
	if list == nil {
		return []*domain.AnalysisRecord{}
	}
	return list
}
