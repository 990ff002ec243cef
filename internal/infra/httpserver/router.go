package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/bryanwahyu/cerviscan/internal/application/access"
	"github.com/bryanwahyu/cerviscan/internal/application/assist"
	appreview "github.com/bryanwahyu/cerviscan/internal/application/review"
	appscreening "github.com/bryanwahyu/cerviscan/internal/application/screening"
	domai "github.com/bryanwahyu/cerviscan/internal/domain/ai"
	"github.com/bryanwahyu/cerviscan/internal/domain/assignment"
	"github.com/bryanwahyu/cerviscan/internal/domain/identity"
	domain "github.com/bryanwahyu/cerviscan/internal/domain/screening"
	"github.com/bryanwahyu/cerviscan/internal/middleware"
)

// statusClientClosed is the nginx convention for a request the client abandoned.
const statusClientClosed = 499

// Deps wires the router. Assist may be nil when no LLM is configured.
type Deps struct {
	Screenings  *appscreening.Service
	Reviews     *appreview.Service
	Access      access.Policy
	Assignments assignment.Repository
	Assist      *assist.Service
	Logger      *zap.Logger

	HMACKey     []byte
	CORSOrigins []string
	RateLimit   struct{ Capacity, RefillRate int }
	Health      map[string]middleware.HealthChecker
}

type Router struct {
	screenings  *appscreening.Service
	reviews     *appreview.Service
	access      access.Policy
	assignments assignment.Repository
	assist      *assist.Service
	logger      *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		screenings:  d.Screenings,
		reviews:     d.Reviews,
		access:      d.Access,
		assignments: d.Assignments,
		assist:      d.Assist,
		logger:      logger,
	}

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	capacity, refill := d.RateLimit.Capacity, d.RateLimit.RefillRate
	if capacity <= 0 {
		capacity = 60
	}
	if refill <= 0 {
		refill = 1
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.HealthHandler(d.Health))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.JWTAuth(d.HMACKey))
		rt.Use(middleware.RequestLogger(logger))
		rt.Use(middleware.RateLimitMiddleware(capacity, refill))

		rt.With(middleware.RequireRole(identity.RoleHealthWorker, identity.RoleAdmin)).
			Post("/screenings", r.wrap(r.handleSubmit))
		rt.Get("/screenings/{id}", r.wrap(r.handleGet))
		rt.With(middleware.RequireRole(identity.RoleDoctor)).
			Put("/screenings/{id}/review", r.wrap(r.handleReview))
		rt.With(middleware.RequireRole(identity.RoleDoctor)).
			Post("/screenings/{id}/draft", r.wrap(r.handleDraft))

		rt.With(middleware.RequireRole(identity.RoleDoctor)).
			Post("/subjects/{subjectId}/review", r.wrap(r.handleReviewSubject))
		rt.Get("/subjects/{subjectId}/screenings", r.wrap(r.handleListSubject))
		rt.With(middleware.RequireRole(identity.RoleAdmin, identity.RoleHealthWorker)).
			Get("/subjects/{subjectId}/failures", r.wrap(r.handleFailures))

		rt.Get("/me/screenings", r.wrap(r.handleMyScreenings))
		rt.With(middleware.RequireRole(identity.RoleDoctor)).
			Get("/me/reviews", r.wrap(r.handleMyReviews))
		rt.With(middleware.RequireRole(identity.RoleDoctor)).
			Get("/me/patients", r.wrap(r.handleMyPatients))

		rt.With(middleware.RequireRole(identity.RoleAdmin)).
			Get("/summary", r.wrap(r.handleSummary))
		rt.With(middleware.RequireRole(identity.RoleAdmin)).
			Post("/assignments", r.wrap(r.handleAssign))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errBadRequest marks malformed requests detected by the handlers themselves.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error          string `json:"error"`
	Stage          string `json:"stage,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
	UpstreamBody   string `json:"upstreamBody,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := statusFor(err)
		body := errorBody{Error: err.Error()}
		var se *domain.StageError
		if errors.As(err, &se) {
			body.Stage = string(se.Stage)
			body.UpstreamStatus = se.UpstreamStatus
			body.UpstreamBody = se.UpstreamBody
		}
		if status >= 500 {
			r.logger.Error("request failed",
				zap.String("path", req.URL.Path),
				zap.String("request_id", chimw.GetReqID(req.Context())),
				zap.Error(err),
			)
			if body.Stage == "" {
				body.Error = http.StatusText(status)
			}
		}
		writeJSON(w, status, body)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, identity.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrReviewConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCanceled):
		return statusClientClosed
	case errors.Is(err, domain.ErrClassificationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUploadFailed), errors.Is(err, domain.ErrClassificationFailed):
		return http.StatusBadGateway
	case errors.Is(err, domai.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func principal(req *http.Request) identity.Principal {
	p, _ := identity.FromContext(req.Context())
	return p
}

func queryInt(req *http.Request, key string) int {
	v, _ := strconv.Atoi(req.URL.Query().Get(key))
	return v
}
