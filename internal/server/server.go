// Package server exposes the assessment engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/abhisek/vitalq/internal/assessment"
	"github.com/abhisek/vitalq/internal/catalog"
	"github.com/abhisek/vitalq/internal/fault"
	"github.com/abhisek/vitalq/internal/logging"
	"github.com/abhisek/vitalq/internal/response"
)

// Engine is the assessment surface served over HTTP.
type Engine interface {
	Start(ctx context.Context, clientRef string) (assessment.StartResult, error)
	NextQuestion(ctx context.Context, id string) (assessment.NextResult, error)
	SubmitResponse(ctx context.Context, id, questionID string, value response.Value) (response.Response, error)
	PreviousQuestion(ctx context.Context, id string) (assessment.PreviousResult, error)
	Pause(ctx context.Context, id string) (assessment.PauseResult, error)
	Resume(ctx context.Context, id string) (assessment.ResumeResult, error)
	Abandon(ctx context.Context, id string) (assessment.State, error)
	Status(ctx context.Context, id string) (assessment.Report, error)
	Responses(ctx context.Context, id string) ([]response.Response, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server handles the assessment routes.
type Server struct {
	engine   Engine
	health   Pinger
	metrics  http.Handler
	validate *validator.Validate
	log      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHealth sets the dependency checked by /healthz.
func WithHealth(p Pinger) Option {
	return func(s *Server) { s.health = p }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New creates a Server.
func New(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates the HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return New(engine, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/assessments", func(r chi.Router) {
		r.Post("/", s.handleStart)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Get("/next", s.handleNext)
			r.Get("/responses", s.handleListResponses)
			r.Post("/responses", s.handleSubmit)
			r.Post("/previous", s.handlePrevious)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/abandon", s.handleAbandon)
		})
	})
	return r
}

type startRequest struct {
	ClientRef string `json:"clientRef" validate:"required,max=128"`
}

type startResponse struct {
	AssessmentID    string            `json:"assessmentId"`
	Status          assessment.Status `json:"status"`
	CurrentModuleID string            `json:"currentModuleId"`
	Resuming        bool              `json:"resuming"`
}

type submitRequest struct {
	QuestionID string          `json:"questionId" validate:"required,max=128"`
	Value      json.RawMessage `json:"value" validate:"required"`
}

type nextResponse struct {
	Question  *catalog.Question `json:"question,omitempty"`
	Completed bool              `json:"completed,omitempty"`
	Source    string            `json:"source,omitempty"`
	Skipped   []string          `json:"skipped,omitempty"`
}

type previousResponse struct {
	Question      *catalog.Question `json:"question,omitempty"`
	PreviousValue *response.Value   `json:"previousValue,omitempty"`
	AtStart       bool              `json:"atStart,omitempty"`
}

type pauseResponse struct {
	Status             assessment.Status `json:"status"`
	QuestionsAnswered  int               `json:"questionsAnswered"`
	ProgressPercentage int               `json:"progressPercentage"`
}

type resumeResponse struct {
	Status    assessment.Status `json:"status"`
	Question  *catalog.Question `json:"question,omitempty"`
	Completed bool              `json:"completed,omitempty"`
}

type statusResponse struct {
	AssessmentID    string            `json:"assessmentId"`
	Status          assessment.Status `json:"status"`
	CurrentModuleID string            `json:"currentModuleId"`
	QuestionsAsked  int               `json:"questionsAsked"`
	QuestionsSaved  int               `json:"questionsSaved"`
	CompletionRate  int               `json:"completionRate"`
	Summary         response.Summary  `json:"summary"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.Start(r.Context(), req.ClientRef)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Resuming {
		code = http.StatusOK
	}
	writeJSON(w, code, startResponse{
		AssessmentID:    res.State.ID,
		Status:          res.State.Status,
		CurrentModuleID: res.State.CurrentModuleID,
		Resuming:        res.Resuming,
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.NextQuestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nextResponse{
		Question:  res.Question,
		Completed: res.Completed,
		Source:    res.Source,
		Skipped:   res.Skipped,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var v response.Value
	if err := json.Unmarshal(req.Value, &v); err != nil {
		s.writeError(w, r, fault.New(fault.KindValidation, "server.submit", "value: %v", err))
		return
	}
	if _, err := s.engine.SubmitResponse(r.Context(), chi.URLParam(r, "id"), req.QuestionID, v); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func (s *Server) handleListResponses(w http.ResponseWriter, r *http.Request) {
	rs, err := s.engine.Responses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rs == nil {
		rs = []response.Response{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": rs})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.PreviousQuestion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.AtStart {
		writeJSON(w, http.StatusOK, previousResponse{AtStart: true})
		return
	}
	prev := res.PreviousValue
	writeJSON(w, http.StatusOK, previousResponse{Question: res.Question, PreviousValue: &prev})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Pause(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pauseResponse{
		Status:             res.State.Status,
		QuestionsAnswered:  res.QuestionsAnswered,
		ProgressPercentage: res.ProgressPercentage,
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resumeResponse{
		Status:    res.State.Status,
		Question:  res.Next.Question,
		Completed: res.Next.Completed,
	})
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Abandon(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]assessment.Status{"status": st.Status})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rep, err := s.engine.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		AssessmentID:    rep.State.ID,
		Status:          rep.State.Status,
		CurrentModuleID: rep.State.CurrentModuleID,
		QuestionsAsked:  rep.State.QuestionsAsked,
		QuestionsSaved:  rep.State.QuestionsSaved,
		CompletionRate:  rep.State.CompletionRate,
		Summary:         rep.Summary,
	})
}

// decode reads a JSON body into dst and validates its tags. Both failures
// report KindValidation.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "server.decode"
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fault.New(fault.KindValidation, op, "malformed request body: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return fault.New(fault.KindValidation, op, "field %s failed %q", jsonField(fe), fe.Tag())
		}
		return fault.Wrap(fault.KindValidation, op, err)
	}
	return nil
}

func jsonField(fe validator.FieldError) string {
	switch fe.Field() {
	case "ClientRef":
		return "clientRef"
	case "QuestionID":
		return "questionId"
	case "Value":
		return "value"
	default:
		return fe.Field()
	}
}

func statusFor(k fault.Kind) int {
	switch k {
	case fault.KindValidation:
		return http.StatusUnprocessableEntity
	case fault.KindNotApplicable, fault.KindAlreadyCompleted, fault.KindInvalidTransition, fault.KindConflict:
		return http.StatusConflict
	case fault.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	k := fault.KindOf(err)
	code := statusFor(k)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		msg = "internal error"
		k = fault.KindInternal
	}
	writeJSON(w, code, errorBody{Error: errorDetail{Code: k.Code(), Message: msg}})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
