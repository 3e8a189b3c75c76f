package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"resplan/internal/audit"
	"resplan/internal/calendar"
	"resplan/internal/service"
)

const maxBodyBytes = 1 << 20

// Server serves the engines over JSON. Handlers share one read-only snapshot.
type Server struct {
	svc    *service.Service
	logger *audit.Logger
	now    func() time.Time
}

type Option func(*Server)

// WithAuditLogger records validation and capacity checks in the audit log.
func WithAuditLogger(logger *audit.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock overrides the clock used for the as_of date of capacity overviews.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(svc *service.Service, opts ...Option) *Server {
	s := &Server{svc: svc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/end-date", s.endDate)
		r.Post("/cost", s.cost)
		r.Get("/estimate/{complexity}", s.estimate)
		r.Post("/allocations/validate", s.validateAllocation)
		r.Get("/capacity", s.capacityOverview)
		r.Get("/capacity/{resource}", s.resourceCapacity)
	})
	return r
}

func (s *Server) endDate(w http.ResponseWriter, r *http.Request) {
	var in service.EndDateInput
	if !decode(w, r, &in) {
		return
	}
	out, err := s.svc.EndDate(in)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cost(w http.ResponseWriter, r *http.Request) {
	var in service.CostInput
	if !decode(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Cost(in))
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request) {
	buffer := 0.0
	if raw := r.URL.Query().Get("buffer"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid buffer %q", raw))
			return
		}
		buffer = v
	}
	writeJSON(w, http.StatusOK, s.svc.Estimate(chi.URLParam(r, "complexity"), buffer))
}

func (s *Server) validateAllocation(w http.ResponseWriter, r *http.Request) {
	var in service.ValidateInput
	if !decode(w, r, &in) {
		return
	}
	res, err := s.svc.Validate(in)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.audit("allocation_validated", map[string]any{
		"resource":              in.Resource,
		"allocation_percentage": in.AllocationPercentage,
		"valid":                 res.Valid,
		"projected":             res.ProjectedUtilization,
		"request_id":            middleware.GetReqID(r.Context()),
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) capacityOverview(w http.ResponseWriter, r *http.Request) {
	window, err := service.Window(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	asOf := calendar.Day(s.now().UTC())
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err = calendar.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("as_of: %w", err))
			return
		}
	}
	rep, err := s.svc.Overview(asOf, window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) resourceCapacity(w http.ResponseWriter, r *http.Request) {
	window, err := service.Window(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Resource(chi.URLParam(r, "resource"), window))
}

func (s *Server) audit(eventType string, payload map[string]any) {
	if s.logger == nil {
		return
	}
	if err := s.logger.LogEvent("api", eventType, payload); err != nil {
		log.Printf("audit %s: %v", eventType, err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func statusFor(err error) int {
	if errors.Is(err, calendar.ErrInvalidDate) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
