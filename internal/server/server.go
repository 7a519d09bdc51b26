// Package server exposes the survey database as a JSON HTTP API.
//
// All routes live under /api/v1: a dashboard and navigation tree, filtered
// list endpoints for every survey and reference entity, detail endpoints
// that accept PUT edits, CSV and GPX exports, and a health check. Errors
// share one envelope:
//
//	{"error": {"code": "NOT_FOUND", "message": "transect not found"}}
//
// List endpoints take the filter parameters understood by queryfilter plus
// page and page_size; unknown parameters are rejected with field errors.
package server

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/calderbay/fieldwork/internal/queryfilter"
	"github.com/calderbay/fieldwork/internal/store"
)

// Server routes API requests to a backing store.
type Server struct {
	store    *store.Store
	log      *slog.Logger
	pageSize int
}

// Options adjust a Server beyond its store.
type Options struct {
	// Logger receives one line per request. Defaults to slog.Default().
	Logger *slog.Logger
	// PageSize applies when a request does not set page_size.
	// Defaults to queryfilter.DefaultPageSize.
	PageSize int
}

// New builds a Server over st.
func New(st *store.Store, opts Options) *Server {
	s := &Server{store: st, log: opts.Logger, pageSize: opts.PageSize}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.pageSize <= 0 {
		s.pageSize = queryfilter.DefaultPageSize
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", s.handleHealth)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/navigation", s.handleNavigation)

		r.Route("/transects", func(r chi.Router) {
			r.Get("/", s.handleTransectList)
			r.Get("/{uid}", s.handleTransectDetail)
			r.Put("/{uid}", s.handleTransectUpdate)
			r.Get("/{uid}/responses.csv", s.handleTransectResponsesCSV)
			r.Get("/{uid}/track.gpx", s.handleTransectTrackGPX)
		})
		r.Route("/occurrences", func(r chi.Router) {
			r.Get("/", s.handleOccurrenceList)
			r.Get("/{id}", s.handleOccurrenceDetail)
			r.Put("/{id}", s.handleOccurrenceUpdate)
			r.Get("/{id}/responses.csv", s.handleOccurrenceResponsesCSV)
		})
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleWorkflowList)
			r.Get("/{uid}", s.handleWorkflowDetail)
			r.Put("/{uid}", s.handleWorkflowUpdate)
		})
		r.Route("/template-transects", func(r chi.Router) {
			r.Get("/", s.handleTemplateTransectList)
			r.Get("/{id}", s.handleTemplateTransectDetail)
			r.Put("/{id}", s.handleTemplateTransectUpdate)
		})
		r.Route("/template-workflows", func(r chi.Router) {
			r.Get("/", s.handleTemplateWorkflowList)
			r.Get("/{id}", s.handleTemplateWorkflowDetail)
			r.Put("/{id}", s.handleTemplateWorkflowUpdate)
		})
		r.Route("/questions", func(r chi.Router) {
			r.Get("/", s.handleQuestionList)
			r.Get("/{id}", s.handleQuestionDetail)
			r.Put("/{id}", s.handleQuestionUpdate)
		})
		r.Route("/data-types", func(r chi.Router) {
			r.Get("/", s.handleDataTypeList)
			r.Get("/{id}", s.handleDataTypeDetail)
			r.Put("/{id}", s.handleDataTypeUpdate)
		})
		r.Route("/data-type-options", func(r chi.Router) {
			r.Get("/", s.handleDataTypeOptionList)
			r.Get("/{id}", s.handleDataTypeOptionDetail)
			r.Put("/{id}", s.handleDataTypeOptionUpdate)
		})
		r.Route("/project-configs", func(r chi.Router) {
			r.Get("/", s.handleProjectConfigList)
			r.Get("/{id}", s.handleProjectConfigDetail)
			r.Put("/{id}", s.handleProjectConfigUpdate)
		})
		r.Route("/data-logs", func(r chi.Router) {
			r.Get("/", s.handleDataLogList)
			r.Get("/{id}", s.handleDataLogDetail)
			r.Put("/{id}", s.handleDataLogUpdate)
		})
		r.Route("/transect-data-logs", func(r chi.Router) {
			r.Get("/", s.handleTransectDataLogList)
			r.Get("/{id}", s.handleTransectDataLogDetail)
			r.Put("/{id}", s.handleTransectDataLogUpdate)
		})
		r.Get("/history", s.handleHistoryList)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.SchemaVersion(r.Context())
	if err != nil {
		s.log.Error("schema version check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "database unavailable", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"schema_version": version,
	})
}

// parsePage reads page/page_size, substituting the server default when the
// request leaves page_size unset.
func (s *Server) parsePage(q url.Values) (queryfilter.Page, error) {
	page, err := queryfilter.ParsePage(q)
	if err != nil {
		return queryfilter.Page{}, err
	}
	if q.Get("page_size") == "" {
		page.Size = s.pageSize
		page = page.Clamp()
	}
	return page, nil
}
