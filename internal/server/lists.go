package server

import (
	"net/http"

	"github.com/calderbay/fieldwork/internal/queryfilter"
)

func (s *Server) handleTransectList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseTransectFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListTransects(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "transects")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleOccurrenceList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseOccurrenceFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListOccurrences(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "occurrences")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleWorkflowList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseWorkflowFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListWorkflows(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "workflows")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleTemplateTransectList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseTemplateTransectFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListTemplateTransects(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "template transects")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleTemplateWorkflowList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseTemplateWorkflowFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListTemplateWorkflows(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "template workflows")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleQuestionList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseQuestionFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListQuestions(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "questions")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleDataTypeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseDataTypeFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListDataTypes(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "data types")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleDataTypeOptionList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseDataTypeOptionFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListDataTypeOptions(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "data type options")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleProjectConfigList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseProjectConfigFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListProjectConfigs(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "project configs")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleDataLogList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseDataLogFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListDataLogFiles(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "data log files")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleTransectDataLogList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseTransectDataLogFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListTransectDataLogs(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "transect data logs")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := queryfilter.ParseHistoryFilter(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	page, err := s.parsePage(q)
	if err != nil {
		badFilter(w, err)
		return
	}
	items, info, err := s.store.ListHistory(r.Context(), f, page)
	if err != nil {
		s.storeError(w, r, err, "history")
		return
	}
	writeJSON(w, http.StatusOK, newListPayload(items, info, f))
}
