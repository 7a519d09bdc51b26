package server

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/calderbay/fieldwork/internal/store"
	"github.com/calderbay/fieldwork/internal/survey"
)

// recentLimit is how many rows each dashboard feed carries.
const recentLimit = 5

type metricCard struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Count *int64 `json:"count"`
	URL   string `json:"url"`
}

type quickLink struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Count       *int64 `json:"count"`
	URL         string `json:"url"`
}

type recentTransect struct {
	UID       int64     `json:"uid"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	State     string    `json:"state"`
	URL       string    `json:"url"`
}

type recentOccurrence struct {
	ID               int64   `json:"id"`
	OccurrenceNumber int64   `json:"occurrence_number"`
	TransectName     string  `json:"transect_name"`
	State            *string `json:"state"`
	URL              string  `json:"url"`
}

type recentUpload struct {
	ID         int64      `json:"id"`
	UploadDate *time.Time `json:"upload_date"`
	UploadedBy *string    `json:"uploaded_by"`
	URL        string     `json:"url"`
}

type recentChange struct {
	Label      string    `json:"label"`
	Entity     string    `json:"entity"`
	EntityKey  string    `json:"entity_key"`
	ChangeType string    `json:"change_type"`
	ChangedAt  time.Time `json:"changed_at"`
	ChangedBy  *string   `json:"changed_by"`
	URL        string    `json:"url"`
}

type dashboardPayload struct {
	Metrics           []metricCard       `json:"metrics"`
	QuickLinks        []quickLink        `json:"quick_links"`
	RecentTransects   []recentTransect   `json:"recent_transects"`
	RecentOccurrences []recentOccurrence `json:"recent_occurrences"`
	RecentUploads     []recentUpload     `json:"recent_uploads"`
	RecentHistory     []recentChange     `json:"recent_history"`
}

// historyLabels maps audit entity names to dashboard feed labels.
var historyLabels = map[string]string{
	survey.EntityTransect:   "Transect",
	survey.EntityOccurrence: "Occurrence",
	survey.EntityWorkflow:   "Workflow",
	survey.EntityQuestion:   "Question",
}

// historyEntityPaths maps audit entity names to their detail route prefix.
var historyEntityPaths = map[string]string{
	survey.EntityTransect:   "/api/v1/transects/",
	survey.EntityOccurrence: "/api/v1/occurrences/",
	survey.EntityWorkflow:   "/api/v1/workflows/",
	survey.EntityQuestion:   "/api/v1/questions/",
}

func metricCards(m store.DashboardMetrics) []metricCard {
	return []metricCard{
		{
			Label: "Completed Transects",
			Icon:  "fa-solid fa-route",
			Count: m.CompletedTransects,
			URL:   "/api/v1/transects",
		},
		{
			Label: "Completed Occurrences",
			Icon:  "fa-solid fa-frog",
			Count: m.CompletedOccurrences,
			URL:   "/api/v1/occurrences",
		},
		{
			Label: "Completed Workflows",
			Icon:  "fa-solid fa-diagram-project",
			Count: m.CompletedWorkflows,
			URL:   "/api/v1/workflows",
		},
		{
			Label: "Outstanding Tasks",
			Icon:  "fa-solid fa-clipboard-list",
			Count: m.OutstandingTasks,
			URL:   "/api/v1/workflows",
		},
	}
}

func quickLinks(pendingAudits *int64, historyCount int64) []quickLink {
	return []quickLink{
		{
			Label:       "Review Pending Audits",
			Description: "Transects awaiting post-survey audit.",
			Icon:        "fa-solid fa-clipboard-check",
			Count:       pendingAudits,
			URL:         "/api/v1/transects",
		},
		{
			Label:       "Browse History Timeline",
			Description: "Inspect recent changes across survey data.",
			Icon:        "fa-solid fa-clock-rotate-left",
			Count:       &historyCount,
			URL:         "/api/v1/history",
		},
	}
}

// handleDashboard assembles the landing payload. Each feed degrades to an
// empty list on failure and metric counts go null, so one broken table
// never blanks the whole dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload := dashboardPayload{
		Metrics:           metricCards(s.store.DashboardMetrics(ctx)),
		RecentTransects:   []recentTransect{},
		RecentOccurrences: []recentOccurrence{},
		RecentUploads:     []recentUpload{},
		RecentHistory:     []recentChange{},
	}

	if transects, err := s.store.RecentTransects(ctx, recentLimit); err == nil {
		for _, t := range transects {
			payload.RecentTransects = append(payload.RecentTransects, recentTransect{
				UID:       t.UID,
				Name:      t.Name,
				StartTime: t.StartTime,
				State:     t.State,
				URL:       "/api/v1/transects/" + strconv.FormatInt(t.UID, 10),
			})
		}
	} else {
		s.log.Warn("recent transects feed failed", "error", err)
	}

	if occurrences, err := s.store.RecentOccurrences(ctx, recentLimit); err == nil {
		for _, o := range occurrences {
			payload.RecentOccurrences = append(payload.RecentOccurrences, recentOccurrence{
				ID:               o.ID,
				OccurrenceNumber: o.OccurrenceNumber,
				TransectName:     o.TransectName,
				State:            o.State,
				URL:              "/api/v1/occurrences/" + strconv.FormatInt(o.ID, 10),
			})
		}
	} else {
		s.log.Warn("recent occurrences feed failed", "error", err)
	}

	if uploads, err := s.store.RecentUploads(ctx, recentLimit); err == nil {
		for _, u := range uploads {
			payload.RecentUploads = append(payload.RecentUploads, recentUpload{
				ID:         u.ID,
				UploadDate: u.UploadDate,
				UploadedBy: u.UploadedBy,
				URL:        "/api/v1/data-logs/" + strconv.FormatInt(u.ID, 10),
			})
		}
	} else {
		s.log.Warn("recent uploads feed failed", "error", err)
	}

	if entries, err := s.store.RecentHistory(ctx, recentLimit); err == nil {
		for _, e := range entries {
			change := recentChange{
				Label:      historyLabels[e.Entity],
				Entity:     e.Entity,
				EntityKey:  e.EntityKey,
				ChangeType: e.ChangeType,
				ChangedAt:  e.ChangedAt,
				ChangedBy:  e.ChangedBy,
			}
			if prefix, ok := historyEntityPaths[e.Entity]; ok {
				change.URL = prefix + url.PathEscape(e.EntityKey)
			}
			payload.RecentHistory = append(payload.RecentHistory, change)
		}
	} else {
		s.log.Warn("recent history feed failed", "error", err)
	}

	var pendingAudits *int64
	if n, err := s.store.PendingAuditCount(ctx); err == nil {
		pendingAudits = &n
	} else {
		s.log.Warn("pending audit count failed", "error", err)
	}
	payload.QuickLinks = quickLinks(pendingAudits, int64(len(payload.RecentHistory)))

	writeJSON(w, http.StatusOK, payload)
}

type navChild struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type navSection struct {
	Label    string     `json:"label"`
	Icon     string     `json:"icon"`
	Children []navChild `json:"children"`
}

// navigationSections is the section tree clients render as the sidebar.
// Labels and icons follow the collector review UI.
var navigationSections = []navSection{
	{
		Label: "Dashboard",
		Icon:  "fa-solid fa-gauge-high",
		Children: []navChild{
			{Label: "Overview", URL: "/api/v1/dashboard"},
			{Label: "Recent Activity", URL: "/api/v1/history"},
		},
	},
	{
		Label: "Transects",
		Icon:  "fa-solid fa-route",
		Children: []navChild{
			{Label: "Completed Transects", URL: "/api/v1/transects"},
			{Label: "Transect History", URL: "/api/v1/history?entity=transect"},
		},
	},
	{
		Label: "Occurrences",
		Icon:  "fa-solid fa-frog",
		Children: []navChild{
			{Label: "Completed Occurrences", URL: "/api/v1/occurrences"},
			{Label: "Occurrence History", URL: "/api/v1/history?entity=occurrence"},
		},
	},
	{
		Label: "Workflows",
		Icon:  "fa-solid fa-diagram-project",
		Children: []navChild{
			{Label: "Workflow Runs", URL: "/api/v1/workflows"},
			{Label: "Workflow History", URL: "/api/v1/history?entity=workflow"},
		},
	},
	{
		Label: "Templates",
		Icon:  "fa-solid fa-layer-group",
		Children: []navChild{
			{Label: "Template Transects", URL: "/api/v1/template-transects"},
			{Label: "Template Workflows", URL: "/api/v1/template-workflows"},
			{Label: "Template Questions", URL: "/api/v1/questions"},
		},
	},
	{
		Label: "Reference Data",
		Icon:  "fa-solid fa-database",
		Children: []navChild{
			{Label: "Data Types", URL: "/api/v1/data-types"},
			{Label: "Data Type Options", URL: "/api/v1/data-type-options"},
			{Label: "Project Config", URL: "/api/v1/project-configs"},
		},
	},
	{
		Label: "Data Logs",
		Icon:  "fa-solid fa-file-arrow-down",
		Children: []navChild{
			{Label: "Uploaded Logs", URL: "/api/v1/data-logs"},
			{Label: "Transect Links", URL: "/api/v1/transect-data-logs"},
		},
	},
	{
		Label: "History",
		Icon:  "fa-solid fa-clock-rotate-left",
		Children: []navChild{
			{Label: "Transect History", URL: "/api/v1/history?entity=transect"},
			{Label: "Occurrence History", URL: "/api/v1/history?entity=occurrence"},
			{Label: "Workflow History", URL: "/api/v1/history?entity=workflow"},
			{Label: "Question History", URL: "/api/v1/history?entity=question"},
		},
	},
}

func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sections": navigationSections})
}
