package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionTitles(t *testing.T, body map[string]any) []string {
	t.Helper()
	sections, ok := body["overview"].([]any)
	require.True(t, ok, "payload has no overview sections")
	titles := make([]string, 0, len(sections))
	for _, s := range sections {
		titles = append(titles, s.(map[string]any)["title"].(string))
	}
	return titles
}

func overviewValue(t *testing.T, body map[string]any, section, label string) string {
	t.Helper()
	for _, s := range body["overview"].([]any) {
		sec := s.(map[string]any)
		if sec["title"] != section {
			continue
		}
		for _, item := range sec["items"].([]any) {
			row := item.(map[string]any)
			if row["label"] == label {
				return row["value"].(string)
			}
		}
	}
	t.Fatalf("no %q row in %q section", label, section)
	return ""
}

func actionLabels(t *testing.T, body map[string]any) []string {
	t.Helper()
	actions, ok := body["actions"].([]any)
	require.True(t, ok, "payload has no actions")
	labels := make([]string, 0, len(actions))
	for _, a := range actions {
		labels = append(labels, a.(map[string]any)["label"].(string))
	}
	return labels
}

func TestTransectDetail_ComposesPayload(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedOccurrence(t, st, 1, 42, 1, "2024-05-01T06:10:00Z")
	seedOccurrence(t, st, 2, 42, 2, "2024-05-01T06:25:00Z")
	seedTrackPoint(t, st, 42, "2024-05-01T06:00:00Z", -27.47, 153.02, "start")
	seedTrackPoint(t, st, 42, "2024-05-01T06:40:00Z", -27.48, 153.03, "end")
	mustExec(t, st, `
		INSERT INTO transect_info (transect_uid, pre_or_post, question_text, response)
		VALUES (42, 'pre', 'Sky condition', 'Clear')`)

	rec := doGet(t, h, "/api/v1/transects/42")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	transect := body["transect"].(map[string]any)
	assert.Equal(t, "Creek line", transect["name"])
	assert.Equal(t, float64(2), transect["occurrence_count"])

	assert.Equal(t, []string{"Summary", "Coordinates"}, sectionTitles(t, body))
	assert.Equal(t, "42", overviewValue(t, body, "Summary", "Identifier"))
	assert.Equal(t, "1.2", overviewValue(t, body, "Summary", "Distance (km)"))
	assert.Equal(t, "Lat -27.47, Long 153.02", overviewValue(t, body, "Coordinates", "Start"))
	assert.Equal(t, emDash, overviewValue(t, body, "Coordinates", "Turn"))

	assert.Len(t, body["occurrences"], 2)
	assert.Len(t, body["track_points"], 2)
	assert.Len(t, body["info_rows"], 1)
	assert.Empty(t, body["history"])

	assert.Equal(t, []string{"Export responses", "Download GPS track"}, actionLabels(t, body))
	first := body["actions"].([]any)[0].(map[string]any)
	assert.Equal(t, "/api/v1/transects/42/responses.csv", first["url"])
}

func TestTransectDetail_LinksTemplateWhenSet(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedTemplateTransect(t, st, "tt-1", "Dawn creek run", "2024-05-01T05:30:00Z")
	mustExec(t, st, `UPDATE transects SET template_id = 'tt-1' WHERE uid = 42`)

	body := decodeBody(t, doGet(t, h, "/api/v1/transects/42"))

	assert.Equal(t, "Dawn creek run", overviewValue(t, body, "Summary", "Template"))
	labels := actionLabels(t, body)
	require.Contains(t, labels, "View template")
	last := body["actions"].([]any)[2].(map[string]any)
	assert.Equal(t, "/api/v1/template-transects/tt-1", last["url"])
}

func TestTransectUpdate_PersistsAndRecordsHistory(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")

	rec := doPut(t, h, "/api/v1/transects/42", map[string]any{
		"name":          "Creek line (audited)",
		"start_time":    "2024-05-01T06:00:00Z",
		"end_time":      "2024-05-01T06:00:00Z",
		"lat_from":      -27.47,
		"long_from":     153.02,
		"lat_to":        -27.48,
		"long_to":       153.03,
		"distance_km":   1.2,
		"angle_degrees": 90,
		"state":         "audited",
		"changed_by":    "kwalsh",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	transect := body["transect"].(map[string]any)
	assert.Equal(t, "Creek line (audited)", transect["name"])
	assert.Equal(t, "audited", transect["state"])

	// The refreshed payload already carries the change it just made.
	history := body["history"].([]any)
	require.Len(t, history, 1)
	entry := history[0].(map[string]any)
	assert.Equal(t, "update", entry["change_type"])
	assert.Equal(t, "kwalsh", entry["changed_by"])
	assert.Contains(t, entry["fields_changed"], "name")
	assert.Contains(t, entry["fields_changed"], "state")
}

func TestTransectUpdate_ReportsEveryMissingField(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")

	rec := doPut(t, h, "/api/v1/transects/42", map[string]any{})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, rec))

	body := decodeBody(t, rec)
	details := body["error"].(map[string]any)["details"].([]any)
	fields := make([]string, 0, len(details))
	for _, d := range details {
		fields = append(fields, d.(map[string]any)["field"].(string))
	}
	assert.ElementsMatch(t, []string{"name", "start_time", "end_time", "state"}, fields)
}

func TestOccurrenceDetail_ComposesPayload(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedOccurrence(t, st, 1, 42, 3, "2024-05-01T06:10:00Z")
	seedTemplateWorkflow(t, st, "tw-1", "Frog census")
	seedWorkflow(t, st, "wf-1", 1, "tw-1", 1)
	seedResponse(t, st, 1, "wf-1", 1, "How many calling?", "4")
	seedResponse(t, st, 1, "wf-1", 2, "Weather", "Clear")
	mustExec(t, st, `
		INSERT INTO occurrence_info (occurrence_id, pre_or_post, question_text, response)
		VALUES (1, 'post', 'Recording quality', 'Good')`)

	rec := doGet(t, h, "/api/v1/occurrences/1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	occurrence := body["occurrence"].(map[string]any)
	assert.Equal(t, float64(3), occurrence["occurrence_number"])
	assert.Equal(t, "Creek line", occurrence["transect_name"])

	assert.Equal(t, []string{"Summary", "Notes"}, sectionTitles(t, body))
	assert.Equal(t, "Creek line", overviewValue(t, body, "Summary", "Transect"))
	assert.Equal(t, emDash, overviewValue(t, body, "Notes", "Note"))

	assert.Len(t, body["responses"], 2)
	assert.Len(t, body["info_rows"], 1)

	workflows := body["workflows"].([]any)
	require.Len(t, workflows, 1)
	assert.Equal(t, "Frog census", workflows[0].(map[string]any)["template_name"])

	assert.Equal(t, []string{"Export responses", "View parent transect"}, actionLabels(t, body))
	parent := body["actions"].([]any)[1].(map[string]any)
	assert.Equal(t, "/api/v1/transects/42", parent["url"])
}

func TestOccurrenceUpdate_PersistsNote(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedOccurrence(t, st, 1, 42, 3, "2024-05-01T06:10:00Z")

	rec := doPut(t, h, "/api/v1/occurrences/1", map[string]any{
		"transect_uid":         42,
		"occurrence_number":    3,
		"recording_start_time": "2024-05-01T06:10:00Z",
		"note":                 "Heard calling near the culvert.",
		"state":                "audited",
		"changed_by":           "lcheng",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	occurrence := body["occurrence"].(map[string]any)
	assert.Equal(t, "Heard calling near the culvert.", occurrence["note"])

	historyBody := decodeBody(t, doGet(t, h, "/api/v1/history?entity=occurrence"))
	entries := items(t, historyBody)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "1", entry["entity_key"])
	assert.Equal(t, "lcheng", entry["changed_by"])
	assert.Contains(t, entry["fields_changed"], "note")
}

func TestOccurrenceUpdate_RejectsOutOfRangeCoordinates(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedOccurrence(t, st, 1, 42, 3, "2024-05-01T06:10:00Z")

	rec := doPut(t, h, "/api/v1/occurrences/1", map[string]any{
		"transect_uid":         42,
		"occurrence_number":    3,
		"recording_start_time": "2024-05-01T06:10:00Z",
		"lat":                  95.0,
		"long":                 190.0,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	details := body["error"].(map[string]any)["details"].([]any)
	require.Len(t, details, 2)
	assert.Equal(t, "lat", details[0].(map[string]any)["field"])
	assert.Equal(t, "latitude out of range", details[0].(map[string]any)["message"])
	assert.Equal(t, "long", details[1].(map[string]any)["field"])
	assert.Equal(t, "longitude out of range", details[1].(map[string]any)["message"])
}
