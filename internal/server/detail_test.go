package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowDetail_ReturnsAnnotatedEntity(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedOccurrence(t, st, 1, 42, 1, "2024-05-01T06:10:00Z")
	seedTemplateWorkflow(t, st, "tw-1", "Frog census")
	seedWorkflow(t, st, "wf-1", 1, "tw-1", 1)

	rec := doGet(t, h, "/api/v1/workflows/wf-1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "wf-1", body["uid"])
	assert.Equal(t, float64(1), body["occurrence_id"])
	assert.Equal(t, "Frog census", body["template_name"])
	assert.Equal(t, float64(42), body["transect_uid"])
	assert.Equal(t, "Creek line", body["transect_name"])
}

func TestWorkflowUpdate_PersistsAndRecordsHistory(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedOccurrence(t, st, 1, 42, 1, "2024-05-01T06:10:00Z")
	seedTemplateWorkflow(t, st, "tw-1", "Frog census")
	seedWorkflow(t, st, "wf-1", 1, "tw-1", 1)

	rec := doPut(t, h, "/api/v1/workflows/wf-1", map[string]any{
		"occurrence_id":        1,
		"template_workflow_id": "tw-1",
		"instance_number":      1,
		"completed_by":         "kwalsh",
		"changed_by":           "lcheng",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "kwalsh", body["completed_by"])

	historyBody := decodeBody(t, doGet(t, h, "/api/v1/history?entity=workflow"))
	entries := items(t, historyBody)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "wf-1", entry["entity_key"])
	assert.Equal(t, "lcheng", entry["changed_by"])
	assert.Contains(t, entry["fields_changed"], "completed_by")
}

func TestWorkflowUpdate_ReportsMissingFields(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedOccurrence(t, st, 1, 42, 1, "2024-05-01T06:10:00Z")
	seedTemplateWorkflow(t, st, "tw-1", "Frog census")
	seedWorkflow(t, st, "wf-1", 1, "tw-1", 1)

	rec := doPut(t, h, "/api/v1/workflows/wf-1", map[string]any{
		"occurrence_id": 1,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(t, rec))

	body := decodeBody(t, rec)
	details := body["error"].(map[string]any)["details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, "template_workflow_id", details[0].(map[string]any)["field"])
}

func TestWorkflowUpdate_RejectsUnknownBodyFields(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedOccurrence(t, st, 1, 42, 1, "2024-05-01T06:10:00Z")
	seedTemplateWorkflow(t, st, "tw-1", "Frog census")
	seedWorkflow(t, st, "wf-1", 1, "tw-1", 1)

	rec := doPut(t, h, "/api/v1/workflows/wf-1", map[string]any{
		"occurrence_id":        1,
		"template_workflow_id": "tw-1",
		"template_name":        "read-only annotation",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_JSON", errorCode(t, rec))
}

func TestTemplateTransectUpdate_Persists(t *testing.T) {
	st, h := newTestServer(t)
	seedTemplateTransect(t, st, "tt-1", "Dawn creek run", "2024-05-01T05:30:00Z")

	rec := doPut(t, h, "/api/v1/template-transects/tt-1", map[string]any{
		"name":           "Dawn creek run (revised)",
		"scheduled_time": "2024-05-08T05:30:00Z",
		"lat_from":       -27.47,
		"long_from":      153.02,
		"note":           "Moved a week out for flooding.",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Dawn creek run (revised)", body["name"])
	assert.Equal(t, "Moved a week out for flooding.", body["note"])

	got := decodeBody(t, doGet(t, h, "/api/v1/template-transects/tt-1"))
	assert.Equal(t, "Dawn creek run (revised)", got["name"])
}

func TestTemplateTransectUpdate_RejectsBadCoordinates(t *testing.T) {
	st, h := newTestServer(t)
	seedTemplateTransect(t, st, "tt-1", "Dawn creek run", "2024-05-01T05:30:00Z")

	rec := doPut(t, h, "/api/v1/template-transects/tt-1", map[string]any{
		"name":           "Dawn creek run",
		"scheduled_time": "2024-05-08T05:30:00Z",
		"lat_from":       -127.47,
		"long_from":      153.02,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	details := body["error"].(map[string]any)["details"].([]any)
	require.Len(t, details, 1)
	field := details[0].(map[string]any)
	assert.Equal(t, "lat_from", field["field"])
	assert.Equal(t, "latitude out of range", field["message"])
}

func TestDataTypeDetail_EmbedsOptionsAndCounts(t *testing.T) {
	st, h := newTestServer(t)
	seedDataType(t, st, "dt-1", "Species")
	seedDataTypeOption(t, st, "dt-1", "LC", "Litoria caerulea")
	seedDataTypeOption(t, st, "dt-1", "LF", "Litoria fallax")
	seedQuestion(t, st, "q-1", "Which species?", "dt-1", "Species")

	rec := doGet(t, h, "/api/v1/data-types/dt-1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	dataType := body["data_type"].(map[string]any)
	assert.Equal(t, "Species", dataType["name"])
	assert.Equal(t, float64(2), dataType["option_count"])
	assert.Equal(t, float64(1), dataType["question_count"])

	options := body["options"].([]any)
	require.Len(t, options, 2)
	first := options[0].(map[string]any)
	assert.Equal(t, "LC", first["code"])
	assert.Equal(t, "Litoria caerulea", first["text"])
}

func TestQuestionDetail_EmbedsReferences(t *testing.T) {
	st, h := newTestServer(t)
	seedDataType(t, st, "dt-1", "Species")
	seedTemplateWorkflow(t, st, "tw-1", "Frog census")
	seedQuestion(t, st, "q-1", "Which species?", "dt-1", "Species")
	mustExec(t, st, `UPDATE questions SET workflow_id = 'tw-1' WHERE id = 'q-1'`)

	rec := doGet(t, h, "/api/v1/questions/q-1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	question := body["question"].(map[string]any)
	assert.Equal(t, "Which species?", question["prompt"])

	dataType := body["data_type"].(map[string]any)
	assert.Equal(t, "Species", dataType["name"])

	workflow := body["workflow"].(map[string]any)
	assert.Equal(t, "Frog census", workflow["name"])
}

func TestQuestionDetail_ToleratesDanglingDataType(t *testing.T) {
	st, h := newTestServer(t)
	seedDataType(t, st, "dt-1", "Species")
	seedQuestion(t, st, "q-1", "Which species?", "dt-1", "Species")
	mustExec(t, st, `DELETE FROM data_types WHERE id = 'dt-1'`)

	rec := doGet(t, h, "/api/v1/questions/q-1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotContains(t, body, "data_type")

	// The denormalized name still travels with the question itself.
	question := body["question"].(map[string]any)
	assert.Equal(t, "Species", question["data_type_name"])
}

func TestDataLogDetail_PreviewsContents(t *testing.T) {
	st, h := newTestServer(t)
	seedTransect(t, st, 42, "Creek line", "2024-05-01T06:00:00Z", "uploaded")
	seedDataLogFile(t, st, 7, "2024-05-01T09:00:00Z", "kwalsh", "line one\nline two\n")
	seedTransectDataLog(t, st, 1, 7, 42)

	rec := doGet(t, h, "/api/v1/data-logs/7")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	assert.Equal(t, "line one\nline two\n", body["contents_preview"])
	assert.Equal(t, false, body["contents_truncated"])

	// The full contents stay out of the payload.
	file := body["file"].(map[string]any)
	assert.NotContains(t, file, "contents")
	assert.Equal(t, "kwalsh", file["uploaded_by"])

	links := body["links"].([]any)
	require.Len(t, links, 1)
	link := links[0].(map[string]any)
	assert.Equal(t, float64(42), link["transect_uid"])
	assert.Equal(t, "Creek line", link["transect_name"])
}

func TestDataLogDetail_TruncatesLongContents(t *testing.T) {
	st, h := newTestServer(t)
	seedDataLogFile(t, st, 7, "2024-05-01T09:00:00Z", "kwalsh", strings.Repeat("x", 5000))

	rec := doGet(t, h, "/api/v1/data-logs/7")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["contents_preview"], 4096)
	assert.Equal(t, true, body["contents_truncated"])
}

func TestProjectConfigUpdate_RequiresProject(t *testing.T) {
	st, h := newTestServer(t)
	seedProjectConfig(t, st, 1, "2024-04-01T00:00:00Z", "Brisbane frogs")

	rec := doPut(t, h, "/api/v1/project-configs/1", map[string]any{
		"publish_date": "2024-04-02T00:00:00Z",
		"project":      "",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	details := body["error"].(map[string]any)["details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, "project", details[0].(map[string]any)["field"])
}

func TestUpdate_MissingRowIs404(t *testing.T) {
	_, h := newTestServer(t)

	rec := doPut(t, h, "/api/v1/data-types/nope", map[string]any{
		"name": "Species",
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
