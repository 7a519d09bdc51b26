package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/calderbay/fieldwork/internal/survey"
)

func buildImport() ProjectImport {
	prompt := "Species?"
	countPrompt := "How many?"
	text := "Litoria caerulea"
	by := "tbaker"
	note := "Start at the weir gate"
	distance := 1.4

	return ProjectImport{
		Project:       "Frogs of the Lockyer",
		ConfigFolder:  "configs/lockyer",
		ConfigFile:    "project.cue",
		TransectsFile: "transects.cue",
		PublishedBy:   &by,
		DataTypes: []survey.DataType{
			{ID: "dt-species", Name: "Species list"},
			{ID: "dt-count", Name: "Count"},
		},
		DataTypeOptions: []survey.DataTypeOption{
			{DataTypeID: "dt-species", Code: "LC", Text: &text},
			{DataTypeID: "dt-species", Code: "LF"},
		},
		TemplateWorkflows: []survey.TemplateWorkflow{
			{ID: "tplw-frog", Name: "Frog ID"},
		},
		Questions: []survey.Question{
			{ID: "q-species", Prompt: &prompt, DataTypeID: "dt-species", DataTypeName: "Species list"},
			{ID: "q-count", Prompt: &countPrompt, DataTypeID: "dt-count", DataTypeName: "Count"},
		},
		TemplateTransects: []survey.TemplateTransect{
			{
				ID:            "tpl-creek",
				Name:          "Creek crossing plan",
				ScheduledTime: mustParseTime("2024-04-01T08:00:00Z"),
				LatFrom:       -27.47,
				LongFrom:      152.98,
				DistanceKM:    &distance,
				Note:          &note,
			},
		},
	}
}

func mustParseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestImportProjectConfig_CreatesEverything(t *testing.T) {
	s := createTestStore(t)
	published := setClock(t, s, "2024-03-01T08:00:00Z")

	counts, configID, err := s.ImportProjectConfig(context.Background(), buildImport())
	if err != nil {
		t.Fatalf("ImportProjectConfig() failed: %v", err)
	}

	want := ImportCounts{
		DataTypes:         ChangeCount{Created: 2},
		DataTypeOptions:   ChangeCount{Created: 2},
		TemplateWorkflows: ChangeCount{Created: 1},
		Questions:         ChangeCount{Created: 2},
		TemplateTransects: ChangeCount{Created: 1},
	}
	if counts != want {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}

	config, err := s.GetProjectConfig(context.Background(), configID)
	if err != nil {
		t.Fatalf("GetProjectConfig() failed: %v", err)
	}
	if config.Project != "Frogs of the Lockyer" {
		t.Errorf("Project = %q, want Frogs of the Lockyer", config.Project)
	}
	if !config.PublishDate.Equal(published) {
		t.Errorf("PublishDate = %v, want %v", config.PublishDate, published)
	}

	tpl, err := s.GetTemplateTransect(context.Background(), "tpl-creek")
	if err != nil {
		t.Fatalf("GetTemplateTransect() failed: %v", err)
	}
	if tpl.DistanceKM == nil || *tpl.DistanceKM != 1.4 {
		t.Errorf("DistanceKM = %v, want 1.4", tpl.DistanceKM)
	}
	if tpl.Note == nil || *tpl.Note != "Start at the weir gate" {
		t.Errorf("Note = %v, want the seeded note", tpl.Note)
	}

	options, err := s.DataTypeOptions(context.Background(), "dt-species")
	if err != nil {
		t.Fatalf("DataTypeOptions() failed: %v", err)
	}
	if len(options) != 2 {
		t.Errorf("len(options) = %d, want 2", len(options))
	}
}

func TestImportProjectConfig_ReimportCountsUpdated(t *testing.T) {
	s := createTestStore(t)

	if _, _, err := s.ImportProjectConfig(context.Background(), buildImport()); err != nil {
		t.Fatalf("first ImportProjectConfig() failed: %v", err)
	}

	// Re-publish with a renamed data type and relabelled option.
	imp := buildImport()
	imp.DataTypes[0].Name = "Frog species list"
	newText := "Litoria caerulea (green tree frog)"
	imp.DataTypeOptions[0].Text = &newText

	counts, configID, err := s.ImportProjectConfig(context.Background(), imp)
	if err != nil {
		t.Fatalf("second ImportProjectConfig() failed: %v", err)
	}

	want := ImportCounts{
		DataTypes:         ChangeCount{Updated: 2},
		DataTypeOptions:   ChangeCount{Updated: 2},
		TemplateWorkflows: ChangeCount{Updated: 1},
		Questions:         ChangeCount{Updated: 2},
		TemplateTransects: ChangeCount{Updated: 1},
	}
	if counts != want {
		t.Errorf("counts = %+v, want %+v", counts, want)
	}
	if configID == 0 {
		t.Error("configID = 0, want a fresh publish row")
	}

	// Upserted, not duplicated
	if n := countTable(t, s, "data_types"); n != 2 {
		t.Errorf("data_types count = %d, want 2", n)
	}
	if n := countTable(t, s, "data_type_options"); n != 2 {
		t.Errorf("data_type_options count = %d, want 2", n)
	}
	if n := countTable(t, s, "project_configs"); n != 2 {
		t.Errorf("project_configs count = %d, want 2", n)
	}

	dt, err := s.GetDataType(context.Background(), "dt-species")
	if err != nil {
		t.Fatalf("GetDataType() failed: %v", err)
	}
	if dt.Name != "Frog species list" {
		t.Errorf("Name = %q, want Frog species list", dt.Name)
	}

	options, err := s.DataTypeOptions(context.Background(), "dt-species")
	if err != nil {
		t.Fatalf("DataTypeOptions() failed: %v", err)
	}
	if options[0].Text == nil || *options[0].Text != newText {
		t.Errorf("Text = %v, want %q", options[0].Text, newText)
	}
}

func TestImportProjectConfig_QuestionCreateRecordsHistory(t *testing.T) {
	s := createTestStore(t)
	published := setClock(t, s, "2024-03-01T08:00:00Z")

	if _, _, err := s.ImportProjectConfig(context.Background(), buildImport()); err != nil {
		t.Fatalf("ImportProjectConfig() failed: %v", err)
	}

	entries, err := s.HistoryForEntity(context.Background(), survey.EntityQuestion, "q-species", 0)
	if err != nil {
		t.Fatalf("HistoryForEntity() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}

	e := entries[0]
	if e.ChangeType != survey.ChangeCreate {
		t.Errorf("ChangeType = %q, want %q", e.ChangeType, survey.ChangeCreate)
	}
	if e.ChangedBy == nil || *e.ChangedBy != "tbaker" {
		t.Errorf("ChangedBy = %v, want tbaker", e.ChangedBy)
	}
	if !e.ChangedAt.Equal(published) {
		t.Errorf("ChangedAt = %v, want %v", e.ChangedAt, published)
	}
	if len(e.FieldsChanged) != 0 {
		t.Errorf("FieldsChanged = %v, want empty on create", e.FieldsChanged)
	}
	if !strings.Contains(e.Snapshot, `"prompt":"Species?"`) {
		t.Errorf("Snapshot = %s, want prompt included", e.Snapshot)
	}
	if err := VerifyChecksum(e); err != nil {
		t.Errorf("VerifyChecksum() failed: %v", err)
	}

	// Only questions are audited during a publish.
	if n := countTable(t, s, "history_entries"); n != 2 {
		t.Errorf("history_entries count = %d, want 2 (one per question)", n)
	}
}

func TestImportProjectConfig_UnchangedQuestionNoHistory(t *testing.T) {
	s := createTestStore(t)

	if _, _, err := s.ImportProjectConfig(context.Background(), buildImport()); err != nil {
		t.Fatalf("first ImportProjectConfig() failed: %v", err)
	}
	if _, _, err := s.ImportProjectConfig(context.Background(), buildImport()); err != nil {
		t.Fatalf("second ImportProjectConfig() failed: %v", err)
	}

	entries, err := s.HistoryForEntity(context.Background(), survey.EntityQuestion, "q-species", 0)
	if err != nil {
		t.Fatalf("HistoryForEntity() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1 (unchanged re-publish)", len(entries))
	}
}

func TestImportProjectConfig_ChangedQuestionRecordsUpdate(t *testing.T) {
	s := createTestStore(t)

	if _, _, err := s.ImportProjectConfig(context.Background(), buildImport()); err != nil {
		t.Fatalf("first ImportProjectConfig() failed: %v", err)
	}

	imp := buildImport()
	prompt := "Which species?"
	imp.Questions[0].Prompt = &prompt

	if _, _, err := s.ImportProjectConfig(context.Background(), imp); err != nil {
		t.Fatalf("second ImportProjectConfig() failed: %v", err)
	}

	entries, err := s.HistoryForEntity(context.Background(), survey.EntityQuestion, "q-species", 0)
	if err != nil {
		t.Fatalf("HistoryForEntity() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	// Newest first
	if entries[0].ChangeType != survey.ChangeUpdate {
		t.Errorf("ChangeType = %q, want %q", entries[0].ChangeType, survey.ChangeUpdate)
	}
	if len(entries[0].FieldsChanged) != 1 || entries[0].FieldsChanged[0] != "prompt" {
		t.Errorf("FieldsChanged = %v, want [prompt]", entries[0].FieldsChanged)
	}
}

func TestImportProjectConfig_KeepsWorkflowDateOnRepublish(t *testing.T) {
	s := createTestStore(t)
	first := setClock(t, s, "2024-03-01T08:00:00Z")

	if _, _, err := s.ImportProjectConfig(context.Background(), buildImport()); err != nil {
		t.Fatalf("first ImportProjectConfig() failed: %v", err)
	}

	w, err := s.GetTemplateWorkflow(context.Background(), "tplw-frog")
	if err != nil {
		t.Fatalf("GetTemplateWorkflow() failed: %v", err)
	}
	if w.DateAdded == nil || !w.DateAdded.Equal(first) {
		t.Fatalf("DateAdded = %v, want %v (clock at first publish)", w.DateAdded, first)
	}

	setClock(t, s, "2024-03-15T08:00:00Z")
	if _, _, err := s.ImportProjectConfig(context.Background(), buildImport()); err != nil {
		t.Fatalf("second ImportProjectConfig() failed: %v", err)
	}

	w, err = s.GetTemplateWorkflow(context.Background(), "tplw-frog")
	if err != nil {
		t.Fatalf("GetTemplateWorkflow() after re-publish failed: %v", err)
	}
	if w.DateAdded == nil || !w.DateAdded.Equal(first) {
		t.Errorf("DateAdded = %v, want %v (kept on re-publish)", w.DateAdded, first)
	}
}

func TestImportProjectConfig_WorkflowDateFromFileWins(t *testing.T) {
	s := createTestStore(t)

	imp := buildImport()
	added := mustParseTime("2024-02-20T10:00:00Z")
	imp.TemplateWorkflows[0].DateAdded = &added

	if _, _, err := s.ImportProjectConfig(context.Background(), imp); err != nil {
		t.Fatalf("ImportProjectConfig() failed: %v", err)
	}

	w, err := s.GetTemplateWorkflow(context.Background(), "tplw-frog")
	if err != nil {
		t.Fatalf("GetTemplateWorkflow() failed: %v", err)
	}
	if w.DateAdded == nil || !w.DateAdded.Equal(added) {
		t.Errorf("DateAdded = %v, want %v", w.DateAdded, added)
	}
}
