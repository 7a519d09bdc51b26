package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/calderbay/fieldwork/internal/queryfilter"
)

// Template transect tests

func TestListTemplateTransects_RecentScheduleFirst(t *testing.T) {
	s := createTestStore(t)
	seedTemplateTransect(t, s, "tpl-a", "Creek crossing plan", "2024-04-01T08:00:00Z")
	seedTemplateTransect(t, s, "tpl-b", "Ridge sweep plan", "2024-04-03T08:00:00Z")
	seedTemplateTransect(t, s, "tpl-c", "Gully walk plan", "2024-04-02T08:00:00Z")

	templates, _, err := s.ListTemplateTransects(context.Background(), queryfilter.TemplateTransectFilter{}, queryfilter.DefaultPage())
	if err != nil {
		t.Fatalf("ListTemplateTransects() failed: %v", err)
	}

	if len(templates) != 3 {
		t.Fatalf("len(templates) = %d, want 3", len(templates))
	}
	want := []string{"tpl-b", "tpl-c", "tpl-a"}
	for i, tpl := range templates {
		if tpl.ID != want[i] {
			t.Errorf("templates[%d].ID = %q, want %q (scheduled_time DESC)", i, tpl.ID, want[i])
		}
	}
}

func TestListTemplateTransects_FilterByName(t *testing.T) {
	s := createTestStore(t)
	seedTemplateTransect(t, s, "tpl-a", "Creek crossing plan", "2024-04-01T08:00:00Z")
	seedTemplateTransect(t, s, "tpl-b", "Ridge sweep plan", "2024-04-02T08:00:00Z")

	templates, _, err := s.ListTemplateTransects(context.Background(),
		queryfilter.TemplateTransectFilter{Name: "creek"}, queryfilter.DefaultPage())
	if err != nil {
		t.Fatalf("ListTemplateTransects() failed: %v", err)
	}

	if len(templates) != 1 {
		t.Fatalf("len(templates) = %d, want 1", len(templates))
	}
	if templates[0].ID != "tpl-a" {
		t.Errorf("ID = %q, want tpl-a", templates[0].ID)
	}
}

func TestGetTemplateTransect_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetTemplateTransect(context.Background(), "tpl-missing")
	if err != sql.ErrNoRows {
		t.Errorf("GetTemplateTransect() error = %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateTemplateTransect_Persists(t *testing.T) {
	s := createTestStore(t)
	seedTemplateTransect(t, s, "tpl-a", "Creek crossing plan", "2024-04-01T08:00:00Z")

	tpl, err := s.GetTemplateTransect(context.Background(), "tpl-a")
	if err != nil {
		t.Fatalf("GetTemplateTransect() failed: %v", err)
	}
	tpl.Name = "Creek crossing plan v2"
	open := true
	tpl.OpenEnded = &open
	note := "Extended past the weir"
	tpl.Note = &note

	if err := s.UpdateTemplateTransect(context.Background(), tpl); err != nil {
		t.Fatalf("UpdateTemplateTransect() failed: %v", err)
	}

	got, err := s.GetTemplateTransect(context.Background(), "tpl-a")
	if err != nil {
		t.Fatalf("GetTemplateTransect() after update failed: %v", err)
	}
	if got.Name != "Creek crossing plan v2" {
		t.Errorf("Name = %q, want Creek crossing plan v2", got.Name)
	}
	if got.OpenEnded == nil || !*got.OpenEnded {
		t.Errorf("OpenEnded = %v, want true", got.OpenEnded)
	}
	if got.Note == nil || *got.Note != "Extended past the weir" {
		t.Errorf("Note = %v, want Extended past the weir", got.Note)
	}

	// Reference edits are not audited
	if n := countTable(t, s, "history_entries"); n != 0 {
		t.Errorf("history_entries count = %d, want 0", n)
	}
}

func TestUpdateTemplateTransect_NotFound(t *testing.T) {
	s := createTestStore(t)
	seedTemplateTransect(t, s, "tpl-a", "Creek crossing plan", "2024-04-01T08:00:00Z")

	tpl, err := s.GetTemplateTransect(context.Background(), "tpl-a")
	if err != nil {
		t.Fatalf("GetTemplateTransect() failed: %v", err)
	}
	tpl.ID = "tpl-missing"

	err = s.UpdateTemplateTransect(context.Background(), tpl)
	if err != sql.ErrNoRows {
		t.Errorf("UpdateTemplateTransect() error = %v, want sql.ErrNoRows", err)
	}
}

// Template workflow tests

func TestListTemplateWorkflows_NameOrder(t *testing.T) {
	s := createTestStore(t)
	seedTemplateWorkflow(t, s, "tplw-1", "Frog ID")
	seedTemplateWorkflow(t, s, "tplw-2", "Call survey")
	seedTemplateWorkflow(t, s, "tplw-3", "Habitat check")

	workflows, _, err := s.ListTemplateWorkflows(context.Background(), queryfilter.TemplateWorkflowFilter{}, queryfilter.DefaultPage())
	if err != nil {
		t.Fatalf("ListTemplateWorkflows() failed: %v", err)
	}

	if len(workflows) != 3 {
		t.Fatalf("len(workflows) = %d, want 3", len(workflows))
	}
	want := []string{"Call survey", "Frog ID", "Habitat check"}
	for i, w := range workflows {
		if w.Name != want[i] {
			t.Errorf("workflows[%d].Name = %q, want %q (name ASC)", i, w.Name, want[i])
		}
	}
}

func TestUpdateTemplateWorkflow_Persists(t *testing.T) {
	s := createTestStore(t)
	seedTemplateWorkflow(t, s, "tplw-1", "Frog ID")

	w, err := s.GetTemplateWorkflow(context.Background(), "tplw-1")
	if err != nil {
		t.Fatalf("GetTemplateWorkflow() failed: %v", err)
	}
	if w.DateAdded != nil {
		t.Fatalf("DateAdded = %v, want nil before update", w.DateAdded)
	}
	w.Name = "Frog ID v2"
	added := testTime(t, "2024-04-01T08:00:00Z")
	w.DateAdded = &added
	by := "kwalsh"
	w.AddedBy = &by

	if err := s.UpdateTemplateWorkflow(context.Background(), w); err != nil {
		t.Fatalf("UpdateTemplateWorkflow() failed: %v", err)
	}

	got, err := s.GetTemplateWorkflow(context.Background(), "tplw-1")
	if err != nil {
		t.Fatalf("GetTemplateWorkflow() after update failed: %v", err)
	}
	if got.Name != "Frog ID v2" {
		t.Errorf("Name = %q, want Frog ID v2", got.Name)
	}
	if got.DateAdded == nil || !got.DateAdded.Equal(added) {
		t.Errorf("DateAdded = %v, want %v", got.DateAdded, added)
	}
	if got.AddedBy == nil || *got.AddedBy != "kwalsh" {
		t.Errorf("AddedBy = %v, want kwalsh", got.AddedBy)
	}
}

// Question tests

func TestListQuestions_PromptOrder(t *testing.T) {
	s := createTestStore(t)
	seedDataType(t, s, "dt-1", "Species list")
	seedQuestion(t, s, "q-1", "Species?", "dt-1", "Species list")
	seedQuestion(t, s, "q-2", "Count?", "dt-1", "Species list")
	seedQuestion(t, s, "q-3", "Habitat?", "dt-1", "Species list")

	questions, _, err := s.ListQuestions(context.Background(), queryfilter.QuestionFilter{}, queryfilter.DefaultPage())
	if err != nil {
		t.Fatalf("ListQuestions() failed: %v", err)
	}

	if len(questions) != 3 {
		t.Fatalf("len(questions) = %d, want 3", len(questions))
	}
	want := []string{"Count?", "Habitat?", "Species?"}
	for i, q := range questions {
		if q.Prompt == nil || *q.Prompt != want[i] {
			t.Errorf("questions[%d].Prompt = %v, want %q (prompt ASC)", i, q.Prompt, want[i])
		}
	}
}

func TestListQuestions_AnnotatesWorkflowName(t *testing.T) {
	s := createTestStore(t)
	seedDataType(t, s, "dt-1", "Species list")
	seedTemplateWorkflow(t, s, "tplw-1", "Frog ID")
	seedQuestion(t, s, "q-1", "Species?", "dt-1", "Species list")
	mustExec(t, s, "UPDATE questions SET workflow_id = 'tplw-1' WHERE id = 'q-1'")

	questions, _, err := s.ListQuestions(context.Background(),
		queryfilter.QuestionFilter{WorkflowID: "tplw-1"}, queryfilter.DefaultPage())
	if err != nil {
		t.Fatalf("ListQuestions() failed: %v", err)
	}

	if len(questions) != 1 {
		t.Fatalf("len(questions) = %d, want 1", len(questions))
	}
	if questions[0].WorkflowName == nil || *questions[0].WorkflowName != "Frog ID" {
		t.Errorf("WorkflowName = %v, want Frog ID", questions[0].WorkflowName)
	}
}

func TestGetQuestion_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetQuestion(context.Background(), "q-missing")
	if err != sql.ErrNoRows {
		t.Errorf("GetQuestion() error = %v, want sql.ErrNoRows", err)
	}
}

// Data type tests

func TestListDataTypes_CountsOptionsAndQuestions(t *testing.T) {
	s := createTestStore(t)
	seedDataType(t, s, "dt-1", "Species list")
	seedDataType(t, s, "dt-2", "Count")
	mustExec(t, s, `
		INSERT INTO data_type_options (data_type_id, code, text)
		VALUES ('dt-1', 'LC', 'Litoria caerulea')`)
	mustExec(t, s, `
		INSERT INTO data_type_options (data_type_id, code, text)
		VALUES ('dt-1', 'LF', 'Litoria fallax')`)
	seedQuestion(t, s, "q-1", "Species?", "dt-1", "Species list")

	dataTypes, _, err := s.ListDataTypes(context.Background(), queryfilter.DataTypeFilter{}, queryfilter.DefaultPage())
	if err != nil {
		t.Fatalf("ListDataTypes() failed: %v", err)
	}

	if len(dataTypes) != 2 {
		t.Fatalf("len(dataTypes) = %d, want 2", len(dataTypes))
	}
	// Name order puts Count before Species list
	if dataTypes[0].Name != "Count" || dataTypes[1].Name != "Species list" {
		t.Errorf("names = [%q, %q], want [Count, Species list]", dataTypes[0].Name, dataTypes[1].Name)
	}
	if dataTypes[1].OptionCount != 2 {
		t.Errorf("OptionCount = %d, want 2", dataTypes[1].OptionCount)
	}
	if dataTypes[1].QuestionCount != 1 {
		t.Errorf("QuestionCount = %d, want 1", dataTypes[1].QuestionCount)
	}
	if dataTypes[0].OptionCount != 0 || dataTypes[0].QuestionCount != 0 {
		t.Errorf("Count counts = %d/%d, want 0/0", dataTypes[0].OptionCount, dataTypes[0].QuestionCount)
	}
}

func TestUpdateDataType_Persists(t *testing.T) {
	s := createTestStore(t)
	seedDataType(t, s, "dt-1", "Species list")

	dt, err := s.GetDataType(context.Background(), "dt-1")
	if err != nil {
		t.Fatalf("GetDataType() failed: %v", err)
	}
	dt.Name = "Frog species list"
	dt.IsUserDataType = true
	csharp := "System.String"
	dt.CSharpType = &csharp

	if err := s.UpdateDataType(context.Background(), dt); err != nil {
		t.Fatalf("UpdateDataType() failed: %v", err)
	}

	got, err := s.GetDataType(context.Background(), "dt-1")
	if err != nil {
		t.Fatalf("GetDataType() after update failed: %v", err)
	}
	if got.Name != "Frog species list" {
		t.Errorf("Name = %q, want Frog species list", got.Name)
	}
	if !got.IsUserDataType {
		t.Error("IsUserDataType = false, want true")
	}
	if got.CSharpType == nil || *got.CSharpType != "System.String" {
		t.Errorf("CSharpType = %v, want System.String", got.CSharpType)
	}
}

// Data type option tests

func TestListDataTypeOptions_OrderedByTypeThenCode(t *testing.T) {
	s := createTestStore(t)
	seedDataType(t, s, "dt-1", "Species list")
	seedDataType(t, s, "dt-2", "Condition")
	mustExec(t, s, `
		INSERT INTO data_type_options (data_type_id, code, text)
		VALUES ('dt-1', 'LF', 'Litoria fallax')`)
	mustExec(t, s, `
		INSERT INTO data_type_options (data_type_id, code)
		VALUES ('dt-2', 'OK')`)
	mustExec(t, s, `
		INSERT INTO data_type_options (data_type_id, code, text)
		VALUES ('dt-1', 'LC', 'Litoria caerulea')`)

	options, _, err := s.ListDataTypeOptions(context.Background(), queryfilter.DataTypeOptionFilter{}, queryfilter.DefaultPage())
	if err != nil {
		t.Fatalf("ListDataTypeOptions() failed: %v", err)
	}

	if len(options) != 3 {
		t.Fatalf("len(options) = %d, want 3", len(options))
	}
	// Condition before Species list, then code order within the type
	wantCodes := []string{"OK", "LC", "LF"}
	for i, o := range options {
		if o.Code != wantCodes[i] {
			t.Errorf("options[%d].Code = %q, want %q", i, o.Code, wantCodes[i])
		}
	}
	if options[0].DataTypeName != "Condition" {
		t.Errorf("DataTypeName = %q, want Condition", options[0].DataTypeName)
	}
	if options[0].Text != nil {
		t.Errorf("Text = %v, want nil", options[0].Text)
	}
}

func TestDataTypeOptions_ForOneType(t *testing.T) {
	s := createTestStore(t)
	seedDataType(t, s, "dt-1", "Species list")
	seedDataType(t, s, "dt-2", "Condition")
	mustExec(t, s, `
		INSERT INTO data_type_options (data_type_id, code, text)
		VALUES ('dt-1', 'LF', 'Litoria fallax')`)
	mustExec(t, s, `
		INSERT INTO data_type_options (data_type_id, code, text)
		VALUES ('dt-1', 'LC', 'Litoria caerulea')`)
	mustExec(t, s, `
		INSERT INTO data_type_options (data_type_id, code)
		VALUES ('dt-2', 'OK')`)

	options, err := s.DataTypeOptions(context.Background(), "dt-1")
	if err != nil {
		t.Fatalf("DataTypeOptions() failed: %v", err)
	}

	if len(options) != 2 {
		t.Fatalf("len(options) = %d, want 2", len(options))
	}
	if options[0].Code != "LC" || options[1].Code != "LF" {
		t.Errorf("codes = [%q, %q], want [LC, LF]", options[0].Code, options[1].Code)
	}
}

func TestUpdateDataTypeOption_Persists(t *testing.T) {
	s := createTestStore(t)
	seedDataType(t, s, "dt-1", "Species list")
	mustExec(t, s, `
		INSERT INTO data_type_options (id, data_type_id, code, text)
		VALUES (1, 'dt-1', 'LC', 'Litoria caerulea')`)

	o, err := s.GetDataTypeOption(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetDataTypeOption() failed: %v", err)
	}
	o.Code = "LCA"
	text := "Litoria caerulea (green tree frog)"
	o.Text = &text

	if err := s.UpdateDataTypeOption(context.Background(), o); err != nil {
		t.Fatalf("UpdateDataTypeOption() failed: %v", err)
	}

	got, err := s.GetDataTypeOption(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetDataTypeOption() after update failed: %v", err)
	}
	if got.Code != "LCA" {
		t.Errorf("Code = %q, want LCA", got.Code)
	}
	if got.Text == nil || *got.Text != "Litoria caerulea (green tree frog)" {
		t.Errorf("Text = %v, want the expanded label", got.Text)
	}
}

func TestUpdateDataTypeOption_NotFound(t *testing.T) {
	s := createTestStore(t)
	seedDataType(t, s, "dt-1", "Species list")
	mustExec(t, s, `
		INSERT INTO data_type_options (id, data_type_id, code)
		VALUES (1, 'dt-1', 'LC')`)

	o, err := s.GetDataTypeOption(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetDataTypeOption() failed: %v", err)
	}
	o.ID = 999

	err = s.UpdateDataTypeOption(context.Background(), o)
	if err != sql.ErrNoRows {
		t.Errorf("UpdateDataTypeOption() error = %v, want sql.ErrNoRows", err)
	}
}

// Project config tests

func TestListProjectConfigs_NewestPublishFirst(t *testing.T) {
	s := createTestStore(t)
	seedProjectConfig(t, s, 1, "Frogs of the Lockyer", "2024-03-01T08:00:00Z")
	seedProjectConfig(t, s, 2, "Frogs of the Lockyer", "2024-03-05T08:00:00Z")
	seedProjectConfig(t, s, 3, "Frogs of the Lockyer", "2024-03-05T08:00:00Z")

	configs, _, err := s.ListProjectConfigs(context.Background(), queryfilter.ProjectConfigFilter{}, queryfilter.DefaultPage())
	if err != nil {
		t.Fatalf("ListProjectConfigs() failed: %v", err)
	}

	if len(configs) != 3 {
		t.Fatalf("len(configs) = %d, want 3", len(configs))
	}
	// Same publish date resolves to the later row
	want := []int64{3, 2, 1}
	for i, c := range configs {
		if c.ID != want[i] {
			t.Errorf("configs[%d].ID = %d, want %d (publish_date DESC, id DESC)", i, c.ID, want[i])
		}
	}
}

func TestUpdateProjectConfig_Persists(t *testing.T) {
	s := createTestStore(t)
	seedProjectConfig(t, s, 1, "Frogs of the Lockyer", "2024-03-01T08:00:00Z")

	c, err := s.GetProjectConfig(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProjectConfig() failed: %v", err)
	}
	c.Project = "Frogs of the Lockyer Valley"
	image := "lockyer.png"
	c.Image = &image

	if err := s.UpdateProjectConfig(context.Background(), c); err != nil {
		t.Fatalf("UpdateProjectConfig() failed: %v", err)
	}

	got, err := s.GetProjectConfig(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProjectConfig() after update failed: %v", err)
	}
	if got.Project != "Frogs of the Lockyer Valley" {
		t.Errorf("Project = %q, want Frogs of the Lockyer Valley", got.Project)
	}
	if got.Image == nil || *got.Image != "lockyer.png" {
		t.Errorf("Image = %v, want lockyer.png", got.Image)
	}
}

func seedProjectConfig(t *testing.T, s *Store, id int64, project, published string) {
	t.Helper()
	mustExec(t, s, `
		INSERT INTO project_configs
			(id, publish_date, project, config_folder, config_file, transects_file)
		VALUES (?, ?, ?, 'configs/lockyer', 'project.cue', 'transects.cue')`,
		id, published, project)
}
