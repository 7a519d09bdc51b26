package queryfilter

import (
	"strconv"
	"time"
)

// Filter is the common surface of per-entity filter sets.
// Apply adds the set fields as conditions; Values re-encodes the set fields
// in query-parameter form for echoing back to clients.
type Filter interface {
	Apply(b *WhereBuilder)
	Active() bool
	Values() map[string]string
}

// TransectFilter filters the completed transect list.
// Columns are qualified for the store's list query (transects t).
type TransectFilter struct {
	StartDate  *time.Time // start_time >=
	EndDate    *time.Time // end_time <=
	State      string
	TemplateID string
}

func (f TransectFilter) Apply(b *WhereBuilder) {
	if f.StartDate != nil {
		b.AtLeast("t.start_time", formatTime(*f.StartDate))
	}
	if f.EndDate != nil {
		b.AtMost("t.end_time", formatTime(*f.EndDate))
	}
	if f.State != "" {
		b.Equals("t.state", f.State)
	}
	if f.TemplateID != "" {
		b.Equals("t.template_id", f.TemplateID)
	}
}

func (f TransectFilter) Active() bool {
	return f.StartDate != nil || f.EndDate != nil || f.State != "" || f.TemplateID != ""
}

func (f TransectFilter) Values() map[string]string {
	v := map[string]string{}
	putTime(v, "start_date", f.StartDate)
	putTime(v, "end_date", f.EndDate)
	putString(v, "state", f.State)
	putString(v, "template", f.TemplateID)
	return v
}

// OccurrenceFilter filters the occurrence list (occurrences o).
type OccurrenceFilter struct {
	StartDate        *time.Time // recording_start_time >=
	EndDate          *time.Time // recording_end_time <=
	State            string
	TransectUID      *int64
	OccurrenceNumber *int64
}

func (f OccurrenceFilter) Apply(b *WhereBuilder) {
	if f.StartDate != nil {
		b.AtLeast("o.recording_start_time", formatTime(*f.StartDate))
	}
	if f.EndDate != nil {
		b.AtMost("o.recording_end_time", formatTime(*f.EndDate))
	}
	if f.State != "" {
		b.Equals("o.state", f.State)
	}
	if f.TransectUID != nil {
		b.Equals("o.transect_uid", *f.TransectUID)
	}
	if f.OccurrenceNumber != nil {
		b.Equals("o.occurrence_number", *f.OccurrenceNumber)
	}
}

func (f OccurrenceFilter) Active() bool {
	return f.StartDate != nil || f.EndDate != nil || f.State != "" ||
		f.TransectUID != nil || f.OccurrenceNumber != nil
}

func (f OccurrenceFilter) Values() map[string]string {
	v := map[string]string{}
	putTime(v, "start_date", f.StartDate)
	putTime(v, "end_date", f.EndDate)
	putString(v, "state", f.State)
	putInt64(v, "transect", f.TransectUID)
	putInt64(v, "occurrence_number", f.OccurrenceNumber)
	return v
}

// WorkflowFilter filters the workflow list (workflows w).
type WorkflowFilter struct {
	OccurrenceID       *int64
	TemplateWorkflowID string
	CompletedBy        string // contains, case-insensitive
	InstanceNumber     *int64
}

func (f WorkflowFilter) Apply(b *WhereBuilder) {
	if f.OccurrenceID != nil {
		b.Equals("w.occurrence_id", *f.OccurrenceID)
	}
	if f.TemplateWorkflowID != "" {
		b.Equals("w.template_workflow_id", f.TemplateWorkflowID)
	}
	if f.CompletedBy != "" {
		b.Contains("w.completed_by", f.CompletedBy)
	}
	if f.InstanceNumber != nil {
		b.Equals("w.instance_number", *f.InstanceNumber)
	}
}

func (f WorkflowFilter) Active() bool {
	return f.OccurrenceID != nil || f.TemplateWorkflowID != "" ||
		f.CompletedBy != "" || f.InstanceNumber != nil
}

func (f WorkflowFilter) Values() map[string]string {
	v := map[string]string{}
	putInt64(v, "occurrence", f.OccurrenceID)
	putString(v, "template_workflow", f.TemplateWorkflowID)
	putString(v, "completed_by", f.CompletedBy)
	putInt64(v, "instance_number", f.InstanceNumber)
	return v
}

// TemplateTransectFilter filters the template transect list (template_transects tt).
type TemplateTransectFilter struct {
	ScheduledAfter  *time.Time
	ScheduledBefore *time.Time
	Name            string // contains
}

func (f TemplateTransectFilter) Apply(b *WhereBuilder) {
	if f.ScheduledAfter != nil {
		b.AtLeast("tt.scheduled_time", formatTime(*f.ScheduledAfter))
	}
	if f.ScheduledBefore != nil {
		b.AtMost("tt.scheduled_time", formatTime(*f.ScheduledBefore))
	}
	if f.Name != "" {
		b.Contains("tt.name", f.Name)
	}
}

func (f TemplateTransectFilter) Active() bool {
	return f.ScheduledAfter != nil || f.ScheduledBefore != nil || f.Name != ""
}

func (f TemplateTransectFilter) Values() map[string]string {
	v := map[string]string{}
	putTime(v, "scheduled_after", f.ScheduledAfter)
	putTime(v, "scheduled_before", f.ScheduledBefore)
	putString(v, "name", f.Name)
	return v
}

// TemplateWorkflowFilter filters the template workflow list (template_workflows tw).
type TemplateWorkflowFilter struct {
	Name        string // contains
	AddedAfter  *time.Time
	AddedBefore *time.Time
}

func (f TemplateWorkflowFilter) Apply(b *WhereBuilder) {
	if f.Name != "" {
		b.Contains("tw.name", f.Name)
	}
	if f.AddedAfter != nil {
		b.AtLeast("tw.date_added", formatTime(*f.AddedAfter))
	}
	if f.AddedBefore != nil {
		b.AtMost("tw.date_added", formatTime(*f.AddedBefore))
	}
}

func (f TemplateWorkflowFilter) Active() bool {
	return f.Name != "" || f.AddedAfter != nil || f.AddedBefore != nil
}

func (f TemplateWorkflowFilter) Values() map[string]string {
	v := map[string]string{}
	putString(v, "name", f.Name)
	putTime(v, "added_after", f.AddedAfter)
	putTime(v, "added_before", f.AddedBefore)
	return v
}

// QuestionFilter filters the question list (questions q).
type QuestionFilter struct {
	WorkflowID   string
	DataTypeID   string
	Prompt       string // contains
	DataTypeName string // contains
}

func (f QuestionFilter) Apply(b *WhereBuilder) {
	if f.WorkflowID != "" {
		b.Equals("q.workflow_id", f.WorkflowID)
	}
	if f.DataTypeID != "" {
		b.Equals("q.data_type_id", f.DataTypeID)
	}
	if f.Prompt != "" {
		b.Contains("q.prompt", f.Prompt)
	}
	if f.DataTypeName != "" {
		b.Contains("q.data_type_name", f.DataTypeName)
	}
}

func (f QuestionFilter) Active() bool {
	return f.WorkflowID != "" || f.DataTypeID != "" || f.Prompt != "" || f.DataTypeName != ""
}

func (f QuestionFilter) Values() map[string]string {
	v := map[string]string{}
	putString(v, "workflow", f.WorkflowID)
	putString(v, "data_type", f.DataTypeID)
	putString(v, "prompt", f.Prompt)
	putString(v, "data_type_name", f.DataTypeName)
	return v
}

// DataTypeFilter filters the data type list (data_types dt).
type DataTypeFilter struct {
	Name           string // contains
	IsUserDataType *bool
}

func (f DataTypeFilter) Apply(b *WhereBuilder) {
	if f.Name != "" {
		b.Contains("dt.name", f.Name)
	}
	if f.IsUserDataType != nil {
		b.Equals("dt.is_user_data_type", boolToInt(*f.IsUserDataType))
	}
}

func (f DataTypeFilter) Active() bool {
	return f.Name != "" || f.IsUserDataType != nil
}

func (f DataTypeFilter) Values() map[string]string {
	v := map[string]string{}
	putString(v, "name", f.Name)
	putBool(v, "is_user_data_type", f.IsUserDataType)
	return v
}

// DataTypeOptionFilter filters the option list (data_type_options dto).
type DataTypeOptionFilter struct {
	DataTypeID string
	Code       string // contains
	Text       string // contains
}

func (f DataTypeOptionFilter) Apply(b *WhereBuilder) {
	if f.DataTypeID != "" {
		b.Equals("dto.data_type_id", f.DataTypeID)
	}
	if f.Code != "" {
		b.Contains("dto.code", f.Code)
	}
	if f.Text != "" {
		b.Contains("dto.text", f.Text)
	}
}

func (f DataTypeOptionFilter) Active() bool {
	return f.DataTypeID != "" || f.Code != "" || f.Text != ""
}

func (f DataTypeOptionFilter) Values() map[string]string {
	v := map[string]string{}
	putString(v, "data_type", f.DataTypeID)
	putString(v, "code", f.Code)
	putString(v, "text", f.Text)
	return v
}

// ProjectConfigFilter filters the project config list (project_configs pc).
type ProjectConfigFilter struct {
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
	Project         string // contains
}

func (f ProjectConfigFilter) Apply(b *WhereBuilder) {
	if f.PublishedAfter != nil {
		b.AtLeast("pc.publish_date", formatTime(*f.PublishedAfter))
	}
	if f.PublishedBefore != nil {
		b.AtMost("pc.publish_date", formatTime(*f.PublishedBefore))
	}
	if f.Project != "" {
		b.Contains("pc.project", f.Project)
	}
}

func (f ProjectConfigFilter) Active() bool {
	return f.PublishedAfter != nil || f.PublishedBefore != nil || f.Project != ""
}

func (f ProjectConfigFilter) Values() map[string]string {
	v := map[string]string{}
	putTime(v, "published_after", f.PublishedAfter)
	putTime(v, "published_before", f.PublishedBefore)
	putString(v, "project", f.Project)
	return v
}

// DataLogFilter filters the data log file list (data_log_files dlf).
type DataLogFilter struct {
	UploadedAfter  *time.Time
	UploadedBefore *time.Time
	UploadedBy     string // contains
}

func (f DataLogFilter) Apply(b *WhereBuilder) {
	if f.UploadedAfter != nil {
		b.AtLeast("dlf.upload_date", formatTime(*f.UploadedAfter))
	}
	if f.UploadedBefore != nil {
		b.AtMost("dlf.upload_date", formatTime(*f.UploadedBefore))
	}
	if f.UploadedBy != "" {
		b.Contains("dlf.uploaded_by", f.UploadedBy)
	}
}

func (f DataLogFilter) Active() bool {
	return f.UploadedAfter != nil || f.UploadedBefore != nil || f.UploadedBy != ""
}

func (f DataLogFilter) Values() map[string]string {
	v := map[string]string{}
	putTime(v, "uploaded_after", f.UploadedAfter)
	putTime(v, "uploaded_before", f.UploadedBefore)
	putString(v, "uploaded_by", f.UploadedBy)
	return v
}

// TransectDataLogFilter filters the log/transect link list (transect_data_logs tdl).
type TransectDataLogFilter struct {
	DataLogFileID *int64
	TransectUID   *int64
	IsPrimary     *bool
	Username      string // contains
}

func (f TransectDataLogFilter) Apply(b *WhereBuilder) {
	if f.DataLogFileID != nil {
		b.Equals("tdl.data_log_file_id", *f.DataLogFileID)
	}
	if f.TransectUID != nil {
		b.Equals("tdl.transect_uid", *f.TransectUID)
	}
	if f.IsPrimary != nil {
		b.Equals("tdl.is_primary", boolToInt(*f.IsPrimary))
	}
	if f.Username != "" {
		b.Contains("tdl.username", f.Username)
	}
}

func (f TransectDataLogFilter) Active() bool {
	return f.DataLogFileID != nil || f.TransectUID != nil || f.IsPrimary != nil || f.Username != ""
}

func (f TransectDataLogFilter) Values() map[string]string {
	v := map[string]string{}
	putInt64(v, "data_log_file", f.DataLogFileID)
	putInt64(v, "transect", f.TransectUID)
	putBool(v, "is_primary", f.IsPrimary)
	putString(v, "username", f.Username)
	return v
}

// HistoryFilter filters the audit history list (history_entries h).
type HistoryFilter struct {
	Entity     string
	EntityKey  string
	ChangeType string
	ChangedBy  string // contains
	Since      *time.Time
	Until      *time.Time
}

func (f HistoryFilter) Apply(b *WhereBuilder) {
	if f.Entity != "" {
		b.Equals("h.entity", f.Entity)
	}
	if f.EntityKey != "" {
		b.Equals("h.entity_key", f.EntityKey)
	}
	if f.ChangeType != "" {
		b.Equals("h.change_type", f.ChangeType)
	}
	if f.ChangedBy != "" {
		b.Contains("h.changed_by", f.ChangedBy)
	}
	if f.Since != nil {
		b.AtLeast("h.changed_at", formatTime(*f.Since))
	}
	if f.Until != nil {
		b.AtMost("h.changed_at", formatTime(*f.Until))
	}
}

func (f HistoryFilter) Active() bool {
	return f.Entity != "" || f.EntityKey != "" || f.ChangeType != "" ||
		f.ChangedBy != "" || f.Since != nil || f.Until != nil
}

func (f HistoryFilter) Values() map[string]string {
	v := map[string]string{}
	putString(v, "entity", f.Entity)
	putString(v, "key", f.EntityKey)
	putString(v, "change_type", f.ChangeType)
	putString(v, "changed_by", f.ChangedBy)
	putTime(v, "since", f.Since)
	putTime(v, "until", f.Until)
	return v
}

// formatTime renders a bound timestamp the way the store writes them,
// so string comparison in SQLite matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func putString(v map[string]string, key, val string) {
	if val != "" {
		v[key] = val
	}
}

func putInt64(v map[string]string, key string, val *int64) {
	if val != nil {
		v[key] = strconv.FormatInt(*val, 10)
	}
}

func putBool(v map[string]string, key string, val *bool) {
	if val != nil {
		v[key] = strconv.FormatBool(*val)
	}
}

func putTime(v map[string]string, key string, val *time.Time) {
	if val == nil {
		return
	}
	t := val.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		v[key] = t.Format("2006-01-02")
		return
	}
	v[key] = t.Format(time.RFC3339)
}
