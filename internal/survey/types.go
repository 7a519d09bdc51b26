package survey

import "time"

// Phase values for pre/post survey question rows.
const (
	PhasePre  = "pre"
	PhasePost = "post"
)

// Entity names used in audit history records and API routes.
const (
	EntityTransect   = "transect"
	EntityOccurrence = "occurrence"
	EntityWorkflow   = "workflow"
	EntityQuestion   = "question"
)

// AuditedEntities lists the entity names that record history on mutation.
var AuditedEntities = []string{EntityTransect, EntityOccurrence, EntityWorkflow, EntityQuestion}

// Transect is a completed survey line uploaded from a collector device.
// The UID is assigned by the device, not by this service.
type Transect struct {
	UID              int64      `json:"uid"`
	Name             string     `json:"name"`
	StartTime        time.Time  `json:"start_time"`
	TurnTime         *time.Time `json:"turn_time,omitempty"`
	EndTime          time.Time  `json:"end_time"`
	LatFrom          float64    `json:"lat_from"`
	LongFrom         float64    `json:"long_from"`
	LatTurn          *float64   `json:"lat_turn,omitempty"`
	LongTurn         *float64   `json:"long_turn,omitempty"`
	LatTo            float64    `json:"lat_to"`
	LongTo           float64    `json:"long_to"`
	DistanceKM       float64    `json:"distance_km"`
	AngleDegrees     int64      `json:"angle_degrees"`
	State            string     `json:"state"`
	TemplateID       *string    `json:"template_id,omitempty"`
	PausedForMinutes *int64     `json:"paused_for_minutes,omitempty"`

	// Populated by list queries, not stored.
	OccurrenceCount int64   `json:"occurrence_count"`
	TemplateName    *string `json:"template_name,omitempty"`
}

// TransectInfo is a pre- or post-survey question row attached to a transect.
type TransectInfo struct {
	ID               int64   `json:"id"`
	TransectUID      int64   `json:"transect_uid"`
	PreOrPost        string  `json:"pre_or_post"`
	QuestionText     string  `json:"question_text"`
	ResponseDataType *string `json:"response_data_type,omitempty"`
	ResponseCode     *string `json:"response_code,omitempty"`
	Response         *string `json:"response,omitempty"`
}

// TrackPoint is one GPS fix in a transect's recorded track.
// The flag booleans mark special points (start, turn, end, checkpoints,
// and positions where an occurrence was logged).
type TrackPoint struct {
	ID           int64     `json:"id"`
	User         string    `json:"user"`
	TransectUID  int64     `json:"transect_uid"`
	Time         time.Time `json:"time"`
	Lat          float64   `json:"lat"`
	Long         float64   `json:"long"`
	IsStart      bool      `json:"is_start"`
	IsCheckpoint bool      `json:"is_checkpoint"`
	IsOccurrence bool      `json:"is_occurrence"`
	IsTurnPoint  bool      `json:"is_turn_point"`
	IsEnd        bool      `json:"is_end"`
}

// Occurrence is a sighting recorded along a transect.
// RecordingEndTime is nil while the recording is still open.
type Occurrence struct {
	ID                 int64      `json:"id"`
	TransectUID        int64      `json:"transect_uid"`
	OccurrenceNumber   int64      `json:"occurrence_number"`
	RecordingStartTime time.Time  `json:"recording_start_time"`
	RecordingEndTime   *time.Time `json:"recording_end_time,omitempty"`
	Lat                *float64   `json:"lat,omitempty"`
	Long               *float64   `json:"long,omitempty"`
	Note               *string    `json:"note,omitempty"`
	State              *string    `json:"state,omitempty"`

	// Populated by list queries, not stored.
	ResponseCount int64  `json:"response_count"`
	TransectName  string `json:"transect_name,omitempty"`
}

// OccurrenceInfo is a pre- or post-recording question row for an occurrence.
type OccurrenceInfo struct {
	ID               int64   `json:"id"`
	OccurrenceID     int64   `json:"occurrence_id"`
	PreOrPost        string  `json:"pre_or_post"`
	QuestionText     string  `json:"question_text"`
	ResponseDataType *string `json:"response_data_type,omitempty"`
	ResponseCode     *string `json:"response_code,omitempty"`
	Response         *string `json:"response,omitempty"`
}

// Workflow is a completed question workflow instance for an occurrence.
// CompletedBy is nil until an operator signs the workflow off.
type Workflow struct {
	UID                string  `json:"uid"`
	OccurrenceID       int64   `json:"occurrence_id"`
	TemplateWorkflowID string  `json:"template_workflow_id"`
	InstanceNumber     int64   `json:"instance_number"`
	CompletedBy        *string `json:"completed_by,omitempty"`

	// Populated by list queries, not stored.
	TemplateName string `json:"template_name,omitempty"`
	TransectUID  int64  `json:"transect_uid,omitempty"`
	TransectName string `json:"transect_name,omitempty"`
}

// Response is a single answered (or skipped) question within a workflow.
type Response struct {
	ID             int64   `json:"id"`
	OccurrenceID   int64   `json:"occurrence_id"`
	WorkflowUID    string  `json:"workflow_uid"`
	QuestionNumber *int64  `json:"question_number,omitempty"`
	QuestionText   string  `json:"question_text"`
	ResponseCode   *string `json:"response_code,omitempty"`
	Response       *string `json:"response,omitempty"`
	Skipped        bool    `json:"skipped"`
	QuestionID     string  `json:"question_id"`

	// Populated by list queries, not stored.
	WorkflowTemplateName string `json:"workflow_template_name,omitempty"`
	OccurrenceNumber     int64  `json:"occurrence_number,omitempty"`
}

// TemplateWorkflow is a published workflow definition.
type TemplateWorkflow struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	DateAdded *time.Time `json:"date_added,omitempty"`
	AddedBy   *string    `json:"added_by,omitempty"`
}

// TemplateTransect is a published transect plan. Open-ended templates have
// no destination coordinates; devices may also create templates dynamically
// in the field.
type TemplateTransect struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	ScheduledTime      time.Time `json:"scheduled_time"`
	LatFrom            float64   `json:"lat_from"`
	LongFrom           float64   `json:"long_from"`
	LatTo              *float64  `json:"lat_to,omitempty"`
	LongTo             *float64  `json:"long_to,omitempty"`
	OpenEnded          *bool     `json:"open_ended,omitempty"`
	DistanceKM         *float64  `json:"distance_km,omitempty"`
	AngleDegrees       *int64    `json:"angle_degrees,omitempty"`
	Note               *string   `json:"note,omitempty"`
	CreatedDynamically *bool     `json:"created_dynamically,omitempty"`
}

// DataType is a published answer type for questions. CSharpType carries the
// collector app's native type name so device configs round-trip unchanged.
type DataType struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	IsUserDataType bool    `json:"is_user_data_type"`
	CSharpType     *string `json:"csharp_type,omitempty"`

	// Populated by list queries, not stored.
	OptionCount   int64 `json:"option_count"`
	QuestionCount int64 `json:"question_count"`
}

// DataTypeOption is one coded choice for a data type.
// (data type, code) pairs are unique.
type DataTypeOption struct {
	ID         int64   `json:"id"`
	DataTypeID string  `json:"data_type_id"`
	Code       string  `json:"code"`
	Text       *string `json:"text,omitempty"`

	// Populated by list queries, not stored.
	DataTypeName string `json:"data_type_name,omitempty"`
}

// Question is a published question definition. DataTypeName is denormalized
// alongside the reference because device uploads carry the name, not the ID.
type Question struct {
	ID           string  `json:"id"`
	Prompt       *string `json:"prompt,omitempty"`
	DataTypeID   string  `json:"data_type_id"`
	DataTypeName string  `json:"data_type_name"`
	WorkflowID   *string `json:"workflow_id,omitempty"`

	// Populated by list queries, not stored.
	WorkflowName *string `json:"workflow_name,omitempty"`
}

// ProjectConfig records one publish of a project's configuration bundle.
type ProjectConfig struct {
	ID            int64     `json:"id"`
	PublishDate   time.Time `json:"publish_date"`
	Project       string    `json:"project"`
	ConfigFolder  string    `json:"config_folder"`
	ConfigFile    string    `json:"config_file"`
	Image         *string   `json:"image,omitempty"`
	TransectsFile string    `json:"transects_file"`
}

// DataLogFile is a raw device log kept verbatim for troubleshooting.
type DataLogFile struct {
	ID         int64      `json:"id"`
	UploadDate *time.Time `json:"upload_date,omitempty"`
	UploadedBy *string    `json:"uploaded_by,omitempty"`
	Contents   *string    `json:"contents,omitempty"`
}

// TransectDataLog links an uploaded log file to a transect it contains data
// for. A transect can have several source logs; at most one is primary.
type TransectDataLog struct {
	ID            int64   `json:"id"`
	DataLogFileID int64   `json:"data_log_file_id"`
	TransectUID   int64   `json:"transect_uid"`
	IsPrimary     *bool   `json:"is_primary,omitempty"`
	Username      *string `json:"username,omitempty"`

	// Populated by list queries, not stored.
	TransectName string     `json:"transect_name,omitempty"`
	UploadDate   *time.Time `json:"upload_date,omitempty"`
	UploadedBy   *string    `json:"uploaded_by,omitempty"`
}

// HistoryEntry is one audit record for a mutation of an audited entity.
// Snapshot holds the canonical JSON of the record after the change;
// Checksum is the SHA-256 of the snapshot bytes.
type HistoryEntry struct {
	ID            int64     `json:"id"`
	Entity        string    `json:"entity"`
	EntityKey     string    `json:"entity_key"`
	ChangeType    string    `json:"change_type"`
	ChangedAt     time.Time `json:"changed_at"`
	ChangedBy     *string   `json:"changed_by,omitempty"`
	FieldsChanged []string  `json:"fields_changed"`
	Snapshot      string    `json:"snapshot"`
	Checksum      string    `json:"checksum"`
}

// History change types.
const (
	ChangeCreate = "create"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
)
