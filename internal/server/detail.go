package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/calderbay/fieldwork/internal/queryfilter"
	"github.com/calderbay/fieldwork/internal/survey"
)

// contentsPreviewBytes is how much of a data log's contents the detail
// payload carries.
const contentsPreviewBytes = 4 << 10

func intParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// Validation helpers shared by the PUT request bodies. Each appends to the
// running field error list so a response reports every problem at once.

func requireString(errs []queryfilter.FieldError, field, value string) []queryfilter.FieldError {
	if strings.TrimSpace(value) == "" {
		errs = append(errs, queryfilter.FieldError{Field: field, Message: "required"})
	}
	return errs
}

func requireTime(errs []queryfilter.FieldError, field string, value time.Time) []queryfilter.FieldError {
	if value.IsZero() {
		errs = append(errs, queryfilter.FieldError{Field: field, Message: "required"})
	}
	return errs
}

func requireKey(errs []queryfilter.FieldError, field string, value int64) []queryfilter.FieldError {
	if value <= 0 {
		errs = append(errs, queryfilter.FieldError{Field: field, Message: "required"})
	}
	return errs
}

func checkLatitude(errs []queryfilter.FieldError, field string, value float64) []queryfilter.FieldError {
	if value < -90 || value > 90 {
		errs = append(errs, queryfilter.FieldError{Field: field, Message: "latitude out of range"})
	}
	return errs
}

func checkLongitude(errs []queryfilter.FieldError, field string, value float64) []queryfilter.FieldError {
	if value < -180 || value > 180 {
		errs = append(errs, queryfilter.FieldError{Field: field, Message: "longitude out of range"})
	}
	return errs
}

// Workflows.

type workflowUpdateRequest struct {
	OccurrenceID       int64   `json:"occurrence_id"`
	TemplateWorkflowID string  `json:"template_workflow_id"`
	InstanceNumber     int64   `json:"instance_number"`
	CompletedBy        *string `json:"completed_by"`
	ChangedBy          *string `json:"changed_by"`
}

func (b workflowUpdateRequest) validate() []queryfilter.FieldError {
	var errs []queryfilter.FieldError
	errs = requireKey(errs, "occurrence_id", b.OccurrenceID)
	errs = requireString(errs, "template_workflow_id", b.TemplateWorkflowID)
	return errs
}

func (s *Server) handleWorkflowDetail(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.GetWorkflow(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.storeError(w, r, err, "workflow")
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleWorkflowUpdate(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var body workflowUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	wf := survey.Workflow{
		UID:                uid,
		OccurrenceID:       body.OccurrenceID,
		TemplateWorkflowID: body.TemplateWorkflowID,
		InstanceNumber:     body.InstanceNumber,
		CompletedBy:        body.CompletedBy,
	}
	if err := s.store.UpdateWorkflow(r.Context(), wf, body.ChangedBy); err != nil {
		s.storeError(w, r, err, "workflow")
		return
	}
	updated, err := s.store.GetWorkflow(r.Context(), uid)
	if err != nil {
		s.storeError(w, r, err, "workflow")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Template transects.

type templateTransectUpdateRequest struct {
	Name               string    `json:"name"`
	ScheduledTime      time.Time `json:"scheduled_time"`
	LatFrom            float64   `json:"lat_from"`
	LongFrom           float64   `json:"long_from"`
	LatTo              *float64  `json:"lat_to"`
	LongTo             *float64  `json:"long_to"`
	OpenEnded          *bool     `json:"open_ended"`
	DistanceKM         *float64  `json:"distance_km"`
	AngleDegrees       *int64    `json:"angle_degrees"`
	Note               *string   `json:"note"`
	CreatedDynamically *bool     `json:"created_dynamically"`
}

func (b templateTransectUpdateRequest) validate() []queryfilter.FieldError {
	var errs []queryfilter.FieldError
	errs = requireString(errs, "name", b.Name)
	errs = requireTime(errs, "scheduled_time", b.ScheduledTime)
	errs = checkLatitude(errs, "lat_from", b.LatFrom)
	errs = checkLongitude(errs, "long_from", b.LongFrom)
	if b.LatTo != nil {
		errs = checkLatitude(errs, "lat_to", *b.LatTo)
	}
	if b.LongTo != nil {
		errs = checkLongitude(errs, "long_to", *b.LongTo)
	}
	return errs
}

func (s *Server) handleTemplateTransectDetail(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTemplateTransect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, r, err, "template transect")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTemplateTransectUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body templateTransectUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	t := survey.TemplateTransect{
		ID:                 id,
		Name:               body.Name,
		ScheduledTime:      body.ScheduledTime,
		LatFrom:            body.LatFrom,
		LongFrom:           body.LongFrom,
		LatTo:              body.LatTo,
		LongTo:             body.LongTo,
		OpenEnded:          body.OpenEnded,
		DistanceKM:         body.DistanceKM,
		AngleDegrees:       body.AngleDegrees,
		Note:               body.Note,
		CreatedDynamically: body.CreatedDynamically,
	}
	if err := s.store.UpdateTemplateTransect(r.Context(), t); err != nil {
		s.storeError(w, r, err, "template transect")
		return
	}
	updated, err := s.store.GetTemplateTransect(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "template transect")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Template workflows.

type templateWorkflowUpdateRequest struct {
	Name      string     `json:"name"`
	DateAdded *time.Time `json:"date_added"`
	AddedBy   *string    `json:"added_by"`
}

func (b templateWorkflowUpdateRequest) validate() []queryfilter.FieldError {
	return requireString(nil, "name", b.Name)
}

func (s *Server) handleTemplateWorkflowDetail(w http.ResponseWriter, r *http.Request) {
	tw, err := s.store.GetTemplateWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, r, err, "template workflow")
		return
	}
	writeJSON(w, http.StatusOK, tw)
}

func (s *Server) handleTemplateWorkflowUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body templateWorkflowUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	tw := survey.TemplateWorkflow{
		ID:        id,
		Name:      body.Name,
		DateAdded: body.DateAdded,
		AddedBy:   body.AddedBy,
	}
	if err := s.store.UpdateTemplateWorkflow(r.Context(), tw); err != nil {
		s.storeError(w, r, err, "template workflow")
		return
	}
	updated, err := s.store.GetTemplateWorkflow(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "template workflow")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Questions.

type questionUpdateRequest struct {
	Prompt       *string `json:"prompt"`
	DataTypeID   string  `json:"data_type_id"`
	DataTypeName string  `json:"data_type_name"`
	WorkflowID   *string `json:"workflow_id"`
	ChangedBy    *string `json:"changed_by"`
}

func (b questionUpdateRequest) validate() []queryfilter.FieldError {
	var errs []queryfilter.FieldError
	errs = requireString(errs, "data_type_id", b.DataTypeID)
	errs = requireString(errs, "data_type_name", b.DataTypeName)
	return errs
}

// questionDetailPayload embeds the referenced data type and template
// workflow so the client does not chase two extra lookups. Either can be
// absent when the denormalized reference no longer resolves.
type questionDetailPayload struct {
	Question survey.Question          `json:"question"`
	DataType *survey.DataType         `json:"data_type,omitempty"`
	Workflow *survey.TemplateWorkflow `json:"workflow,omitempty"`
}

func (s *Server) questionPayload(ctx context.Context, id string) (questionDetailPayload, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return questionDetailPayload{}, err
	}
	payload := questionDetailPayload{Question: q}
	dt, err := s.store.GetDataType(ctx, q.DataTypeID)
	switch {
	case err == nil:
		payload.DataType = &dt
	case !errors.Is(err, sql.ErrNoRows):
		return questionDetailPayload{}, err
	}
	if q.WorkflowID != nil {
		tw, err := s.store.GetTemplateWorkflow(ctx, *q.WorkflowID)
		switch {
		case err == nil:
			payload.Workflow = &tw
		case !errors.Is(err, sql.ErrNoRows):
			return questionDetailPayload{}, err
		}
	}
	return payload, nil
}

func (s *Server) handleQuestionDetail(w http.ResponseWriter, r *http.Request) {
	payload, err := s.questionPayload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, r, err, "question")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleQuestionUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body questionUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	q := survey.Question{
		ID:           id,
		Prompt:       body.Prompt,
		DataTypeID:   body.DataTypeID,
		DataTypeName: body.DataTypeName,
		WorkflowID:   body.WorkflowID,
	}
	if err := s.store.UpdateQuestion(r.Context(), q, body.ChangedBy); err != nil {
		s.storeError(w, r, err, "question")
		return
	}
	payload, err := s.questionPayload(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "question")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// Data types.

type dataTypeUpdateRequest struct {
	Name           string  `json:"name"`
	IsUserDataType bool    `json:"is_user_data_type"`
	CSharpType     *string `json:"csharp_type"`
}

func (b dataTypeUpdateRequest) validate() []queryfilter.FieldError {
	return requireString(nil, "name", b.Name)
}

type dataTypeDetailPayload struct {
	DataType survey.DataType         `json:"data_type"`
	Options  []survey.DataTypeOption `json:"options"`
}

func (s *Server) dataTypePayload(ctx context.Context, id string) (dataTypeDetailPayload, error) {
	dt, err := s.store.GetDataType(ctx, id)
	if err != nil {
		return dataTypeDetailPayload{}, err
	}
	options, err := s.store.DataTypeOptions(ctx, id)
	if err != nil {
		return dataTypeDetailPayload{}, err
	}
	return dataTypeDetailPayload{DataType: dt, Options: options}, nil
}

func (s *Server) handleDataTypeDetail(w http.ResponseWriter, r *http.Request) {
	payload, err := s.dataTypePayload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, r, err, "data type")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDataTypeUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body dataTypeUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	dt := survey.DataType{
		ID:             id,
		Name:           body.Name,
		IsUserDataType: body.IsUserDataType,
		CSharpType:     body.CSharpType,
	}
	if err := s.store.UpdateDataType(r.Context(), dt); err != nil {
		s.storeError(w, r, err, "data type")
		return
	}
	payload, err := s.dataTypePayload(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "data type")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// Data type options.

type dataTypeOptionUpdateRequest struct {
	DataTypeID string  `json:"data_type_id"`
	Code       string  `json:"code"`
	Text       *string `json:"text"`
}

func (b dataTypeOptionUpdateRequest) validate() []queryfilter.FieldError {
	var errs []queryfilter.FieldError
	errs = requireString(errs, "data_type_id", b.DataTypeID)
	errs = requireString(errs, "code", b.Code)
	return errs
}

func (s *Server) handleDataTypeOptionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid data type option id", nil)
		return
	}
	o, err := s.store.GetDataTypeOption(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "data type option")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDataTypeOptionUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid data type option id", nil)
		return
	}
	var body dataTypeOptionUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	o := survey.DataTypeOption{
		ID:         id,
		DataTypeID: body.DataTypeID,
		Code:       body.Code,
		Text:       body.Text,
	}
	if err := s.store.UpdateDataTypeOption(r.Context(), o); err != nil {
		s.storeError(w, r, err, "data type option")
		return
	}
	updated, err := s.store.GetDataTypeOption(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "data type option")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Project configs.

type projectConfigUpdateRequest struct {
	PublishDate   time.Time `json:"publish_date"`
	Project       string    `json:"project"`
	ConfigFolder  string    `json:"config_folder"`
	ConfigFile    string    `json:"config_file"`
	Image         *string   `json:"image"`
	TransectsFile string    `json:"transects_file"`
}

func (b projectConfigUpdateRequest) validate() []queryfilter.FieldError {
	var errs []queryfilter.FieldError
	errs = requireTime(errs, "publish_date", b.PublishDate)
	errs = requireString(errs, "project", b.Project)
	return errs
}

func (s *Server) handleProjectConfigDetail(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid project config id", nil)
		return
	}
	c, err := s.store.GetProjectConfig(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "project config")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleProjectConfigUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid project config id", nil)
		return
	}
	var body projectConfigUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	c := survey.ProjectConfig{
		ID:            id,
		PublishDate:   body.PublishDate,
		Project:       body.Project,
		ConfigFolder:  body.ConfigFolder,
		ConfigFile:    body.ConfigFile,
		Image:         body.Image,
		TransectsFile: body.TransectsFile,
	}
	if err := s.store.UpdateProjectConfig(r.Context(), c); err != nil {
		s.storeError(w, r, err, "project config")
		return
	}
	updated, err := s.store.GetProjectConfig(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "project config")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Data log files.

type dataLogUpdateRequest struct {
	UploadDate *time.Time `json:"upload_date"`
	UploadedBy *string    `json:"uploaded_by"`
	Contents   *string    `json:"contents"`
}

// dataLogDetailPayload serves the file's links and a bounded preview. The
// raw contents column can run to megabytes, so it stays out of the payload.
type dataLogDetailPayload struct {
	File              survey.DataLogFile       `json:"file"`
	Links             []survey.TransectDataLog `json:"links"`
	ContentsPreview   string                   `json:"contents_preview"`
	ContentsTruncated bool                     `json:"contents_truncated"`
}

func (s *Server) dataLogPayload(ctx context.Context, id int64) (dataLogDetailPayload, error) {
	file, err := s.store.GetDataLogFile(ctx, id)
	if err != nil {
		return dataLogDetailPayload{}, err
	}
	links, err := s.store.LinksForDataLog(ctx, id)
	if err != nil {
		return dataLogDetailPayload{}, err
	}
	payload := dataLogDetailPayload{Links: links}
	if file.Contents != nil {
		preview := *file.Contents
		if len(preview) > contentsPreviewBytes {
			preview = preview[:contentsPreviewBytes]
			payload.ContentsTruncated = true
		}
		payload.ContentsPreview = preview
	}
	file.Contents = nil
	payload.File = file
	return payload, nil
}

func (s *Server) handleDataLogDetail(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid data log id", nil)
		return
	}
	payload, err := s.dataLogPayload(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "data log file")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDataLogUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid data log id", nil)
		return
	}
	var body dataLogUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	f := survey.DataLogFile{
		ID:         id,
		UploadDate: body.UploadDate,
		UploadedBy: body.UploadedBy,
		Contents:   body.Contents,
	}
	if err := s.store.UpdateDataLogFile(r.Context(), f); err != nil {
		s.storeError(w, r, err, "data log file")
		return
	}
	payload, err := s.dataLogPayload(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "data log file")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// Transect data log links.

type transectDataLogUpdateRequest struct {
	DataLogFileID int64   `json:"data_log_file_id"`
	TransectUID   int64   `json:"transect_uid"`
	IsPrimary     *bool   `json:"is_primary"`
	Username      *string `json:"username"`
}

func (b transectDataLogUpdateRequest) validate() []queryfilter.FieldError {
	var errs []queryfilter.FieldError
	errs = requireKey(errs, "data_log_file_id", b.DataLogFileID)
	errs = requireKey(errs, "transect_uid", b.TransectUID)
	return errs
}

func (s *Server) handleTransectDataLogDetail(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid transect data log id", nil)
		return
	}
	link, err := s.store.GetTransectDataLog(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "transect data log")
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (s *Server) handleTransectDataLogUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid transect data log id", nil)
		return
	}
	var body transectDataLogUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	link := survey.TransectDataLog{
		ID:            id,
		DataLogFileID: body.DataLogFileID,
		TransectUID:   body.TransectUID,
		IsPrimary:     body.IsPrimary,
		Username:      body.Username,
	}
	if err := s.store.UpdateTransectDataLog(r.Context(), link); err != nil {
		s.storeError(w, r, err, "transect data log")
		return
	}
	updated, err := s.store.GetTransectDataLog(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "transect data log")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
