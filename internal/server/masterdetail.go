package server

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/calderbay/fieldwork/internal/queryfilter"
	"github.com/calderbay/fieldwork/internal/survey"
)

// detailHistoryLimit caps the history tab on master-detail payloads.
const detailHistoryLimit = 25

// emDash is the display placeholder for absent values in overview rows.
const emDash = "—"

// overviewSection groups labelled rows for a detail page header.
type overviewSection struct {
	Title string        `json:"title"`
	Icon  string        `json:"icon"`
	Items []overviewRow `json:"items"`
}

type overviewRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type actionLink struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	URL   string `json:"url"`
}

func formatString(v string) string {
	if v == "" {
		return emDash
	}
	return v
}

func formatStringPtr(v *string) string {
	if v == nil {
		return emDash
	}
	return formatString(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return emDash
	}
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return emDash
	}
	return formatTime(*t)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return emDash
	}
	return formatFloat(*v)
}

func formatLatLong(lat, long float64) string {
	return "Lat " + formatFloat(lat) + ", Long " + formatFloat(long)
}

// Transects.

type transectDetailPayload struct {
	Transect    survey.Transect       `json:"transect"`
	Overview    []overviewSection     `json:"overview"`
	InfoRows    []survey.TransectInfo `json:"info_rows"`
	Occurrences []survey.Occurrence   `json:"occurrences"`
	TrackPoints []survey.TrackPoint   `json:"track_points"`
	History     []survey.HistoryEntry `json:"history"`
	Actions     []actionLink          `json:"actions"`
}

func transectOverview(t survey.Transect) []overviewSection {
	template := emDash
	switch {
	case t.TemplateName != nil && *t.TemplateName != "":
		template = *t.TemplateName
	case t.TemplateID != nil && *t.TemplateID != "":
		template = *t.TemplateID
	}
	turn := emDash
	if t.LatTurn != nil && t.LongTurn != nil {
		turn = formatLatLong(*t.LatTurn, *t.LongTurn)
	}
	return []overviewSection{
		{
			Title: "Summary",
			Icon:  "fa-solid fa-circle-info",
			Items: []overviewRow{
				{Label: "Identifier", Value: strconv.FormatInt(t.UID, 10)},
				{Label: "Template", Value: template},
				{Label: "State", Value: formatString(t.State)},
				{Label: "Started", Value: formatTime(t.StartTime)},
				{Label: "Ended", Value: formatTime(t.EndTime)},
				{Label: "Turn time", Value: formatTimePtr(t.TurnTime)},
				{Label: "Distance (km)", Value: formatFloat(t.DistanceKM)},
			},
		},
		{
			Title: "Coordinates",
			Icon:  "fa-solid fa-location-dot",
			Items: []overviewRow{
				{Label: "Start", Value: formatLatLong(t.LatFrom, t.LongFrom)},
				{Label: "Turn", Value: turn},
				{Label: "End", Value: formatLatLong(t.LatTo, t.LongTo)},
			},
		},
	}
}

func transectActions(t survey.Transect) []actionLink {
	uid := strconv.FormatInt(t.UID, 10)
	actions := []actionLink{
		{
			Label: "Export responses",
			Icon:  "fa-solid fa-file-export",
			URL:   "/api/v1/transects/" + uid + "/responses.csv",
		},
		{
			Label: "Download GPS track",
			Icon:  "fa-solid fa-download",
			URL:   "/api/v1/transects/" + uid + "/track.gpx",
		},
	}
	if t.TemplateID != nil && *t.TemplateID != "" {
		actions = append(actions, actionLink{
			Label: "View template",
			Icon:  "fa-solid fa-layer-group",
			URL:   "/api/v1/template-transects/" + url.PathEscape(*t.TemplateID),
		})
	}
	return actions
}

func (s *Server) transectPayload(ctx context.Context, uid int64) (transectDetailPayload, error) {
	t, err := s.store.GetTransect(ctx, uid)
	if err != nil {
		return transectDetailPayload{}, err
	}
	infos, err := s.store.TransectInfos(ctx, uid)
	if err != nil {
		return transectDetailPayload{}, err
	}
	occurrences, err := s.store.OccurrencesForTransect(ctx, uid)
	if err != nil {
		return transectDetailPayload{}, err
	}
	points, err := s.store.TrackPoints(ctx, uid)
	if err != nil {
		return transectDetailPayload{}, err
	}
	key := strconv.FormatInt(uid, 10)
	history, err := s.store.HistoryForEntity(ctx, survey.EntityTransect, key, detailHistoryLimit)
	if err != nil {
		return transectDetailPayload{}, err
	}
	return transectDetailPayload{
		Transect:    t,
		Overview:    transectOverview(t),
		InfoRows:    infos,
		Occurrences: occurrences,
		TrackPoints: points,
		History:     history,
		Actions:     transectActions(t),
	}, nil
}

func (s *Server) handleTransectDetail(w http.ResponseWriter, r *http.Request) {
	uid, err := intParam(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid transect uid", nil)
		return
	}
	payload, err := s.transectPayload(r.Context(), uid)
	if err != nil {
		s.storeError(w, r, err, "transect")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

type transectUpdateRequest struct {
	Name             string     `json:"name"`
	TemplateID       *string    `json:"template_id"`
	StartTime        time.Time  `json:"start_time"`
	TurnTime         *time.Time `json:"turn_time"`
	EndTime          time.Time  `json:"end_time"`
	LatFrom          float64    `json:"lat_from"`
	LongFrom         float64    `json:"long_from"`
	LatTurn          *float64   `json:"lat_turn"`
	LongTurn         *float64   `json:"long_turn"`
	LatTo            float64    `json:"lat_to"`
	LongTo           float64    `json:"long_to"`
	DistanceKM       float64    `json:"distance_km"`
	AngleDegrees     int64      `json:"angle_degrees"`
	State            string     `json:"state"`
	PausedForMinutes *int64     `json:"paused_for_minutes"`
	ChangedBy        *string    `json:"changed_by"`
}

func (b transectUpdateRequest) validate() []queryfilter.FieldError {
	var errs []queryfilter.FieldError
	errs = requireString(errs, "name", b.Name)
	errs = requireTime(errs, "start_time", b.StartTime)
	errs = requireTime(errs, "end_time", b.EndTime)
	errs = requireString(errs, "state", b.State)
	errs = checkLatitude(errs, "lat_from", b.LatFrom)
	errs = checkLongitude(errs, "long_from", b.LongFrom)
	errs = checkLatitude(errs, "lat_to", b.LatTo)
	errs = checkLongitude(errs, "long_to", b.LongTo)
	if b.LatTurn != nil {
		errs = checkLatitude(errs, "lat_turn", *b.LatTurn)
	}
	if b.LongTurn != nil {
		errs = checkLongitude(errs, "long_turn", *b.LongTurn)
	}
	return errs
}

func (s *Server) handleTransectUpdate(w http.ResponseWriter, r *http.Request) {
	uid, err := intParam(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid transect uid", nil)
		return
	}
	var body transectUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	t := survey.Transect{
		UID:              uid,
		Name:             body.Name,
		TemplateID:       body.TemplateID,
		StartTime:        body.StartTime,
		TurnTime:         body.TurnTime,
		EndTime:          body.EndTime,
		LatFrom:          body.LatFrom,
		LongFrom:         body.LongFrom,
		LatTurn:          body.LatTurn,
		LongTurn:         body.LongTurn,
		LatTo:            body.LatTo,
		LongTo:           body.LongTo,
		DistanceKM:       body.DistanceKM,
		AngleDegrees:     body.AngleDegrees,
		State:            body.State,
		PausedForMinutes: body.PausedForMinutes,
	}
	if err := s.store.UpdateTransect(r.Context(), t, body.ChangedBy); err != nil {
		s.storeError(w, r, err, "transect")
		return
	}
	payload, err := s.transectPayload(r.Context(), uid)
	if err != nil {
		s.storeError(w, r, err, "transect")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// Occurrences.

type occurrenceDetailPayload struct {
	Occurrence survey.Occurrence       `json:"occurrence"`
	Overview   []overviewSection       `json:"overview"`
	InfoRows   []survey.OccurrenceInfo `json:"info_rows"`
	Responses  []survey.Response       `json:"responses"`
	Workflows  []survey.Workflow       `json:"workflows"`
	History    []survey.HistoryEntry   `json:"history"`
	Actions    []actionLink            `json:"actions"`
}

func occurrenceOverview(o survey.Occurrence) []overviewSection {
	transect := o.TransectName
	if transect == "" {
		transect = strconv.FormatInt(o.TransectUID, 10)
	}
	return []overviewSection{
		{
			Title: "Summary",
			Icon:  "fa-solid fa-circle-info",
			Items: []overviewRow{
				{Label: "Identifier", Value: strconv.FormatInt(o.ID, 10)},
				{Label: "Transect", Value: transect},
				{Label: "State", Value: formatStringPtr(o.State)},
				{Label: "Recording started", Value: formatTime(o.RecordingStartTime)},
				{Label: "Recording ended", Value: formatTimePtr(o.RecordingEndTime)},
				{Label: "Latitude", Value: formatFloatPtr(o.Lat)},
				{Label: "Longitude", Value: formatFloatPtr(o.Long)},
			},
		},
		{
			Title: "Notes",
			Icon:  "fa-solid fa-pen-to-square",
			Items: []overviewRow{
				{Label: "Note", Value: formatStringPtr(o.Note)},
			},
		},
	}
}

func occurrenceActions(o survey.Occurrence) []actionLink {
	id := strconv.FormatInt(o.ID, 10)
	return []actionLink{
		{
			Label: "Export responses",
			Icon:  "fa-solid fa-file-export",
			URL:   "/api/v1/occurrences/" + id + "/responses.csv",
		},
		{
			Label: "View parent transect",
			Icon:  "fa-solid fa-route",
			URL:   "/api/v1/transects/" + strconv.FormatInt(o.TransectUID, 10),
		},
	}
}

func (s *Server) occurrencePayload(ctx context.Context, id int64) (occurrenceDetailPayload, error) {
	o, err := s.store.GetOccurrence(ctx, id)
	if err != nil {
		return occurrenceDetailPayload{}, err
	}
	infos, err := s.store.OccurrenceInfos(ctx, id)
	if err != nil {
		return occurrenceDetailPayload{}, err
	}
	responses, err := s.store.ResponsesForOccurrence(ctx, id)
	if err != nil {
		return occurrenceDetailPayload{}, err
	}
	workflows, err := s.store.WorkflowsForOccurrence(ctx, id)
	if err != nil {
		return occurrenceDetailPayload{}, err
	}
	key := strconv.FormatInt(id, 10)
	history, err := s.store.HistoryForEntity(ctx, survey.EntityOccurrence, key, detailHistoryLimit)
	if err != nil {
		return occurrenceDetailPayload{}, err
	}
	return occurrenceDetailPayload{
		Occurrence: o,
		Overview:   occurrenceOverview(o),
		InfoRows:   infos,
		Responses:  responses,
		Workflows:  workflows,
		History:    history,
		Actions:    occurrenceActions(o),
	}, nil
}

func (s *Server) handleOccurrenceDetail(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid occurrence id", nil)
		return
	}
	payload, err := s.occurrencePayload(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "occurrence")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

type occurrenceUpdateRequest struct {
	TransectUID        int64      `json:"transect_uid"`
	OccurrenceNumber   int64      `json:"occurrence_number"`
	RecordingStartTime time.Time  `json:"recording_start_time"`
	RecordingEndTime   *time.Time `json:"recording_end_time"`
	Lat                *float64   `json:"lat"`
	Long               *float64   `json:"long"`
	Note               *string    `json:"note"`
	State              *string    `json:"state"`
	ChangedBy          *string    `json:"changed_by"`
}

func (b occurrenceUpdateRequest) validate() []queryfilter.FieldError {
	var errs []queryfilter.FieldError
	errs = requireKey(errs, "transect_uid", b.TransectUID)
	errs = requireKey(errs, "occurrence_number", b.OccurrenceNumber)
	errs = requireTime(errs, "recording_start_time", b.RecordingStartTime)
	if b.Lat != nil {
		errs = checkLatitude(errs, "lat", *b.Lat)
	}
	if b.Long != nil {
		errs = checkLongitude(errs, "long", *b.Long)
	}
	return errs
}

func (s *Server) handleOccurrenceUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid occurrence id", nil)
		return
	}
	var body occurrenceUpdateRequest
	if err := decodeJSON(r, &body); err != nil {
		badJSON(w, err)
		return
	}
	if errs := body.validate(); len(errs) > 0 {
		invalidFields(w, errs)
		return
	}
	o := survey.Occurrence{
		ID:                 id,
		TransectUID:        body.TransectUID,
		OccurrenceNumber:   body.OccurrenceNumber,
		RecordingStartTime: body.RecordingStartTime,
		RecordingEndTime:   body.RecordingEndTime,
		Lat:                body.Lat,
		Long:               body.Long,
		Note:               body.Note,
		State:              body.State,
	}
	if err := s.store.UpdateOccurrence(r.Context(), o, body.ChangedBy); err != nil {
		s.storeError(w, r, err, "occurrence")
		return
	}
	payload, err := s.occurrencePayload(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "occurrence")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
