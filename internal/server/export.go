package server

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/calderbay/fieldwork/internal/survey"
)

var responsesCSVHeader = []string{
	"occurrence",
	"question_number",
	"question",
	"response",
	"response_code",
	"skipped",
	"workflow",
}

func responseCSVRow(r survey.Response) []string {
	questionNumber := ""
	if r.QuestionNumber != nil {
		questionNumber = strconv.FormatInt(*r.QuestionNumber, 10)
	}
	response := ""
	if r.Response != nil {
		response = *r.Response
	}
	code := ""
	if r.ResponseCode != nil {
		code = *r.ResponseCode
	}
	workflow := r.WorkflowTemplateName
	if workflow == "" {
		workflow = r.WorkflowUID
	}
	return []string{
		strconv.FormatInt(r.OccurrenceNumber, 10),
		questionNumber,
		r.QuestionText,
		response,
		code,
		strconv.FormatBool(r.Skipped),
		workflow,
	}
}

// WriteResponsesCSV writes the response export, header row first. The CLI
// export command shares this writer with the HTTP handlers.
func WriteResponsesCSV(w io.Writer, responses []survey.Response) error {
	cw := csv.NewWriter(w)
	_ = cw.Write(responsesCSVHeader)
	for _, r := range responses {
		_ = cw.Write(responseCSVRow(r))
	}
	cw.Flush()
	return cw.Error()
}

func (s *Server) writeResponsesCSV(w http.ResponseWriter, filename string, responses []survey.Response) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := WriteResponsesCSV(w, responses); err != nil {
		s.log.Warn("csv export write failed", "error", err)
	}
}

func (s *Server) handleTransectResponsesCSV(w http.ResponseWriter, r *http.Request) {
	uid, err := intParam(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid transect uid", nil)
		return
	}
	if _, err := s.store.GetTransect(r.Context(), uid); err != nil {
		s.storeError(w, r, err, "transect")
		return
	}
	responses, err := s.store.ResponsesForTransect(r.Context(), uid)
	if err != nil {
		s.storeError(w, r, err, "transect responses")
		return
	}
	s.writeResponsesCSV(w, fmt.Sprintf("transect-%d-responses.csv", uid), responses)
}

func (s *Server) handleOccurrenceResponsesCSV(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid occurrence id", nil)
		return
	}
	if _, err := s.store.GetOccurrence(r.Context(), id); err != nil {
		s.storeError(w, r, err, "occurrence")
		return
	}
	responses, err := s.store.ResponsesForOccurrence(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "occurrence responses")
		return
	}
	s.writeResponsesCSV(w, fmt.Sprintf("occurrence-%d-responses.csv", id), responses)
}

// GPX 1.1 document shapes. Waypoints must precede the track per the schema
// element order.

type gpxDoc struct {
	XMLName   xml.Name      `xml:"gpx"`
	XMLNS     string        `xml:"xmlns,attr"`
	Version   string        `xml:"version,attr"`
	Creator   string        `xml:"creator,attr"`
	Waypoints []gpxWaypoint `xml:"wpt"`
	Track     gpxTrack      `xml:"trk"`
}

type gpxTrack struct {
	Name     string       `xml:"name"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxTrackPoint `xml:"trkpt"`
}

type gpxTrackPoint struct {
	Lat  float64   `xml:"lat,attr"`
	Lon  float64   `xml:"lon,attr"`
	Time time.Time `xml:"time"`
}

type gpxWaypoint struct {
	Lat  float64   `xml:"lat,attr"`
	Lon  float64   `xml:"lon,attr"`
	Time time.Time `xml:"time"`
	Name string    `xml:"name"`
}

// waypointName classifies a flagged track point. A point can carry several
// flags; the most specific one wins.
func waypointName(p survey.TrackPoint) string {
	switch {
	case p.IsTurnPoint:
		return "Turn"
	case p.IsOccurrence:
		return "Occurrence"
	case p.IsCheckpoint:
		return "Checkpoint"
	}
	return ""
}

func buildGPX(t survey.Transect, points []survey.TrackPoint) gpxDoc {
	doc := gpxDoc{
		XMLNS:   "http://www.topografix.com/GPX/1/1",
		Version: "1.1",
		Creator: "fieldwork",
		Track:   gpxTrack{Name: t.Name},
	}
	var seg gpxSegment
	for _, p := range points {
		seg.Points = append(seg.Points, gpxTrackPoint{Lat: p.Lat, Lon: p.Long, Time: p.Time})
		if name := waypointName(p); name != "" {
			doc.Waypoints = append(doc.Waypoints, gpxWaypoint{
				Lat:  p.Lat,
				Lon:  p.Long,
				Time: p.Time,
				Name: name,
			})
		}
	}
	doc.Track.Segments = []gpxSegment{seg}
	return doc
}

// WriteTrackGPX writes a transect's GPS track as an indented GPX 1.1
// document, XML declaration included. Shared by the HTTP handler and the
// CLI export command.
func WriteTrackGPX(w io.Writer, t survey.Transect, points []survey.TrackPoint) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(buildGPX(t, points))
}

func (s *Server) handleTransectTrackGPX(w http.ResponseWriter, r *http.Request) {
	uid, err := intParam(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid transect uid", nil)
		return
	}
	t, err := s.store.GetTransect(r.Context(), uid)
	if err != nil {
		s.storeError(w, r, err, "transect")
		return
	}
	points, err := s.store.TrackPoints(r.Context(), uid)
	if err != nil {
		s.storeError(w, r, err, "track points")
		return
	}

	w.Header().Set("Content-Type", "application/gpx+xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("transect-%d-track.gpx", uid)))
	if err := WriteTrackGPX(w, t, points); err != nil {
		s.log.Warn("gpx export write failed", "error", err)
	}
}
