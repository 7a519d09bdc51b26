package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/calderbay/fieldwork/internal/queryfilter"
)

// maxBodyBytes caps PUT request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// storeError maps store failures onto the envelope. Missing rows become a
// 404; everything else is logged and reported as a 500.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error, what string) {
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
		return
	}
	s.log.Error("store query failed", "error", err, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, "DB_ERROR", "query failed", nil)
}

// badFilter reports invalid list query parameters with per-field details.
func badFilter(w http.ResponseWriter, err error) {
	var pe *queryfilter.ParseError
	if errors.As(err, &pe) {
		writeError(w, http.StatusBadRequest, "BAD_FILTER", "invalid query parameters", pe.Fields)
		return
	}
	writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
}

func badJSON(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid JSON body", err.Error())
}

// invalidFields rejects a PUT whose body failed validation.
func invalidFields(w http.ResponseWriter, errs []queryfilter.FieldError) {
	writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid fields", errs)
}

// decodeJSON strictly decodes a request body into v. Unknown fields,
// oversized bodies, and trailing data are all rejected.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// listPayload is the common shape of every list response. PageInfo is
// embedded so its page fields sit at the top level of the JSON object.
type listPayload struct {
	Items any `json:"items"`
	queryfilter.PageInfo
	Filter filterEcho `json:"filter"`
}

// filterEcho reports back which filter values a list request applied.
type filterEcho struct {
	Active bool              `json:"active"`
	Values map[string]string `json:"values"`
}

func newListPayload(items any, info queryfilter.PageInfo, f queryfilter.Filter) listPayload {
	return listPayload{
		Items:    items,
		PageInfo: info,
		Filter:   filterEcho{Active: f.Active(), Values: f.Values()},
	}
}
