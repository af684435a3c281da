package internalhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lomoval/calendar/internal/conflict"
	"github.com/lomoval/calendar/internal/ical"
	"github.com/lomoval/calendar/internal/recurrence"
	"github.com/lomoval/calendar/internal/storage"
	"github.com/lomoval/calendar/internal/util"
	log "github.com/sirupsen/logrus"
)

var errBadRequest = errors.New("bad request")

type listResponse struct {
	Events    []recurrence.Occurrence `json:"events"`
	Truncated []string                `json:"truncated"`
}

type conflictRequest struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	ExcludeEventID string    `json:"excludeEventId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listOccurrences(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	owner, start, end, err := rangeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.app.ListOccurrences(r.Context(), owner, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := listResponse{Events: res.Occurrences, Truncated: res.Truncated}
	if resp.Events == nil {
		resp.Events = []recurrence.Occurrence{}
	}
	if resp.Truncated == nil {
		resp.Truncated = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var e storage.Event
	if err := decode(r, &e); err != nil {
		writeError(w, err)
		return
	}
	e.ID = ""
	created, err := s.app.CreateEvent(r.Context(), owner, e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request, params map[string]string) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	e, err := s.app.GetEvent(r.Context(), owner, params["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request, params map[string]string) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var e storage.Event
	if err := decode(r, &e); err != nil {
		writeError(w, err)
		return
	}
	updated, err := s.app.UpdateEvent(r.Context(), owner, params["id"], e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) removeEvent(w http.ResponseWriter, r *http.Request, params map[string]string) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.app.RemoveEvent(r.Context(), owner, params["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeOccurrence(w http.ResponseWriter, r *http.Request, params map[string]string) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.app.RemoveOccurrence(r.Context(), owner, params["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkConflicts(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	owner, err := ownerOf(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req conflictRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.app.CheckConflicts(r.Context(), owner, req.Start, req.End, req.ExcludeEventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) exportICS(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	owner, start, end, err := rangeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.app.ListOccurrences(r.Context(), owner, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	if err := ical.Export(w, res.Occurrences, s.now()); err != nil {
		log.Errorf("failed to export calendar: %v", err)
	}
}

func ownerOf(r *http.Request) (string, error) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		return "", fmt.Errorf("%s header: %w", ownerHeader, storage.ErrOwnerRequired)
	}
	return owner, nil
}

func rangeQuery(r *http.Request) (owner string, start time.Time, end time.Time, err error) {
	if owner, err = ownerOf(r); err != nil {
		return
	}
	if start, err = queryTime(r, "start"); err != nil {
		return
	}
	end, err = queryTime(r, "end")
	return
}

// queryTime accepts RFC 3339 times and plain dates, which mean UTC midnight.
func queryTime(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, fmt.Errorf("parameter %q is required: %w", name, errBadRequest)
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(util.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parameter %q: incorrect time %q: %w", name, v, errBadRequest)
	}
	return t, nil
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse body: %v: %w", err, errBadRequest)
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFoundEvent):
		return http.StatusNotFound
	case errors.Is(err, conflict.ErrConflict), errors.Is(err, storage.ErrDuplicateEventID):
		return http.StatusConflict
	case errors.Is(err, storage.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest),
		errors.Is(err, storage.ErrOwnerRequired),
		errors.Is(err, storage.ErrIncorrectEventTime),
		errors.Is(err, storage.ErrInvalidRecurrenceRule),
		errors.Is(err, storage.ErrInvalidColor),
		errors.Is(err, conflict.ErrInvalidInterval),
		errors.Is(err, recurrence.ErrInvalidRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}
