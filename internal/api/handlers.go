package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/journal"
)

// DefaultHistoryDays is the history span when no range is given.
const DefaultHistoryDays = 14

// ErrBadRequest rejects malformed request bodies and query parameters.
var ErrBadRequest = errors.ValidationError("malformed request").Build()

// CycleRequest optionally binds a confirm or skip to a cycle id.
type CycleRequest struct {
	CycleID string `json:"cycle_id,omitempty"`
}

// ExactPermission is the body of the exact-capability endpoints.
type ExactPermission struct {
	Allowed bool `json:"allowed"`
}

// HistoryResponse is the payload of GET /history.
type HistoryResponse struct {
	Summary journal.Summary `json:"summary"`
	Events  []journal.Entry `json:"events"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ds, err := s.machine.DisplayState(r.Context())
	if err != nil {
		s.Error(w, r, err, nil)
		return
	}
	s.Success(w, http.StatusOK, ds)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var survey adherence.Survey
	if err := decodeBody(r, &survey, true); err != nil {
		s.Error(w, r, err, nil)
		return
	}
	ds, err := s.machine.Setup(r.Context(), survey)
	s.respondTransition(w, r, http.StatusCreated, ds, err)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req CycleRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.Error(w, r, err, nil)
		return
	}
	ds, err := s.machine.OnUserConfirmCycle(r.Context(), req.CycleID)
	s.respondTransition(w, r, http.StatusOK, ds, err)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	var req CycleRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.Error(w, r, err, nil)
		return
	}
	ds, err := s.machine.OnUserSkipCycle(r.Context(), req.CycleID)
	s.respondTransition(w, r, http.StatusOK, ds, err)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	ds, err := s.machine.Resume(r.Context())
	s.respondTransition(w, r, http.StatusOK, ds, err)
}

func (s *Server) handleGetExact(w http.ResponseWriter, _ *http.Request) {
	s.Success(w, http.StatusOK, ExactPermission{Allowed: s.permissions.CanScheduleExact()})
}

// handlePutExact changes the capability and re-registers the open cycle so
// the live triggers use the mode that is now available.
func (s *Server) handlePutExact(w http.ResponseWriter, r *http.Request) {
	var req ExactPermission
	if err := decodeBody(r, &req, true); err != nil {
		s.Error(w, r, err, nil)
		return
	}
	s.permissions.SetExactAllowed(req.Allowed)
	ds, err := s.machine.Resume(r.Context())
	s.respondTransition(w, r, http.StatusOK, ds, err)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		entries []journal.Entry
		err     error
	)
	if id := q.Get("cycle_id"); id != "" {
		entries, err = s.history.ByCycle(r.Context(), id)
	} else {
		start, end, rerr := s.historyRange(q.Get("since"), q.Get("until"), q.Get("days"))
		if rerr != nil {
			s.Error(w, r, rerr, nil)
			return
		}
		entries, err = s.history.Range(r.Context(), start, end)
	}
	if err != nil {
		s.Error(w, r, err, nil)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	s.Success(w, http.StatusOK, HistoryResponse{Summary: journal.Summarize(entries), Events: entries})
}

func (s *Server) handleNotices(w http.ResponseWriter, _ *http.Request) {
	s.Success(w, http.StatusOK, s.notices())
}

// respondTransition reports a machine operation. A scheduling failure still
// carries the committed state. An action that no longer applies to the current
// cycle changed nothing and succeeds with a notice.
func (s *Server) respondTransition(w http.ResponseWriter, r *http.Request, code int, ds adherence.DisplayState, err error) {
	if err == nil {
		s.Success(w, code, ds)
		return
	}
	if ce, ok := errors.AsClassified(err); ok && ce.IsCategory(errors.CategoryCycle) {
		writeJSON(w, http.StatusOK, Response{Success: true, Data: ds, Code: string(ce.Category()), Notice: ce.Message()})
		return
	}
	if errors.HasCategory(err, errors.CategoryScheduling) {
		s.Error(w, r, err, ds)
		return
	}
	s.Error(w, r, err, nil)
}

func (s *Server) historyRange(since, until, days string) (time.Time, time.Time, error) {
	end := s.now()
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return time.Time{}, time.Time{}, ErrBadRequest.WithContext("until", until).Wrap(err)
		}
		end = t
	}
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return time.Time{}, time.Time{}, ErrBadRequest.WithContext("since", since).Wrap(err)
		}
		return t, end, nil
	}
	n := DefaultHistoryDays
	if days != "" {
		v, err := strconv.Atoi(days)
		if err != nil || v <= 0 {
			return time.Time{}, time.Time{}, ErrBadRequest.WithContext("days", days)
		}
		n = v
	}
	return end.AddDate(0, 0, -n), end, nil
}

// decodeBody decodes a JSON body into dst. An empty body is accepted unless
// required is set.
func decodeBody(r *http.Request, dst any, required bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF && !required {
			return nil
		}
		return ErrBadRequest.WithContext("path", r.URL.Path).Wrap(err)
	}
	return nil
}
