package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/dashboard"
	"github.com/sells-group/solvmetria/internal/dataset"
	"github.com/sells-group/solvmetria/internal/diagnosis"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/scorer"
	"github.com/sells-group/solvmetria/internal/session"
)

const maxBodyBytes = 1 << 16

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case eris.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case eris.Is(err, session.ErrInvalidLevel),
		eris.Is(err, session.ErrOutOfBounds),
		eris.Is(err, scorer.ErrInvalidParams),
		eris.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = eris.New("server: bad request")

func badRequest(msg string) error {
	return eris.Wrap(errBadRequest, msg)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}

// loadDataset returns the current dataset. A load failure yields an empty
// dataset so every view short-circuits to "no data"; the message is
// returned for display.
func (s *Server) loadDataset(r *http.Request) (*dataset.Dataset, string) {
	ds, err := s.deps.Datasets.Get(r.Context())
	if err != nil {
		zap.L().Warn("server: dataset unavailable", zap.Error(err))
		if ds == nil {
			ds = dataset.Empty("")
		}
		return ds, err.Error()
	}
	return ds, ""
}

// sampleSet resolves the region and municipality query parameters.
func (s *Server) sampleSet(r *http.Request) (model.SampleSet, error) {
	region := strings.TrimSpace(r.URL.Query().Get("region"))
	muni := strings.TrimSpace(r.URL.Query().Get("municipality"))
	if region == "" || muni == "" {
		return model.SampleSet{}, badRequest("region and municipality are required")
	}
	ds, _ := s.loadDataset(r)
	return ds.Filter(region, muni), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Source    string    `json:"source"`
	Samples   int       `json:"samples"`
	Regions   int       `json:"regions"`
	LoadedAt  time.Time `json:"loaded_at"`
	LoadError string    `json:"load_error,omitempty"`
	Sessions  int       `json:"sessions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ds, loadErr := s.loadDataset(r)
	writeJSON(w, http.StatusOK, statusResponse{
		Source:    ds.Source(),
		Samples:   ds.Len(),
		Regions:   len(ds.Regions()),
		LoadedAt:  ds.LoadedAt(),
		LoadError: loadErr,
		Sessions:  s.deps.Sessions.Len(),
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Checker == nil || s.deps.Checker.Latest() == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "quality overview not collected yet"})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Checker.Latest())
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	ds, _ := s.loadDataset(r)
	writeJSON(w, http.StatusOK, map[string]any{"regions": ds.Regions()})
}

func (s *Server) handleMunicipalities(w http.ResponseWriter, r *http.Request) {
	region := chi.URLParam(r, "region")
	ds, _ := s.loadDataset(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"region":         region,
		"municipalities": ds.Municipalities(region),
	})
}

type diagnosisResponse struct {
	model.Location
	diagnosis.Result
	Messages []string `json:"messages"`
}

func (s *Server) handleDiagnosis(w http.ResponseWriter, r *http.Request) {
	set, err := s.sampleSet(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res := diagnosis.Diagnose(set, s.deps.Sessions.Defaults())
	writeJSON(w, http.StatusOK, diagnosisResponse{Location: set.Location, Result: res, Messages: res.Messages()})
}

type qualityResponse struct {
	model.Location
	scorer.Result
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	set, err := s.sampleSet(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qualityResponse{Location: set.Location, Result: scorer.Score(set, s.deps.Sessions.Defaults())})
}

type levelRequest struct {
	Level session.Level `json:"level"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.deps.Sessions.Create(req.Level)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.deps.Sessions.SetLevel(chi.URLParam(r, "id"), req.Level)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var adj session.Adjustment
	if err := decode(r, &adj); err != nil {
		writeError(w, err)
		return
	}
	if adj.Empty() {
		writeError(w, badRequest("no adjustable parameter given"))
		return
	}
	sess, err := s.deps.Sessions.Adjust(chi.URLParam(r, "id"), adj)
	if err != nil {
		writeError(w, err)
		return
	}
	s.deps.Metrics.ObserveAdjustment()
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Reset(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := scorer.MarshalReport(sess.Params)
	if err != nil {
		writeError(w, err)
		return
	}

	name := scorer.ReportFilename(strings.TrimSpace(r.URL.Query().Get("municipality")))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		zap.L().Warn("server: write report", zap.Error(err))
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	set, err := s.sampleSet(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := dashboard.Build(sess, set, s.deps.Sessions.Defaults())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
