// Package httpapi exposes the assessment pipelines over multipart HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pronounce-go/internal/dataset"
	"pronounce-go/internal/logger"
	"pronounce-go/internal/processor"
	"pronounce-go/internal/types"
)

const (
	maxUpload = 20 << 20

	fieldAudio      = "audio"
	fieldReference  = "referenceText"
	fieldRecognized = "userRecognizedText"
	fieldProsody    = "userProsody"
)

// Engine is the subset of *processor.Engine the handlers use.
type Engine interface {
	Evaluate(ctx context.Context, req processor.Request) (types.Evaluation, error)
	Compare(ctx context.Context, req processor.Request) (types.Comparison, error)
	Assess(ctx context.Context, req processor.Request) (types.Assessment, error)
	Calibrate(ctx context.Context) ([]types.CalibrationRow, error)
}

type Handler struct {
	engine Engine
	// ready reports provider configuration problems; nil means always ready
	ready func() error
	log   *logger.Logger
}

func New(engine Engine, ready func() error, log *logger.Logger) *Handler {
	if ready == nil {
		ready = func() error { return nil }
	}
	return &Handler{engine: engine, ready: ready, log: log}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("POST /api/speech-evaluation", h.evaluate)
	mux.HandleFunc("POST /api/pronunciation-comparison", h.compare)
	mux.HandleFunc("POST /api/assess", h.assess)
	mux.HandleFunc("GET /api/calibrate", h.calibrate)
}

type errorBody struct {
	Error string `json:"error"`
}

type calibrationBody struct {
	Rows    []types.CalibrationRow     `json:"rows"`
	Summary dataset.CalibrationSummary `json:"summary"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.log.WithRequest(r).Debug("health check")
	fmt.Fprint(w, "ok")
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "speech-evaluation")
	req, ok := h.request(w, r, reqLog, true)
	if !ok {
		return
	}
	res, err := h.engine.Evaluate(r.Context(), req)
	h.respond(w, reqLog, res, err)
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "pronunciation-comparison")
	req, ok := h.request(w, r, reqLog, false)
	if !ok {
		return
	}
	res, err := h.engine.Compare(r.Context(), req)
	h.respond(w, reqLog, res, err)
}

func (h *Handler) assess(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "assess")
	req, ok := h.request(w, r, reqLog, true)
	if !ok {
		return
	}
	res, err := h.engine.Assess(r.Context(), req)
	h.respond(w, reqLog, res, err)
}

func (h *Handler) calibrate(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "calibrate")
	start := time.Now()
	rows, err := h.engine.Calibrate(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("calibration failed")
		writeJSON(w, reqLog, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	reqLog.WithFields(logrus.Fields{
		"phrases":     len(rows),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("calibration finished")
	writeJSON(w, reqLog, http.StatusOK, calibrationBody{Rows: rows, Summary: dataset.Summarize(rows)})
}

// request parses the multipart form. It writes the error response itself and
// reports whether the handler should continue. Unless alwaysRemote is
// set, a supplied recognized text skips the provider and its credential
// check.
func (h *Handler) request(w http.ResponseWriter, r *http.Request, reqLog *logrus.Entry, alwaysRemote bool) (processor.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		reqLog.WithError(err).Warn("invalid multipart form")
		writeJSON(w, reqLog, http.StatusBadRequest, errorBody{Error: "invalid form: " + err.Error()})
		return processor.Request{}, false
	}

	req := processor.Request{
		Reference:      r.FormValue(fieldReference),
		RecognizedText: r.FormValue(fieldRecognized),
	}
	if p := r.FormValue(fieldProsody); p != "" {
		req.Prosody = []byte(p)
	}
	if f, _, err := r.FormFile(fieldAudio); err == nil {
		req.Audio, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			reqLog.WithError(err).Warn("audio upload unreadable")
			writeJSON(w, reqLog, http.StatusBadRequest, errorBody{Error: "audio upload unreadable"})
			return processor.Request{}, false
		}
	}

	// input errors win over configuration errors
	switch {
	case len(req.Audio) == 0:
		writeJSON(w, reqLog, http.StatusBadRequest, errorBody{Error: processor.ErrMissingAudio.Error()})
		return processor.Request{}, false
	case strings.TrimSpace(req.Reference) == "":
		writeJSON(w, reqLog, http.StatusBadRequest, errorBody{Error: processor.ErrMissingReference.Error()})
		return processor.Request{}, false
	}
	if alwaysRemote || req.RecognizedText == "" {
		if err := h.ready(); err != nil {
			reqLog.WithError(err).Error("provider not configured")
			writeJSON(w, reqLog, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return processor.Request{}, false
		}
	}
	reqLog.WithFields(logrus.Fields{
		"audio_bytes": len(req.Audio),
		"reference":   req.Reference,
	}).Info("assessment request received")
	return req, true
}

func (h *Handler) respond(w http.ResponseWriter, reqLog *logrus.Entry, res any, err error) {
	switch {
	case err == nil:
		writeJSON(w, reqLog, http.StatusOK, res)
	case errors.Is(err, processor.ErrMissingAudio), errors.Is(err, processor.ErrMissingReference):
		writeJSON(w, reqLog, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reqLog.WithError(err).Warn("request abandoned")
		writeJSON(w, reqLog, http.StatusServiceUnavailable, errorBody{Error: "request cancelled"})
	default:
		reqLog.WithError(err).Error("assessment failed")
		writeJSON(w, reqLog, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, reqLog *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		reqLog.WithError(err).Error("failed to write response")
	}
}
