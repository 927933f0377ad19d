package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/visiona/studio-capture/internal/session"
	"github.com/visiona/studio-capture/internal/types"
)

// Controller is the session control surface the server exposes over
// HTTP. Implemented by studio.Studio.
type Controller interface {
	Phase() types.Phase
	Snapshot() *types.CompositeQualitySnapshot
	Clip() *session.Clip
	SelectDevices(videoID, audioID string) error
	StartQualityCheck(ctx context.Context) error
	StartRecording(ctx context.Context) error
	SkipChecksAndRecord(ctx context.Context) error
	StopRecording() (*session.Clip, error)
	Reset()
	Save(ctx context.Context) (string, error)
	LinkToProfile(ctx context.Context, candidateID string) error
}

// AttachController wires session control endpoints onto the server's
// mux. Must be called before Start.
func (s *Server) AttachController(ctrl Controller) {
	mux := s.http.Handler.(*http.ServeMux)

	mux.HandleFunc("/session/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"phase":    ctrl.Phase(),
			"snapshot": ctrl.Snapshot(),
			"clip":     ctrl.Clip(),
		})
	})

	mux.HandleFunc("/session/devices", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		var body struct {
			VideoDeviceID string `json:"video_device_id"`
			AudioDeviceID string `json:"audio_device_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := ctrl.SelectDevices(body.VideoDeviceID, body.AudioDeviceID); err != nil {
			writeControlError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	mux.HandleFunc("/session/quality-check", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		if err := ctrl.StartQualityCheck(r.Context()); err != nil {
			writeControlError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"phase": ctrl.Phase()})
	})

	mux.HandleFunc("/session/record", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		var err error
		if r.URL.Query().Get("skip_checks") == "true" {
			err = ctrl.SkipChecksAndRecord(r.Context())
		} else {
			err = ctrl.StartRecording(r.Context())
		}
		if err != nil {
			writeControlError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"phase": ctrl.Phase()})
	})

	mux.HandleFunc("/session/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		clip, err := ctrl.StopRecording()
		if err != nil {
			writeControlError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"phase": ctrl.Phase(), "clip": clip})
	})

	mux.HandleFunc("/session/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		ctrl.Reset()
		writeJSON(w, http.StatusOK, map[string]any{"phase": ctrl.Phase()})
	})

	mux.HandleFunc("/session/save", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		var body struct {
			CandidateID string `json:"candidate_id"`
		}
		// Body is optional; an empty request saves without linking.
		_ = json.NewDecoder(r.Body).Decode(&body)

		id, err := ctrl.Save(r.Context())
		if err != nil {
			writeControlError(w, err)
			return
		}
		if body.CandidateID != "" {
			if err := ctrl.LinkToProfile(r.Context(), body.CandidateID); err != nil {
				writeControlError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id})
	})
}

// writeControlError maps domain errors onto HTTP statuses.
func writeControlError(w http.ResponseWriter, err error) {
	var notReady *types.NotReadyError
	switch {
	case errors.As(err, &notReady):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     notReady.Error(),
			"score":     notReady.Score,
			"threshold": notReady.Threshold,
		})
	case errors.Is(err, types.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, types.ErrDeviceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, types.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
