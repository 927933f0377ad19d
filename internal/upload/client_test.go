package upload_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/visiona/studio-capture/internal/types"
	"github.com/visiona/studio-capture/internal/upload"
)

func spoolClip(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.webm")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing clip fixture: %v", err)
	}
	return path
}

// TestSavePayloadShape validates the multipart request the
// collaborator receives: the clip file, the metadata fields, the
// quality breakdown JSON and the telemetry attachment.
func TestSavePayloadShape(t *testing.T) {
	var gotFields map[string]string
	var gotClip, gotTelemetry []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload/" {
			t.Errorf("path = %s, want /api/upload/", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parsing multipart: %v", err)
		}

		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}

		clipFile, _, err := r.FormFile("video_file")
		if err != nil {
			t.Fatalf("video_file part missing: %v", err)
		}
		gotClip, _ = io.ReadAll(clipFile)

		telFile, _, err := r.FormFile("telemetry")
		if err != nil {
			t.Fatalf("telemetry part missing: %v", err)
		}
		gotTelemetry, _ = io.ReadAll(telFile)

		json.NewEncoder(w).Encode(upload.SaveResponse{ID: "vid-123"})
	}))
	defer srv.Close()

	c := upload.NewClient(srv.URL+"/api", 5*time.Second)
	saved, err := c.Save(context.Background(), upload.SaveRequest{
		ClipPath:        spoolClip(t, "webm-bytes"),
		DurationSeconds: 42,
		FileSizeBytes:   10,
		Format:          "webm",
		OverallScore:    86,
		Checks: types.CompositeQualitySnapshot{
			OverallScore: 86,
			Ready:        true,
		},
		Telemetry: []byte{0x00, 0x00, 0x00, 0x01, 0xc0},
	})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if saved.ID != "vid-123" {
		t.Errorf("saved ID = %q, want vid-123", saved.ID)
	}

	if string(gotClip) != "webm-bytes" {
		t.Errorf("clip bytes = %q", gotClip)
	}
	if gotFields["duration"] != "42" || gotFields["file_size"] != "10" ||
		gotFields["format"] != "webm" || gotFields["overall_quality_score"] != "86" {
		t.Errorf("metadata fields = %v", gotFields)
	}

	var checks types.CompositeQualitySnapshot
	if err := json.Unmarshal([]byte(gotFields["quality_checks"]), &checks); err != nil {
		t.Fatalf("quality_checks is not JSON: %v", err)
	}
	if checks.OverallScore != 86 || !checks.Ready {
		t.Errorf("quality_checks = %+v", checks)
	}
	if len(gotTelemetry) != 5 {
		t.Errorf("telemetry attachment = %d bytes, want 5", len(gotTelemetry))
	}

	t.Log("✅ multipart payload carries clip, metadata, checks JSON and telemetry")
}

func TestSaveFailureWrapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := upload.NewClient(srv.URL, 5*time.Second)
	_, err := c.Save(context.Background(), upload.SaveRequest{
		ClipPath: spoolClip(t, "x"),
	})
	if !errors.Is(err, types.ErrUploadFailed) {
		t.Errorf("error = %v, want ErrUploadFailed", err)
	}

	// Unreachable collaborator wraps the same sentinel.
	dead := upload.NewClient("http://127.0.0.1:1", time.Second)
	_, err = dead.Save(context.Background(), upload.SaveRequest{
		ClipPath: spoolClip(t, "x"),
	})
	if !errors.Is(err, types.ErrUploadFailed) {
		t.Errorf("unreachable error = %v, want ErrUploadFailed", err)
	}

	t.Log("✅ save failures wrap the upload sentinel for retry handling")
}

func TestLinkToProfile(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := upload.NewClient(srv.URL, 5*time.Second)
	if err := c.LinkToProfile(context.Background(), "vid-123", "cand-9"); err != nil {
		t.Fatalf("LinkToProfile() failed: %v", err)
	}

	if gotPath != "/videos/vid-123/link_to_profile/" {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody["candidate_id"] != "cand-9" {
		t.Errorf("body = %v", gotBody)
	}
	t.Log("✅ link call hits the per-clip endpoint with the candidate id")
}
