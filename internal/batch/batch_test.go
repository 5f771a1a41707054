package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fpang/hedra-batch/internal/config"
	"github.com/fpang/hedra-batch/internal/hedra"
)

// fakeHedra is an in-process stand-in for the Hedra API. It records uploads
// and create requests and serves every video as immediately completed.
type fakeHedra struct {
	mu           sync.Mutex
	uploads      []string            // uploaded filenames, in order
	creates      []map[string]string // create_video request bodies, in order
	failCreateOn int                 // 1-based index of the create call to reject, 0 = never
}

func (f *fakeHedra) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/assets":
			_, hdr, err := r.FormFile("file")
			if err != nil {
				t.Errorf("asset upload without multipart file field: %v", err)
				http.Error(w, "bad upload", http.StatusBadRequest)
				return
			}
			f.uploads = append(f.uploads, hdr.Filename)
			json.NewEncoder(w).Encode(map[string]string{
				"asset_id": fmt.Sprintf("asset-%d", len(f.uploads)),
			})

		case r.Method == http.MethodPost && r.URL.Path == "/videos":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			f.creates = append(f.creates, body)
			if f.failCreateOn == len(f.creates) {
				http.Error(w, "generation rejected", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"video_id": fmt.Sprintf("vid-%d", len(f.creates)),
			})

		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/download"):
			videoID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/videos/"), "/download")
			w.Write([]byte("video bytes for " + videoID))

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/videos/"):
			json.NewEncoder(w).Encode(map[string]string{"status": "completed"})

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func (f *fakeHedra) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads) + len(f.creates)
}

// newTestRunner wires a Runner to the fake server, logging into logBuf.
func newTestRunner(t *testing.T, server *httptest.Server, logBuf *bytes.Buffer) *Runner {
	t.Helper()

	cfg := config.Default()
	cfg.API.BaseURL = server.URL
	cfg.API.PollInterval = 1
	cfg.API.WaitTimeout = 30

	logger := zerolog.New(logBuf)
	client, err := hedra.NewClient("test-key", cfg, logger)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return NewRunner(client, cfg, logger)
}

// writeInput populates a temp input folder and returns its path.
func writeInput(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("content of "+name), 0o644); err != nil {
			t.Fatalf("write input file: %v", err)
		}
	}
	return dir
}

func TestRunEndToEnd(t *testing.T) {
	fake := &fakeHedra{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	input := writeInput(t, "face.png", "line1.wav", "line2.wav")
	output := filepath.Join(t.TempDir(), "videos")
	var logBuf bytes.Buffer
	runner := newTestRunner(t, server, &logBuf)

	results, err := runner.Run(context.Background(), input, output, "talking head")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Image uploaded exactly once, before the audio files, audio in name order.
	wantUploads := []string{"face.png", "line1.wav", "line2.wav"}
	if len(fake.uploads) != len(wantUploads) {
		t.Fatalf("expected uploads %v, got %v", wantUploads, fake.uploads)
	}
	for i, want := range wantUploads {
		if fake.uploads[i] != want {
			t.Errorf("upload %d: expected %s, got %s", i, want, fake.uploads[i])
		}
	}

	if len(fake.creates) != 2 {
		t.Fatalf("expected 2 create calls, got %d", len(fake.creates))
	}
	for _, body := range fake.creates {
		if body["image_id"] != "asset-1" {
			t.Errorf("create should reuse the shared image asset, got %v", body)
		}
		if body["prompt"] != "talking head" {
			t.Errorf("unexpected prompt: %v", body)
		}
	}

	for i, name := range []string{"line1.mp4", "line2.mp4"} {
		path := filepath.Join(output, name)
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("output %s not written: %v", name, err)
		}
		want := fmt.Sprintf("video bytes for vid-%d", i+1)
		if string(got) != want {
			t.Errorf("output %s: expected %q, got %q", name, want, got)
		}
		if !strings.Contains(logBuf.String(), "Downloaded video to: "+path) {
			t.Errorf("log should record download of %s", path)
		}
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Status != hedra.StatusCompleted {
			t.Errorf("result %s: expected completed, got %s", res.Audio, res.Status)
		}
	}
}

func TestRunNoImageFailsBeforeAnyRequest(t *testing.T) {
	fake := &fakeHedra{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	input := writeInput(t, "line1.wav")
	var logBuf bytes.Buffer
	runner := newTestRunner(t, server, &logBuf)

	_, err := runner.Run(context.Background(), input, input, "p")
	if err == nil || !strings.Contains(err.Error(), "no image") {
		t.Fatalf("expected no-image error, got: %v", err)
	}
	if n := fake.requestCount(); n != 0 {
		t.Errorf("expected 0 requests before discovery failure, got %d", n)
	}
}

func TestRunMultipleImagesFailsBeforeAnyRequest(t *testing.T) {
	fake := &fakeHedra{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	input := writeInput(t, "a.png", "b.png", "line1.wav")
	var logBuf bytes.Buffer
	runner := newTestRunner(t, server, &logBuf)

	_, err := runner.Run(context.Background(), input, input, "p")
	if err == nil || !strings.Contains(err.Error(), "multiple images") {
		t.Fatalf("expected multiple-images error, got: %v", err)
	}
	if n := fake.requestCount(); n != 0 {
		t.Errorf("expected 0 requests before discovery failure, got %d", n)
	}
}

func TestRunNoAudioFailsAfterImageUpload(t *testing.T) {
	fake := &fakeHedra{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	input := writeInput(t, "face.png")
	var logBuf bytes.Buffer
	runner := newTestRunner(t, server, &logBuf)

	_, err := runner.Run(context.Background(), input, input, "p")
	if err == nil || !strings.Contains(err.Error(), "no audio files") {
		t.Fatalf("expected no-audio error, got: %v", err)
	}
	if len(fake.uploads) != 1 {
		t.Errorf("expected exactly the image upload, got %v", fake.uploads)
	}
	if len(fake.creates) != 0 {
		t.Errorf("no jobs should be created without audio, got %d", len(fake.creates))
	}
}

func TestRunMissingInputFolder(t *testing.T) {
	fake := &fakeHedra{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	var logBuf bytes.Buffer
	runner := newTestRunner(t, server, &logBuf)

	_, err := runner.Run(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir(), "p")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing-folder error, got: %v", err)
	}
	if n := fake.requestCount(); n != 0 {
		t.Errorf("expected 0 requests, got %d", n)
	}
}

func TestRunAbortsOnMidBatchFailure(t *testing.T) {
	fake := &fakeHedra{failCreateOn: 2}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	input := writeInput(t, "face.png", "line1.wav", "line2.wav", "line3.wav")
	output := filepath.Join(t.TempDir(), "videos")
	var logBuf bytes.Buffer
	runner := newTestRunner(t, server, &logBuf)

	results, err := runner.Run(context.Background(), input, output, "p")
	if err == nil {
		t.Fatal("expected run to fail")
	}

	// First file finished, second failed, third never started.
	if _, statErr := os.Stat(filepath.Join(output, "line1.mp4")); statErr != nil {
		t.Error("first output should exist despite the later failure")
	}
	if _, statErr := os.Stat(filepath.Join(output, "line2.mp4")); statErr == nil {
		t.Error("failed file must not produce an output")
	}
	if len(fake.creates) != 2 {
		t.Errorf("processing should stop at the failed file, got %d creates", len(fake.creates))
	}
	for _, name := range fake.uploads {
		if name == "line3.wav" {
			t.Error("files after the failure must not be uploaded")
		}
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != hedra.StatusCompleted || results[1].Status != "failed" {
		t.Errorf("unexpected result statuses: %+v", results)
	}
	if !strings.Contains(logBuf.String(), "Error processing line2.wav") {
		t.Error("failure should be logged with the audio file name")
	}
}

func TestRunCreatesOutputFolder(t *testing.T) {
	fake := &fakeHedra{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	input := writeInput(t, "face.png", "line1.wav")
	output := filepath.Join(t.TempDir(), "deeply", "nested", "videos")
	var logBuf bytes.Buffer
	runner := newTestRunner(t, server, &logBuf)

	if _, err := runner.Run(context.Background(), input, output, "p"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(output, "line1.mp4")); err != nil {
		t.Errorf("output folder should be created with parents: %v", err)
	}
}

func TestFindImageFile(t *testing.T) {
	folder := writeInput(t, "face.png", "line1.wav")
	path, err := FindImageFile(folder, "*.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "face.png" {
		t.Errorf("expected face.png, got %s", path)
	}
}

func TestFindImageFileNone(t *testing.T) {
	folder := writeInput(t, "line1.wav")
	if _, err := FindImageFile(folder, "*.png"); err == nil {
		t.Fatal("expected error for empty folder")
	}
}

func TestFindImageFileMultiple(t *testing.T) {
	folder := writeInput(t, "a.png", "b.png")
	if _, err := FindImageFile(folder, "*.png"); err == nil {
		t.Fatal("expected error for ambiguous folder")
	}
}

func TestFindAudioFilesSortedNonRecursive(t *testing.T) {
	folder := writeInput(t, "b.wav", "a.wav", "c.txt")
	if err := os.MkdirAll(filepath.Join(folder, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "sub", "nested.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := FindAudioFiles(folder, "*.wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	if filepath.Base(files[0]) != "a.wav" || filepath.Base(files[1]) != "b.wav" {
		t.Errorf("expected sorted order [a.wav b.wav], got %v", files)
	}
}

func TestFindAudioFilesSkipsDirectories(t *testing.T) {
	folder := writeInput(t, "a.wav")
	if err := os.MkdirAll(filepath.Join(folder, "trap.wav"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := FindAudioFiles(folder, "*.wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "a.wav" {
		t.Errorf("directories matching the pattern must be ignored, got %v", files)
	}
}
