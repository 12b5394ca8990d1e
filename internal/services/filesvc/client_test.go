package filesvc_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"permavid/internal/services"
	"permavid/internal/services/filesvc"
)

func writeMedia(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}

func TestUploadReturnsResult(t *testing.T) {
	var gotKey, gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotKey = r.FormValue("key")
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		gotFilename = header.Filename
		fmt.Fprint(w, `{"status":200,"msg":"OK","result":{"file_code":"vc42","url":"https://files.vc/d/vc42"}}`)
	}))
	defer server.Close()

	client := filesvc.New(server.URL, 5)
	result, err := client.Upload(context.Background(), "secret", writeMedia(t, "a*b.mp4"))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if result.URL != "https://files.vc/d/vc42" || result.FileCode != "vc42" {
		t.Fatalf("unexpected result %+v", result)
	}
	if gotKey != "secret" {
		t.Fatalf("unexpected key field %q", gotKey)
	}
	if gotFilename != "a_b.mp4" {
		t.Fatalf("expected sanitized filename, got %q", gotFilename)
	}
}

func TestUploadAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":403,"msg":"Invalid API key"}`)
	}))
	defer server.Close()

	_, err := filesvc.New(server.URL, 5).Upload(context.Background(), "bad", writeMedia(t, "c.mp4"))
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestUploadMissingResultErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":200,"msg":"OK"}`)
	}))
	defer server.Close()

	_, err := filesvc.New(server.URL, 5).Upload(context.Background(), "k", writeMedia(t, "c.mp4"))
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestUploadMissingFileFailsFast(t *testing.T) {
	_, err := filesvc.New("http://unused.invalid", 5).Upload(context.Background(), "k", filepath.Join(t.TempDir(), "absent.mp4"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUploadConnectionFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := filesvc.New(server.URL, 5).Upload(context.Background(), "k", writeMedia(t, "c.mp4"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
