package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"permavid/internal/api"
)

func envelopeHandler(t *testing.T, wantMethod, wantPath string, data any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != wantMethod || r.URL.Path != wantPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal data: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.Envelope{Success: true, Data: raw})
	}
}

func TestClientAddSendsBearerToken(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var payload api.AddRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		gotBody = payload.URL
		raw, _ := json.Marshal(api.QueueItemResponse{Item: api.QueueItem{ID: "abc", URL: payload.URL, Status: "queued"}})
		_ = json.NewEncoder(w).Encode(api.Envelope{Success: true, Message: "Item added to queue.", Data: raw})
	}))
	defer server.Close()

	client, err := api.NewClient(server.URL, "secret-token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	item, err := client.Add(context.Background(), "https://example.com/watch?v=abc123def")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if item.ID != "abc" || item.Status != "queued" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotBody != "https://example.com/watch?v=abc123def" {
		t.Fatalf("unexpected body url: %q", gotBody)
	}
}

func TestClientListBuildsStatusQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		statuses := r.URL.Query()["status"]
		if len(statuses) != 2 || statuses[0] != "queued" || statuses[1] != "failed" {
			t.Errorf("unexpected status filter: %v", statuses)
		}
		raw, _ := json.Marshal(api.QueueListResponse{Items: []api.QueueItem{{ID: "a"}, {ID: "b"}}})
		_ = json.NewEncoder(w).Encode(api.Envelope{Success: true, Data: raw})
	}))
	defer server.Close()

	client, err := api.NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	items, err := client.List(context.Background(), "queued", "failed")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("unexpected item count: %d", len(items))
	}
}

func TestClientSurfacesEnvelopeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.Envelope{Success: false, Message: "Cancel failed: Item abc not found."})
	}))
	defer server.Close()

	client, err := api.NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = client.Cancel(context.Background(), "abc")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status code: %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "not found") {
		t.Fatalf("unexpected message: %q", apiErr.Message)
	}
	if api.IsDaemonUnavailable(err) {
		t.Fatal("rejected request must not read as daemon-down")
	}
}

func TestClientDetectsDaemonDown(t *testing.T) {
	server := httptest.NewServer(envelopeHandler(t, http.MethodGet, "/api/health", api.HealthResponse{Status: "ok"}))
	addr := server.URL
	server.Close()

	client, err := api.NewClient(addr, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Health(context.Background())
	if err == nil {
		t.Fatal("expected connection failure")
	}
	if !api.IsDaemonUnavailable(err) {
		t.Fatalf("connection failure not classified as daemon-down: %v", err)
	}
}

func TestClientSettingsRoundTrip(t *testing.T) {
	stored := api.Settings{FilemoonAPIKey: "fm-key", AutoUpload: true, UploadTarget: "filemoon"}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			raw, _ := json.Marshal(stored)
			_ = json.NewEncoder(w).Encode(api.Envelope{Success: true, Data: raw})
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&stored); err != nil {
				t.Errorf("decode settings: %v", err)
			}
			raw, _ := json.Marshal(stored)
			_ = json.NewEncoder(w).Encode(api.Envelope{Success: true, Message: "Settings saved successfully.", Data: raw})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := api.NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got, err := client.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.FilemoonAPIKey != "fm-key" {
		t.Fatalf("unexpected settings: %+v", got)
	}

	got.UploadTarget = "both"
	saved, err := client.SaveSettings(context.Background(), got)
	if err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if saved.UploadTarget != "both" {
		t.Fatalf("unexpected saved settings: %+v", saved)
	}
}
