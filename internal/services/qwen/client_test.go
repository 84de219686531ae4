package qwen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pet.png")
	if err := os.WriteFile(path, []byte("not-a-real-png"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDescribeParsesResponse(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("authorization header = %q", got)
		}
		var req generationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "qwen-vl-plus" {
			t.Errorf("model = %q", req.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":{"choices":[{"message":{"content":[{"text":"a golden pup"}]}}]}}`))
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	description, err := client.Describe(context.Background(), DescribeRequest{
		Prompt:     "make it dreamy",
		ImagePaths: []string{writeTestImage(t)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if description != "a golden pup" {
		t.Fatalf("description = %q", description)
	}
}

func TestDescribeSurfacesAPIError(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"Throttling.RateQuota","message":"requests throttled"}`))
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL))
	_, err := client.Describe(context.Background(), DescribeRequest{ImagePaths: []string{writeTestImage(t)}})
	if err == nil || !strings.Contains(err.Error(), "Throttling.RateQuota") {
		t.Fatalf("err = %v", err)
	}
}

func TestDescribeRequiresKeyAndImages(t *testing.T) {
	t.Parallel()
	if _, err := NewClient("").Describe(context.Background(), DescribeRequest{ImagePaths: []string{"x"}}); err == nil {
		t.Fatal("missing key should error")
	}
	if _, err := NewClient("key").Describe(context.Background(), DescribeRequest{}); err == nil {
		t.Fatal("missing images should error")
	}
}

func TestMockIsDeterministic(t *testing.T) {
	t.Parallel()
	mock := NewMock()
	req := DescribeRequest{Prompt: "space adventure", ImagePaths: []string{"/a/one.png", "/b/two.png"}}
	first, err := mock.Describe(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := mock.Describe(context.Background(), req)
	if first != second {
		t.Fatal("mock output must be deterministic")
	}
	if !strings.Contains(first, "space adventure") || !strings.Contains(first, "one.png") {
		t.Fatalf("mock output missing request details: %s", first)
	}
}
