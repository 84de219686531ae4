package deepseek

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelforge/internal/plan"
)

func TestDraftStoryboardCleansFencedResponse(t *testing.T) {
	t.Parallel()
	content := "```json\n[{\"id\":1,\"duration_sec\":5}]\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		escaped := strings.ReplaceAll(strings.ReplaceAll(content, `"`, `\"`), "\n", `\n`)
		w.Write([]byte(`{"choices":[{"message":{"content":"` + escaped + `"}}]}`))
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	raw, err := client.DraftStoryboard(context.Background(), DraftRequest{
		Prompt: "p", Description: "d", TargetDurationSec: 5, SegmentCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if raw != `[{"id":1,"duration_sec":5}]` {
		t.Fatalf("raw = %q", raw)
	}
}

func TestDraftStoryboardSurfacesAPIError(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"insufficient balance"}}`))
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL))
	_, err := client.DraftStoryboard(context.Background(), DraftRequest{Description: "d"})
	if err == nil || !strings.Contains(err.Error(), "insufficient balance") {
		t.Fatalf("err = %v", err)
	}
}

func TestDraftStoryboardIncludesFeedback(t *testing.T) {
	t.Parallel()
	prompt := buildUserPrompt(DraftRequest{
		Prompt:            "p",
		Description:       "d",
		TargetDurationSec: 20,
		SegmentCount:      3,
		Feedback:          []string{"segment 2 anchor incomplete"},
	})
	if !strings.Contains(prompt, "segment 2 anchor incomplete") {
		t.Fatalf("feedback missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "exactly 3 segments") {
		t.Fatalf("segment budget missing from prompt:\n%s", prompt)
	}
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		in   string
		want string
	}{
		"bare array":    {`[1,2]`, `[1,2]`},
		"fenced":        {"```json\n[1,2]\n```", `[1,2]`},
		"prose wrapped": {`Here you go: [1,2] enjoy`, `[1,2]`},
		"object root":   {`note {"a":1} end`, `{"a":1}`},
		"array wins":    {`{"pre":1} [2,3]`, `[2,3]`},
	}
	for name, tc := range cases {
		if got := CleanJSON(tc.in); got != tc.want {
			t.Errorf("%s: CleanJSON(%q) = %q, want %q", name, tc.in, got, tc.want)
		}
	}
}

func TestMockStoryboardSurvivesValidation(t *testing.T) {
	t.Parallel()
	raw, err := NewMock().DraftStoryboard(context.Background(), DraftRequest{
		Prompt:            "a cat sails the sky",
		Description:       "calico cat",
		TargetDurationSec: 24,
		SegmentCount:      3,
		MaxSegmentSec:     8,
	})
	if err != nil {
		t.Fatal(err)
	}
	segments, err := plan.ParseStoryboard([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	problems := plan.Validate(segments, plan.Limits{MaxSegmentSec: 8, ExpectedCount: 3})
	if len(problems) != 0 {
		t.Fatalf("mock storyboard invalid: %v", problems)
	}
}
