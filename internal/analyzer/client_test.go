package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/denisplykin/sales-coach-service/internal/callplan"
)

func TestStripJSONFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json",
			input:    `{"completed": true}`,
			expected: `{"completed": true}`,
		},
		{
			name:     "json fence",
			input:    "```json\n{\"completed\": true}\n```",
			expected: `{"completed": true}`,
		},
		{
			name:     "bare fence",
			input:    "```\n{\"completed\": false}\n```",
			expected: `{"completed": false}`,
		},
		{
			name:     "fence with leading prose",
			input:    "Here is the answer:\n```json\n{\"confidence\": 0.9}\n```",
			expected: `{"confidence": 0.9}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n{\"valid\": true}\n  ",
			expected: `{"valid": true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripJSONFences(tt.input)
			if got != tt.expected {
				t.Errorf("stripJSONFences() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST request, got %s", r.Method)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected single user message, got %+v", req.Messages)
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestCheckItemParsesVerdict(t *testing.T) {
	server := completionServer(t, "```json\n{\"completed\": true, \"confidence\": 0.92, \"evidence\": \"selamat pagi pak Budi\", \"reasoning\": \"teacher greeted the client\"}\n```")
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	item := callplan.ChecklistItem{ID: "greet_client", Kind: callplan.KindSay, Content: "Greet the client warmly"}
	result, err := client.CheckItem(context.Background(), item, "selamat pagi pak Budi, apa kabar?")
	if err != nil {
		t.Fatalf("CheckItem failed: %v", err)
	}

	if !result.Completed {
		t.Error("expected completed=true")
	}
	if result.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", result.Confidence)
	}
	if result.Evidence != "selamat pagi pak Budi" {
		t.Errorf("unexpected evidence: %q", result.Evidence)
	}
}

func TestValidateEvidenceShortCircuitsShortQuotes(t *testing.T) {
	// No server: short evidence must be rejected without a request.
	client, err := NewClient(Config{Endpoint: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	result, err := client.ValidateEvidence(context.Background(), "greeted the client", "hi")
	if err != nil {
		t.Fatalf("ValidateEvidence failed: %v", err)
	}
	if result.Valid {
		t.Error("expected short evidence to be invalid")
	}
}

func TestDetectStageRejectsUnknownStageID(t *testing.T) {
	server := completionServer(t, `{"stage_id": "nonexistent", "confidence": 0.9, "reasoning": "x"}`)
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.DetectStage(context.Background(), "some transcript", callplan.DefaultStructure(), 60)
	if err == nil {
		t.Fatal("expected error for unknown stage id")
	}
}

func TestDetectStageAcceptsKnownStage(t *testing.T) {
	server := completionServer(t, `{"stage_id": "stage_2_discovery", "confidence": 0.85, "reasoning": "teacher asking about the child"}`)
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	result, err := client.DetectStage(context.Background(), "berapa umur anaknya?", callplan.DefaultStructure(), 180)
	if err != nil {
		t.Fatalf("DetectStage failed: %v", err)
	}
	if result.StageID != "stage_2_discovery" {
		t.Errorf("expected stage_2_discovery, got %q", result.StageID)
	}
}

func TestExtractFieldsSkipsKnownValues(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		capturedPrompt = req.Messages[0].Content

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"child_age": {"value": "9", "evidence": "anak saya umur 9 tahun", "confidence": 0.95}}`}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	known := map[string]string{"child_name": "Andi"}
	result, err := client.ExtractFields(context.Background(), "anak saya umur 9 tahun", known, callplan.DefaultClientCardFields())
	if err != nil {
		t.Fatalf("ExtractFields failed: %v", err)
	}

	if got := result["child_age"].Value; got != "9" {
		t.Errorf("expected child_age=9, got %q", got)
	}
	if !strings.Contains(capturedPrompt, "child_name: Andi") {
		t.Error("expected known value to appear in the do-not-re-extract section")
	}
	if strings.Contains(capturedPrompt, "- child_name: Child's Name") {
		t.Error("known field should not be listed for extraction")
	}
}

func TestClassifierHTTPErrorCountsAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	item := callplan.ChecklistItem{ID: "greet_client", Kind: callplan.KindSay, Content: "Greet the client"}
	if _, err := client.CheckItem(context.Background(), item, "hello"); err == nil {
		t.Fatal("expected error on HTTP 503")
	}

	stats := client.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("expected 1 failed request, got %d", stats.FailedRequests)
	}
	if stats.TotalRequests != 1 {
		t.Errorf("expected 1 total request, got %d", stats.TotalRequests)
	}
}
