package ghost_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/ghost"
	"github.com/tiqology/superapp-go/metrics"
)

func TestTimeoutMessage(t *testing.T) {
	if got, want := ghost.TimeoutMessage(30*time.Second), "Evaluation timeout: Request took longer than 30 seconds"; got != want {
		t.Errorf("TimeoutMessage(30s) = %q, want %q", got, want)
	}
	if got := ghost.TimeoutMessage(50 * time.Millisecond); !strings.Contains(got, "50ms") {
		t.Errorf("TimeoutMessage(50ms) = %q", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	c := ghost.New("")
	if c.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", c.Timeout())
	}
}

func TestEvaluate(t *testing.T) {
	var got tiqology.EvaluationRequest
	var key, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		key = r.Header.Get(ghost.APIKeyHeader)
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(tiqology.Evaluation{
			Score: 87, Feedback: "valid", Result: "yes", Timestamp: "2026-01-01T00:00:00Z", Model: got.Model,
		})
	}))
	defer srv.Close()

	c := ghost.New(srv.URL, ghost.WithAPIKey("k-1"))
	res, err := c.Evaluate(context.Background(), tiqology.EvaluationRequest{
		Prompt:  "Is this email valid: user@example.com?",
		Context: map[string]any{"source": "TiQology", "module": "GhostLab"},
	})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if key != "k-1" {
		t.Errorf("x-api-key = %q, want %q", key, "k-1")
	}
	if auth != "" {
		t.Errorf("Authorization = %q, want empty", auth)
	}
	if got.Model != tiqology.ModelChat {
		t.Errorf("model = %q, want %q", got.Model, tiqology.ModelChat)
	}
	if got.Context["module"] != "GhostLab" {
		t.Errorf("context = %v", got.Context)
	}
	if res.Score != 87 || res.Feedback != "valid" {
		t.Errorf("response = %+v", res)
	}
}

func TestEvaluate_InvalidInput(t *testing.T) {
	c := ghost.New("http://127.0.0.1:1")
	tests := []tiqology.EvaluationRequest{
		{Prompt: ""},
		{Prompt: "x", Model: "gpt-4"},
	}
	for _, req := range tests {
		if _, err := c.Evaluate(context.Background(), req); !errors.Is(err, tiqology.ErrValidation) {
			t.Errorf("Evaluate(%+v) error = %v, want Validation", req, err)
		}
	}
}

func TestEvaluate_ReasoningModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tiqology.EvaluationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(tiqology.Evaluation{Score: 50, Model: req.Model})
	}))
	defer srv.Close()

	res, err := ghost.New(srv.URL).Evaluate(context.Background(), tiqology.EvaluationRequest{Prompt: "p", Model: tiqology.ModelChatReasoning})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if res.Model != tiqology.ModelChatReasoning {
		t.Errorf("Model = %q, want %q", res.Model, tiqology.ModelChatReasoning)
	}
}

func TestEvaluate_DeadlineIsDistinctTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	reg := prometheus.NewRegistry()
	c := ghost.New(srv.URL,
		ghost.WithTimeout(50*time.Millisecond),
		ghost.WithMetrics(metrics.NewWithRegisterer(reg)),
	)

	start := time.Now()
	_, err := c.Evaluate(context.Background(), tiqology.EvaluationRequest{Prompt: "slow"})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Evaluate() took %v, want it bounded by the deadline", elapsed)
	}

	if !errors.Is(err, tiqology.ErrTimeout) {
		t.Fatalf("Evaluate() error = %v, want Timeout", err)
	}
	if errors.Is(err, tiqology.ErrNetwork) {
		t.Error("timeout must not be reported as a network error")
	}
	if err.Error() != ghost.TimeoutMessage(50*time.Millisecond) {
		t.Errorf("Error() = %q, want %q", err.Error(), ghost.TimeoutMessage(50*time.Millisecond))
	}
	if err.Error() == ghost.MsgNetwork || err.Error() == tiqology.MsgTimeout {
		t.Errorf("Error() = %q, want the evaluation timeout message", err.Error())
	}

	expected := `
# HELP tiqology_evaluation_timeouts_total Evaluation calls abandoned at their deadline
# TYPE tiqology_evaluation_timeouts_total counter
tiqology_evaluation_timeouts_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "tiqology_evaluation_timeouts_total"); err != nil {
		t.Errorf("metrics mismatch: %v", err)
	}
}

func TestEvaluate_CallerCancelIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := ghost.New(srv.URL, ghost.WithTimeout(5*time.Second)).Evaluate(ctx, tiqology.EvaluationRequest{Prompt: "p"})
	if errors.Is(err, tiqology.ErrTimeout) {
		t.Errorf("Evaluate() error = %v, want a non-timeout error on caller cancel", err)
	}
	if err == nil {
		t.Fatal("Evaluate() should fail when the caller cancels")
	}
}

func TestEvaluate_NetworkMessage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := ghost.New(url).Evaluate(context.Background(), tiqology.EvaluationRequest{Prompt: "p"})
	if !errors.Is(err, tiqology.ErrNetwork) {
		t.Fatalf("Evaluate() error = %v, want Network", err)
	}
	if err.Error() != ghost.MsgNetwork {
		t.Errorf("Error() = %q, want %q", err.Error(), ghost.MsgNetwork)
	}
}

func TestEvaluate_StructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized","message":"Invalid API key"}`))
	}))
	defer srv.Close()

	_, err := ghost.New(srv.URL).Evaluate(context.Background(), tiqology.EvaluationRequest{Prompt: "p"})
	if !errors.Is(err, tiqology.ErrAuth) {
		t.Fatalf("Evaluate() error = %v, want Auth", err)
	}
	if err.Error() != "Unauthorized" {
		t.Errorf("Error() = %q, want %q", err.Error(), "Unauthorized")
	}
}

func TestEvaluate_ScoreOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"score":140,"feedback":"?"}`))
	}))
	defer srv.Close()

	_, err := ghost.New(srv.URL).Evaluate(context.Background(), tiqology.EvaluationRequest{Prompt: "p"})
	if !errors.Is(err, tiqology.ErrInvalidResponse) {
		t.Fatalf("Evaluate() error = %v, want InvalidResponse", err)
	}
}

func TestBatchEvaluate(t *testing.T) {
	var order []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tiqology.EvaluationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		order = append(order, req.Prompt)
		if req.Prompt == "bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(tiqology.Evaluation{Score: 10, Result: req.Prompt})
	}))
	defer srv.Close()

	c := ghost.New(srv.URL)
	res, err := c.BatchEvaluate(context.Background(), []tiqology.EvaluationRequest{{Prompt: "a"}, {Prompt: "b"}})
	if err != nil {
		t.Fatalf("BatchEvaluate() error: %v", err)
	}
	if len(res) != 2 || res[0].Result != "a" || res[1].Result != "b" {
		t.Errorf("results = %+v", res)
	}

	order = nil
	res, err = c.BatchEvaluate(context.Background(), []tiqology.EvaluationRequest{{Prompt: "a"}, {Prompt: "bad"}, {Prompt: "c"}})
	if !errors.Is(err, tiqology.ErrServer) {
		t.Fatalf("BatchEvaluate() error = %v, want Server", err)
	}
	if len(res) != 1 {
		t.Errorf("partial results = %d, want 1", len(res))
	}
	if strings.Join(order, ",") != "a,bad" {
		t.Errorf("order = %v, want a,bad", order)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","service":"ghost-mode","version":"1.0.0"}`))
	}))
	defer srv.Close()

	h, err := ghost.New(srv.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if h.Status != "ok" || h.Service != "ghost-mode" || h.Version != "1.0.0" {
		t.Errorf("Health() = %+v", h)
	}
}
