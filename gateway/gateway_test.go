package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/gateway"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type payload struct {
	Name string `json:"name"`
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestDo_HeadersWithAuth(t *testing.T) {
	var got http.Header
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_ = json.NewEncoder(w).Encode(payload{Name: "ok"})
	})

	g := gateway.New(srv.URL, gateway.WithTokenSource(staticToken("tok-1")))
	var out payload
	if err := g.Do(context.Background(), http.MethodGet, "/api/v1/organizations", nil, true, &out); err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	if got.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got.Get("Content-Type"))
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q, want application/json", got.Get("Accept"))
	}
	if got.Get("Authorization") != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want %q", got.Get("Authorization"), "Bearer tok-1")
	}
	if got.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be set")
	}
	if out.Name != "ok" {
		t.Errorf("Name = %q, want %q", out.Name, "ok")
	}
}

func TestDo_NoAuthWhenNotRequired(t *testing.T) {
	var auth string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})

	g := gateway.New(srv.URL, gateway.WithTokenSource(staticToken("tok-1")))
	if err := g.Do(context.Background(), http.MethodPost, "/api/v1/auth/login", map[string]string{"a": "b"}, false, nil); err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if auth != "" {
		t.Errorf("Authorization = %q, want empty", auth)
	}
}

func TestDo_NoAuthWithoutToken(t *testing.T) {
	var auth string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})

	g := gateway.New(srv.URL, gateway.WithTokenSource(staticToken("")))
	if err := g.Get(context.Background(), "/x", nil); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if auth != "" {
		t.Errorf("Authorization = %q, want empty", auth)
	}
}

func TestDo_RequestIDFromContext(t *testing.T) {
	var id string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		id = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	})

	g := gateway.New(srv.URL)
	ctx := tiqology.WithRequestID(context.Background(), "req-42")
	if err := g.Get(ctx, "/x", nil); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if id != "req-42" {
		t.Errorf("X-Request-ID = %q, want %q", id, "req-42")
	}
}

func TestDo_StaticHeaderAndEmptyPath(t *testing.T) {
	var key, path string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("x-api-key")
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	g := gateway.New(srv.URL+"/api/ghost/", gateway.WithHeader("x-api-key", "k"))
	if err := g.Do(context.Background(), http.MethodPost, "", nil, false, nil); err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if key != "k" {
		t.Errorf("x-api-key = %q, want %q", key, "k")
	}
	if path != "/api/ghost" {
		t.Errorf("path = %q, want %q", path, "/api/ghost")
	}
}

func TestDo_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    tiqology.ErrorKind
		message string
	}{
		{"structured error field", http.StatusUnprocessableEntity, `{"error":"Email has already been taken"}`, tiqology.KindValidation, "Email has already been taken"},
		{"structured message field", http.StatusBadRequest, `{"message":"password too short"}`, tiqology.KindValidation, "password too short"},
		{"error wins over message", http.StatusBadRequest, `{"error":"first","message":"second"}`, tiqology.KindValidation, "first"},
		{"401 without body", http.StatusUnauthorized, ``, tiqology.KindAuth, tiqology.MsgAuth},
		{"401 structured body", http.StatusUnauthorized, `{"error":"Account locked"}`, tiqology.KindAuth, "Account locked"},
		{"401 blank error field", http.StatusUnauthorized, `{"error":"  "}`, tiqology.KindAuth, tiqology.MsgAuth},
		{"404 free text", http.StatusNotFound, `404 Not Found`, tiqology.KindNotFound, tiqology.MsgNotFound},
		{"500 html", http.StatusInternalServerError, `<html>boom</html>`, tiqology.KindServer, tiqology.MsgServer},
		{"403 non-string error", http.StatusForbidden, `{"error":{"code":7}}`, tiqology.KindForbidden, tiqology.MsgForbidden},
		{"418 generic", http.StatusTeapot, `short and stout`, tiqology.KindUnknown, tiqology.MsgGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := gateway.New(srv.URL).Get(context.Background(), "/x", nil)
			var e *tiqology.Error
			if !errors.As(err, &e) {
				t.Fatalf("error = %v (%T), want *tiqology.Error", err, err)
			}
			if e.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", e.Kind, tt.kind)
			}
			if e.Status != tt.status {
				t.Errorf("Status = %d, want %d", e.Status, tt.status)
			}
			if e.Error() != tt.message {
				t.Errorf("Error() = %q, want %q", e.Error(), tt.message)
			}
		})
	}
}

func TestDo_NotFoundDoesNotLeakBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	err := gateway.New(srv.URL).Get(context.Background(), "/does-not-exist", nil)
	if !errors.Is(err, tiqology.ErrNotFound) {
		t.Fatalf("error = %v, want NotFound", err)
	}
	if strings.Contains(err.Error(), "404") {
		t.Errorf("message %q leaks the raw status line", err.Error())
	}
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := gateway.New(url).Get(context.Background(), "/x", nil)
	if !errors.Is(err, tiqology.ErrNetwork) {
		t.Fatalf("error = %v, want Network", err)
	}
	if err.Error() != tiqology.MsgNetwork {
		t.Errorf("Error() = %q, want %q", err.Error(), tiqology.MsgNetwork)
	}
}

func TestDo_ContextDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := gateway.New(srv.URL).Get(ctx, "/slow", nil)
	if !errors.Is(err, tiqology.ErrTimeout) {
		t.Fatalf("error = %v, want Timeout", err)
	}
}

func TestDo_UndecodableBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	var out payload
	err := gateway.New(srv.URL).Get(context.Background(), "/x", &out)
	if !errors.Is(err, tiqology.ErrInvalidResponse) {
		t.Fatalf("error = %v, want InvalidResponse", err)
	}
}

func TestRequest_Typed(t *testing.T) {
	var method string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		var in payload
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(payload{Name: "echo:" + in.Name})
	})

	out, err := gateway.Request[payload](context.Background(), gateway.New(srv.URL), http.MethodPut, "/echo", payload{Name: "x"}, true)
	if err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	if method != http.MethodPut {
		t.Errorf("method = %q, want PUT", method)
	}
	if out.Name != "echo:x" {
		t.Errorf("Name = %q, want %q", out.Name, "echo:x")
	}
}

func TestValidate(t *testing.T) {
	if err := gateway.Validate(&tiqology.AuthResult{User: &tiqology.User{ID: "1"}, Token: "t"}); err != nil {
		t.Errorf("Validate(valid) error: %v", err)
	}

	bad := []*tiqology.AuthResult{
		{User: &tiqology.User{ID: "1"}},
		{Token: "t"},
		{User: &tiqology.User{}, Token: "t"},
	}
	for i, r := range bad {
		if err := gateway.Validate(r); !errors.Is(err, tiqology.ErrInvalidResponse) {
			t.Errorf("case %d: Validate() = %v, want InvalidResponse", i, err)
		}
	}
}

func TestDo_MessageOverride(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	const msg = "Network error: Unable to reach the evaluator"
	err := gateway.New(url, gateway.WithMessage(tiqology.KindNetwork, msg)).Get(context.Background(), "/x", nil)
	if !errors.Is(err, tiqology.ErrNetwork) {
		t.Fatalf("error = %v, want Network", err)
	}
	if err.Error() != msg {
		t.Errorf("Error() = %q, want %q", err.Error(), msg)
	}
}
