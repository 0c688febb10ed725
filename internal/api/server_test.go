package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hilstonwill/contact-api/internal/config"
	"github.com/hilstonwill/contact-api/internal/contact"
	"github.com/hilstonwill/contact-api/internal/origin"
	"github.com/hilstonwill/contact-api/internal/outputs/email/mock"
	"github.com/labstack/echo/v4"
)

func newTestServer(t *testing.T, sender *mock.Sender) *Server {
	t.Helper()
	handler, err := contact.NewHandler(sender, contact.Config{
		From: `"Portfolio" <portfolio@example.com>`,
		To:   "owner@example.com",
	})
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	cfg := config.Defaults().HTTP
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, handler, origin.NewPolicy(cfg.AllowedOrigins), logger)
}

func do(t *testing.T, srv http.Handler, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestLiveness(t *testing.T) {
	srv := newTestServer(t, &mock.Sender{})
	rec, resp := do(t, srv, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK || !resp.OK || resp.Message == "" {
		t.Fatalf("unexpected liveness response: %d %+v", rec.Code, resp)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("expected request id header")
	}
}

func TestContactStatusMapping(t *testing.T) {
	cases := []struct {
		name      string
		path      string
		body      string
		sendErr   error
		wantCode  int
		wantOK    bool
		wantMsg   string
		wantSends int
	}{
		{
			name:     "honeypot",
			path:     "/api/contact",
			body:     `{"correo":"bot@example.com","mensaje":"buy now","trap":"gotcha"}`,
			wantCode: http.StatusOK, wantOK: true, wantMsg: msgIgnored,
		},
		{
			name:     "honeypot with missing fields",
			path:     "/",
			body:     `{"trap":"x"}`,
			wantCode: http.StatusOK, wantOK: true, wantMsg: msgIgnored,
		},
		{
			name:     "missing correo",
			path:     "/api/contact",
			body:     `{"nombre":"Ana","mensaje":"Hola"}`,
			wantCode: http.StatusBadRequest, wantOK: false, wantMsg: msgRequired,
		},
		{
			name:     "missing mensaje",
			path:     "/",
			body:     `{"correo":"ana@example.com","mensaje":""}`,
			wantCode: http.StatusBadRequest, wantOK: false, wantMsg: msgRequired,
		},
		{
			name:     "malformed json",
			path:     "/api/contact",
			body:     `{"correo":`,
			wantCode: http.StatusBadRequest, wantOK: false, wantMsg: msgInvalidBody,
		},
		{
			name:     "delivered",
			path:     "/api/contact",
			body:     `{"nombre":"Ana","correo":"ana@example.com","mensaje":"Hola"}`,
			wantCode: http.StatusOK, wantOK: true, wantMsg: msgSent, wantSends: 1,
		},
		{
			name:     "correo without domain is still relayed",
			path:     "/api/contact",
			body:     `{"correo":"ana","mensaje":"Hola"}`,
			wantCode: http.StatusOK, wantOK: true, wantMsg: msgSent, wantSends: 1,
		},
		{
			name:     "numeric honeypot",
			path:     "/api/contact",
			body:     `{"correo":"bot@example.com","mensaje":"buy now","trap":1}`,
			wantCode: http.StatusOK, wantOK: true, wantMsg: msgIgnored,
		},
		{
			name:     "object honeypot",
			path:     "/",
			body:     `{"trap":{"x":1}}`,
			wantCode: http.StatusOK, wantOK: true, wantMsg: msgIgnored,
		},
		{
			name:     "false honeypot counts as empty",
			path:     "/api/contact",
			body:     `{"correo":"ana@example.com","mensaje":"Hola","trap":false}`,
			wantCode: http.StatusOK, wantOK: true, wantMsg: msgSent, wantSends: 1,
		},
		{
			name:     "delivery failure",
			path:     "/",
			body:     `{"correo":"ana@example.com","mensaje":"Hola"}`,
			sendErr:  errors.New("dial tcp 10.0.0.1:587: connection refused"),
			wantCode: http.StatusInternalServerError, wantOK: false, wantMsg: msgSendFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &mock.Sender{Err: tc.sendErr}
			srv := newTestServer(t, sender)

			rec, resp := do(t, srv, http.MethodPost, tc.path, tc.body, nil)
			if rec.Code != tc.wantCode {
				t.Fatalf("status=%d want %d (body %s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if resp.OK != tc.wantOK || resp.Message != tc.wantMsg {
				t.Fatalf("response=%+v want ok=%v message=%q", resp, tc.wantOK, tc.wantMsg)
			}
			if got := len(sender.Sent()); got != tc.wantSends {
				t.Fatalf("sent %d messages, want %d", got, tc.wantSends)
			}
			if strings.Contains(rec.Body.String(), "connection refused") {
				t.Fatal("raw delivery error leaked to caller")
			}
		})
	}
}

func TestContactBuildsMessageFromFormFields(t *testing.T) {
	sender := &mock.Sender{}
	srv := newTestServer(t, sender)

	rec, _ := do(t, srv, http.MethodPost, "/api/contact", `{"correo":"ana@example.com","mensaje":"Hola"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sent))
	}
	if sent[0].ReplyTo != "ana@example.com" || sent[0].Subject != "Contact from portfolio - No name" {
		t.Fatalf("unexpected message: %+v", sent[0])
	}
	if !strings.Contains(sent[0].Body, "Anonymous") {
		t.Fatalf("expected anonymous signature, got %q", sent[0].Body)
	}
}

func TestContactAcceptsURLEncodedForm(t *testing.T) {
	sender := &mock.Sender{}
	srv := newTestServer(t, sender)

	form := url.Values{"nombre": {"Ana"}, "correo": {"ana@example.com"}, "mensaje": {"Hola"}}
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(sender.Sent()) != 1 {
		t.Fatal("expected form post to be delivered")
	}
}

func TestOriginGate(t *testing.T) {
	body := `{"correo":"ana@example.com","mensaje":"Hola"}`

	t.Run("allowed origin gets cors headers", func(t *testing.T) {
		sender := &mock.Sender{}
		rec, _ := do(t, newTestServer(t, sender), http.MethodPost, "/api/contact", body,
			map[string]string{echo.HeaderOrigin: "http://localhost:3000"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d", rec.Code)
		}
		if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "http://localhost:3000" {
			t.Fatalf("Access-Control-Allow-Origin=%q", got)
		}
	})

	t.Run("denied origin never reaches handler", func(t *testing.T) {
		sender := &mock.Sender{}
		rec, _ := do(t, newTestServer(t, sender), http.MethodPost, "/api/contact", body,
			map[string]string{echo.HeaderOrigin: "https://evil.example"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status=%d", rec.Code)
		}
		if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
			t.Fatal("expected non-JSON rejection body")
		}
		if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
			t.Fatal("rejected origin must not receive CORS headers")
		}
		if sender.Attempts != 0 {
			t.Fatalf("expected no send attempts, got %d", sender.Attempts)
		}
	})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		rec, _ := do(t, newTestServer(t, &mock.Sender{}), http.MethodOptions, "/api/contact", "",
			map[string]string{
				echo.HeaderOrigin:                     "https://hilston-will.netlify.app",
				echo.HeaderAccessControlRequestMethod: http.MethodPost,
			})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status=%d", rec.Code)
		}
		if !strings.Contains(rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost) {
			t.Fatalf("Access-Control-Allow-Methods=%q", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
		}
	})
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	rec, resp := do(t, newTestServer(t, &mock.Sender{}), http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound || resp.OK || resp.Message == "" {
		t.Fatalf("unexpected 404 response: %d %+v", rec.Code, resp)
	}
}

func TestBodyLimit(t *testing.T) {
	sender := &mock.Sender{}
	big := `{"correo":"ana@example.com","mensaje":"` + strings.Repeat("a", 70*1024) + `"}`
	rec, resp := do(t, newTestServer(t, sender), http.MethodPost, "/api/contact", big, nil)
	if rec.Code != http.StatusRequestEntityTooLarge || resp.OK {
		t.Fatalf("unexpected response: %d %+v", rec.Code, resp)
	}
	if sender.Attempts != 0 {
		t.Fatal("oversized body must not be delivered")
	}
}

func TestBodyLimitWithoutContentLength(t *testing.T) {
	sender := &mock.Sender{}
	big := `{"correo":"ana@example.com","mensaje":"` + strings.Repeat("a", 70*1024) + `"}`

	// io.MultiReader hides the length, so the request is sent as chunked.
	req := httptest.NewRequest(http.MethodPost, "/api/contact", io.MultiReader(strings.NewReader(big)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if req.ContentLength > 0 {
		t.Fatalf("expected unknown content length, got %d", req.ContentLength)
	}
	rec := httptest.NewRecorder()
	newTestServer(t, sender).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d want 413 (body %s)", rec.Code, rec.Body.String())
	}
	if sender.Attempts != 0 {
		t.Fatal("oversized body must not be delivered")
	}
}

type stubHandler struct {
	calls int
}

func (s *stubHandler) Handle(ctx context.Context, sub contact.Submission) (contact.Outcome, error) {
	s.calls++
	if sub.Name != "Ana" || sub.Trap != "" {
		return 0, errors.New("unexpected submission")
	}
	return contact.OutcomeDelivered, nil
}

func TestServerPassesSubmissionThrough(t *testing.T) {
	stub := &stubHandler{}
	cfg := config.Defaults().HTTP
	cfg.ContactPaths = []string{"/contact"}
	srv := NewServer(cfg, stub, origin.NewPolicy([]string{"*"}), nil)

	rec, resp := do(t, srv, http.MethodPost, "/contact", `{"nombre":"Ana","correo":"a@example.com","mensaje":"m"}`, nil)
	if rec.Code != http.StatusOK || !resp.OK || stub.calls != 1 {
		t.Fatalf("unexpected: %d %+v calls=%d", rec.Code, resp, stub.calls)
	}

	rec, _ = do(t, srv, http.MethodPost, "/api/contact", `{"nombre":"Ana"}`, nil)
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected unconfigured path to be unavailable, got %d", rec.Code)
	}
}
