package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"finitefield.org/kmart-web/internal/session"
)

func TestRequireHTMX(t *testing.T) {
	handler := HTMX()(RequireHTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("direct navigation is 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fragments/products", nil))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("htmx request passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/fragments/products", nil)
		req.Header.Set("HX-Request", "true")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if rr.Header().Get("Vary") != "HX-Request" {
			t.Fatalf("expected Vary: HX-Request")
		}
	})

	t.Run("history restore wants a full page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/fragments/products", nil)
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-History-Restore-Request", "true")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rr.Code)
		}
	})
}

func TestNoStoreMiddleware(t *testing.T) {
	handler := NoStore()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rr.Header().Get("Cache-Control"); got != "no-store, max-age=0" {
		t.Fatalf("unexpected Cache-Control: %s", got)
	}
	if got := rr.Header().Get("Pragma"); got != "no-cache" {
		t.Fatalf("unexpected Pragma: %s", got)
	}
}

func TestCSRF(t *testing.T) {
	handler := CSRF(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CSRFTokenFromContext(r.Context()) == "" {
			t.Fatalf("expected token in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "kmart_csrf" {
		t.Fatalf("expected csrf cookie, got %v", cookies)
	}
	token := cookies[0].Value

	t.Run("missing token is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req.AddCookie(cookies[0])
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
	})

	t.Run("header token accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req.AddCookie(cookies[0])
		req.Header.Set("X-CSRF-Token", token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("form field accepted", func(t *testing.T) {
		form := url.Values{"csrf_token": {token}, "username": {"admin"}}
		req := httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(cookies[0])
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req.AddCookie(cookies[0])
		req.Header.Set("X-CSRF-Token", token+"x")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rr.Code)
		}
	})
}

func TestSessionPersistsBeforeHeaders(t *testing.T) {
	mgr, err := session.NewManager(session.Config{HashKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	handler := Session(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if !ok {
			t.Fatalf("expected session in context")
		}
		sess.SetToken("abc123")
		http.Redirect(w, r, "/admin-dashboard", http.StatusSeeOther)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin", nil))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin-dashboard", nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	sess, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess.Token() != "abc123" {
		t.Fatalf("expected token to survive redirect, got %q", sess.Token())
	}
}

func TestHTMXResponseHelpers(t *testing.T) {
	rr := httptest.NewRecorder()
	Trigger(rr, "products:refresh")
	Redirect(rr, "/404", http.StatusNoContent)

	if got := rr.Header().Get("HX-Trigger"); got != "products:refresh" {
		t.Fatalf("unexpected HX-Trigger %q", got)
	}
	if got := rr.Header().Get("HX-Redirect"); got != "/404" {
		t.Fatalf("unexpected HX-Redirect %q", got)
	}
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}
