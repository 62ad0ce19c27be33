package auth

import (
	"net/http"
	"strings"

	"finitefield.org/kmart-web/internal/session"
)

// RequireAdmin rejects requests whose session token the guard refuses. Plain
// requests are redirected to loginPath; htmx requests receive HX-Redirect
// with 401 so the client performs a full navigation.
func RequireAdmin(guard *Guard, loginPath string) func(http.Handler) http.Handler {
	if guard == nil {
		panic("auth: guard is required")
	}
	if loginPath == "" {
		loginPath = "/admin"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var store TokenStore
			if sess, ok := session.FromContext(r.Context()); ok {
				store = sess
			}
			decision := guard.Check(r.Context(), store)
			if !decision.Allowed {
				Redirect(w, r, loginPath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Redirect sends the browser to target, using HX-Redirect for htmx requests.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if strings.EqualFold(r.Header.Get("HX-Request"), "true") {
		w.Header().Set("HX-Redirect", target)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}
