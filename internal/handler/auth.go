package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenVerifier checks bearer tokens against the configured API token.
type TokenVerifier interface {
	VerifyAPIToken(ctx context.Context, token string) (bool, error)
}

// requireToken is middleware that checks for a valid bearer token.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="socratic"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		valid, err := h.tokens.VerifyAPIToken(r.Context(), token)
		if err != nil {
			slog.Error("failed to verify API token", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
			return
		}
		if !valid {
			slog.Warn("rejected API token", "remote", r.RemoteAddr, "path", r.URL.Path)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
