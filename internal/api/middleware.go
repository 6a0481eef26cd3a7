// Package api implements the mdchat storage REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/starford/mdchat/internal/storage"
)

// SessionHeader and SessionQuery name where a request may carry its storage
// session id. The header wins over the query parameter.
const (
	SessionHeader = "X-Test-Session"
	SessionQuery  = "testSession"
)

type sessionKey struct{}

// SessionMiddleware resolves the storage session of each request and stores
// it in the request context. Requests naming none use the default session.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SessionHeader))
		if id == "" {
			id = strings.TrimSpace(r.URL.Query().Get(SessionQuery))
		}
		if id == "" {
			id = storage.DefaultSession
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

// Session returns the session id stored by SessionMiddleware.
func Session(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok {
		return id
	}
	return storage.DefaultSession
}
