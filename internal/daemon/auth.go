package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireToken guards the inspection endpoints. An empty token disables the
// check; otherwise requests must carry "Authorization: Bearer <token>".
func (s *devServer) requireToken(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	want := []byte(s.token)
	return func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="unitgo"`)
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}
