// Package adminauth protects the admin HTTP surface with HTTP Basic Auth
// checked against LDAP, reusing the daemon's bind-as-service-account-then-
// bind-as-user verification rather than inventing a second credential store.
package adminauth

import (
	"net/http"

	"ofcd/internal/ldap"
)

// BasicAuth wraps next, requiring a valid LDAP bind for every request when
// cfg is non-nil and enabled. A nil or disabled cfg makes BasicAuth a no-op,
// which is the expected configuration for local/test deployments that trust
// their network perimeter instead.
func BasicAuth(cfg *ldap.Config, realm string, next http.Handler) http.Handler {
	if cfg == nil || !cfg.Enabled {
		return next
	}
	if realm == "" {
		realm = "ofcd admin"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			challenge(w, realm)
			return
		}

		client, err := ldap.NewClient(cfg)
		if err != nil {
			http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
			return
		}

		user, err := client.Authenticate(username, password)
		if err != nil {
			challenge(w, realm)
			return
		}
		if cfg.AdminGroup != "" && !user.MemberOf(cfg.AdminGroup) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func challenge(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
