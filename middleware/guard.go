package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/devmoa/authkit"
)

type credentialContextKey struct{}

// CredentialFromContext returns the credential attached by Guard, if any.
func CredentialFromContext(ctx context.Context) (*authkit.Credential, bool) {
	cred, ok := ctx.Value(credentialContextKey{}).(*authkit.Credential)
	return cred, ok
}

// Guard wraps a handler with access token enforcement. RouteGuarded rejects
// requests without a valid token and live session; RoutePublic lets every
// request through but still attaches a credential when a valid token is
// present.
func Guard(engine *authkit.Engine, mode authkit.RouteMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				if mode == authkit.RoutePublic {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			cred, err := engine.Validate(r.Context(), token)
			if err != nil {
				if mode == authkit.RoutePublic {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), credentialContextKey{}, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
