package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"slices"

	"github.com/goevery/tracker/internal/ierr"
)

// SecretHeader carries the shared secret between the business-logic layer
// and the tracker.
const SecretHeader = "x-internal-secret"

const ScopePublish = "publish"

type Authentication struct {
	Subject string
	Scope   []string
}

func (a *Authentication) IsPublisher() bool {
	return slices.Contains(a.Scope, ScopePublish)
}

type contextKey string

const authenticationKey contextKey = "authentication"

func WithAuthentication(ctx context.Context, auth *Authentication) context.Context {
	return context.WithValue(ctx, authenticationKey, auth)
}

func AuthenticationFromContext(ctx context.Context) (*Authentication, bool) {
	auth, ok := ctx.Value(authenticationKey).(*Authentication)
	return auth, ok
}

// Authenticator verifies the internal secret. An empty configured secret
// rejects every request.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
	}
}

func (a *Authenticator) AuthenticateSecret(secret string) (*Authentication, error) {
	if len(a.secret) == 0 || secret == "" {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("missing internal secret"))
	}

	if subtle.ConstantTimeCompare([]byte(secret), a.secret) != 1 {
		return nil, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("invalid internal secret"))
	}

	return &Authentication{
		Subject: "internal",
		Scope:   []string{ScopePublish},
	}, nil
}

// Middleware rejects requests without a valid secret before any handler runs.
func (a *Authenticator) Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authentication, err := a.AuthenticateSecret(r.Header.Get(SecretHeader))
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthentication(r.Context(), authentication)))
		})
	}
}
