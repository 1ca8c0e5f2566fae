package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/shopfront-backend/api/responses"
	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

// Auth requires a valid bearer token and puts the caller's id and role on the context.
// With a nil verifier the session store is not consulted.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r, cfg, verifier)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			userID := claims.UserID.String()
			role := claims.Role.String()
			ctx := WithRole(WithUserID(r.Context(), userID), role)
			if logg != nil {
				ctx = logg.WithActorRole(logg.WithUserID(ctx, userID), role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, verifier session.AccessSessionChecker) (*pkgAuth.AccessTokenClaims, error) {
	token, err := pkgAuth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if verifier == nil {
		return claims, nil
	}
	if err := checkSession(r.Context(), verifier, claims.ID); err != nil {
		return nil, err
	}
	return claims, nil
}

func checkSession(ctx context.Context, verifier session.AccessSessionChecker, accessID string) error {
	if accessID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	ok, err := verifier.HasSession(ctx, accessID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return nil
}
