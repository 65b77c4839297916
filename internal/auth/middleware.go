package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const principalContextKey = "auth.principal"

// Middleware extracts and validates the Bearer token on every request,
// storing the principal in the request context. /health is left open.
func Middleware(verifier *Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/health" {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			principal, err := verifier.Verify(tokenStr)
			if err != nil {
				log.Debug().Err(err).Msg("JWT parse error")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(principalContextKey, principal)
			return next(c)
		}
	}
}

// RequireElevatedRole rejects callers without the Admin or Owner role.
// All mutation routes are wrapped with this.
func RequireElevatedRole() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := FromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if !principal.HasElevatedRole() {
				return echo.NewHTTPError(http.StatusUnauthorized, "elevated role required")
			}
			return next(c)
		}
	}
}

// FromContext returns the principal stored by Middleware.
func FromContext(c echo.Context) (*Principal, bool) {
	principal, ok := c.Get(principalContextKey).(*Principal)
	return principal, ok
}

// SetPrincipal stores a principal on the context directly. Used by tests
// to bypass token verification.
func SetPrincipal(c echo.Context, p *Principal) {
	c.Set(principalContextKey, p)
}
