package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ntalakanov/taskboard/internal/tokens"
)

// RequireLogin resolves the current principal from the access token and
// stores it in the echo context. Token verification happens only here; the
// services behind it trust the resolved account id.
func RequireLogin(accessSecret []byte, issuer, audience string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "access token missing")
			}

			claims, err := tokens.AccessClaimsFromToken(raw, accessSecret, issuer, audience)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			accountID, err := parseSubject(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}

			c.Set("accountID", accountID)
			c.Set("email", claims.Email)
			c.Set("username", claims.Username)
			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}
