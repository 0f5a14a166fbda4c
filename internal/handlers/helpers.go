package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ntalakanov/taskboard/internal/authz"
	"github.com/ntalakanov/taskboard/internal/es"
	"github.com/ntalakanov/taskboard/internal/mykafka"
	"github.com/ntalakanov/taskboard/internal/session"
)

func CreateCookie(name string, value string, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// mapError turns core sentinel errors into the HTTP statuses the boundary
// layer owes its clients: 403 denied, 404 missing, 401 bad/expired token,
// 409 invariant violation.
func mapError(err error) error {
	switch {
	case errors.Is(err, authz.ErrAccessDenied), errors.Is(err, session.ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, authz.ErrProjectNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	case errors.Is(err, authz.ErrAccountNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	case errors.Is(err, session.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, session.ErrExpiredToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token expired")
	case errors.Is(err, authz.ErrInvariantViolation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

// dropTaskDocs removes search documents for tasks whose rows were already
// bulk-deleted. The index lags behind the DB at worst; failures are logged
// and never fail the request.
func dropTaskDocs(c echo.Context, index *es.TaskIndex, taskIDs []uint) {
	for _, id := range taskIDs {
		if err := index.DeleteTask(c.Request().Context(), id); err != nil {
			c.Logger().Errorf("es delete error: %v", err)
		}
	}
}

func publish(c echo.Context, p *mykafka.Producer, topic, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}
