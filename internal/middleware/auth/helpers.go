package auth

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func AccountID(c echo.Context) (uint, error) {
	id, ok := c.Get("accountID").(uint)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return id, nil
}

func parseSubject(sub string) (uint, error) {
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
