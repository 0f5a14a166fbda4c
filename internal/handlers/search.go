package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ntalakanov/taskboard/internal/authz"
	"github.com/ntalakanov/taskboard/internal/es"
	mwauth "github.com/ntalakanov/taskboard/internal/middleware/auth"
	"github.com/ntalakanov/taskboard/internal/util"
)

type SearchHandler struct {
	Authz *authz.Engine
	Index *es.TaskIndex
}

func (h *SearchHandler) SearchTasks(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleMember); err != nil {
		return mapError(err)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, limit := util.Paginate(page, size)

	total, tasks, err := h.Index.SearchTasks(c.Request().Context(), projectID, q, from, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "tasks": tasks})
}
