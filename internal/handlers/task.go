package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ntalakanov/taskboard/internal/authz"
	"github.com/ntalakanov/taskboard/internal/es"
	mwauth "github.com/ntalakanov/taskboard/internal/middleware/auth"
	"github.com/ntalakanov/taskboard/internal/models"
	"github.com/ntalakanov/taskboard/internal/mykafka"
	"github.com/ntalakanov/taskboard/internal/util"
)

type TaskHandler struct {
	DB       *gorm.DB
	Authz    *authz.Engine
	Producer *mykafka.Producer
	Index    *es.TaskIndex
}

func (h *TaskHandler) CreateTask(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	boardID, err := paramID(c, "boardID")
	if err != nil {
		return err
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		AssigneeID  *uint  `json:"assignee_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	var board models.Board
	if err := h.DB.First(&board, boardID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "board not found")
	}
	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, board.ProjectID, authz.RoleUpdate); err != nil {
		return mapError(err)
	}

	task := models.Task{
		BoardID:     boardID,
		ProjectID:   board.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Status:      "open",
	}
	if err := h.DB.Create(&task).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.indexTask(c, &task)
	publish(c, h.Producer, "task_events", fmt.Sprint(task.ID), map[string]interface{}{
		"type":       "task_created",
		"task_id":    task.ID,
		"project_id": task.ProjectID,
	})

	return c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) ListTasks(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	boardID, err := paramID(c, "boardID")
	if err != nil {
		return err
	}

	var board models.Board
	if err := h.DB.First(&board, boardID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "board not found")
	}
	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, board.ProjectID, authz.RoleMember); err != nil {
		return mapError(err)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	offset, limit := util.Paginate(page, size)

	var tasks []models.Task
	if err := h.DB.Where("board_id = ?", boardID).
		Offset(offset).Limit(limit).Order("id").
		Find(&tasks).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) UpdateTask(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	taskID, err := paramID(c, "taskID")
	if err != nil {
		return err
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		AssigneeID  *uint   `json:"assignee_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	var task models.Task
	if err := h.DB.First(&task, taskID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, task.ProjectID, authz.RoleUpdate); err != nil {
		return mapError(err)
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.AssigneeID != nil {
		updates["assignee_id"] = *req.AssigneeID
	}
	if len(updates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	if err := h.DB.Model(&task).Updates(updates).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.indexTask(c, &task)
	publish(c, h.Producer, "task_events", fmt.Sprint(task.ID), map[string]interface{}{
		"type":       "task_updated",
		"task_id":    task.ID,
		"project_id": task.ProjectID,
	})

	return c.JSON(http.StatusOK, task)
}

// MoveTask moves a task to another board, possibly in another project.
// Both the source and the destination project are checked before anything
// is written.
func (h *TaskHandler) MoveTask(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	taskID, err := paramID(c, "taskID")
	if err != nil {
		return err
	}

	var req struct {
		BoardID uint `json:"board_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.BoardID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "board_id is required")
	}

	var task models.Task
	if err := h.DB.First(&task, taskID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	var dest models.Board
	if err := h.DB.First(&dest, req.BoardID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "board not found")
	}

	ctx := c.Request().Context()
	if err := h.Authz.CheckAccess(ctx, accountID, task.ProjectID, authz.RoleUpdate); err != nil {
		return mapError(err)
	}
	if dest.ProjectID != task.ProjectID {
		if err := h.Authz.CheckAccess(ctx, accountID, dest.ProjectID, authz.RoleUpdate); err != nil {
			return mapError(err)
		}
	}

	if err := h.DB.Model(&task).Updates(map[string]interface{}{
		"board_id":   dest.ID,
		"project_id": dest.ProjectID,
	}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.indexTask(c, &task)
	publish(c, h.Producer, "task_events", fmt.Sprint(task.ID), map[string]interface{}{
		"type":       "task_moved",
		"task_id":    task.ID,
		"project_id": dest.ProjectID,
	})

	return c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	taskID, err := paramID(c, "taskID")
	if err != nil {
		return err
	}

	var task models.Task
	if err := h.DB.First(&task, taskID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, task.ProjectID, authz.RoleUpdate); err != nil {
		return mapError(err)
	}

	if err := h.DB.Delete(&models.Task{}, taskID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	if err := h.Index.DeleteTask(c.Request().Context(), taskID); err != nil {
		c.Logger().Errorf("es delete error: %v", err)
	}
	publish(c, h.Producer, "task_events", fmt.Sprint(taskID), map[string]interface{}{
		"type":       "task_deleted",
		"task_id":    taskID,
		"project_id": task.ProjectID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *TaskHandler) indexTask(c echo.Context, task *models.Task) {
	if err := h.Index.IndexTask(c.Request().Context(), task); err != nil {
		c.Logger().Errorf("es index error: %v", err)
	}
}
