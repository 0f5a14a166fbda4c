package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ntalakanov/taskboard/internal/authz"
	"github.com/ntalakanov/taskboard/internal/es"
	mwauth "github.com/ntalakanov/taskboard/internal/middleware/auth"
	"github.com/ntalakanov/taskboard/internal/models"
	"github.com/ntalakanov/taskboard/internal/mykafka"
)

type BoardHandler struct {
	DB       *gorm.DB
	Authz    *authz.Engine
	Producer *mykafka.Producer
	Index    *es.TaskIndex
}

func (h *BoardHandler) CreateBoard(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleUpdate); err != nil {
		return mapError(err)
	}

	board := models.Board{ProjectID: projectID, Title: req.Title}
	if err := h.DB.Create(&board).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	publish(c, h.Producer, "project_events", fmt.Sprint(projectID), map[string]interface{}{
		"type":       "board_created",
		"project_id": projectID,
		"board_id":   board.ID,
	})

	return c.JSON(http.StatusCreated, board)
}

func (h *BoardHandler) ListBoards(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleMember); err != nil {
		return mapError(err)
	}

	var boards []models.Board
	if err := h.DB.Where("project_id = ?", projectID).Find(&boards).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, boards)
}

func (h *BoardHandler) RenameBoard(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	boardID, err := paramID(c, "boardID")
	if err != nil {
		return err
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}

	board, err := h.loadBoard(c, boardID)
	if err != nil {
		return err
	}
	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, board.ProjectID, authz.RoleUpdate); err != nil {
		return mapError(err)
	}

	if err := h.DB.Model(&models.Board{}).Where("id = ?", boardID).
		Update("title", req.Title).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BoardHandler) DeleteBoard(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	boardID, err := paramID(c, "boardID")
	if err != nil {
		return err
	}

	board, err := h.loadBoard(c, boardID)
	if err != nil {
		return err
	}
	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, board.ProjectID, authz.RoleUpdate); err != nil {
		return mapError(err)
	}

	// Grab the task ids up front so their search documents can be dropped
	// once the rows are gone.
	var taskIDs []uint
	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).Where("board_id = ?", boardID).
			Pluck("id", &taskIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("board_id = ?", boardID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Board{}, boardID).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	dropTaskDocs(c, h.Index, taskIDs)
	publish(c, h.Producer, "project_events", fmt.Sprint(board.ProjectID), map[string]interface{}{
		"type":       "board_deleted",
		"project_id": board.ProjectID,
		"board_id":   boardID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *BoardHandler) loadBoard(c echo.Context, boardID uint) (*models.Board, error) {
	var board models.Board
	if err := h.DB.WithContext(c.Request().Context()).First(&board, boardID).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "board not found")
	}
	return &board, nil
}
