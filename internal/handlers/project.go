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

type ProjectHandler struct {
	DB       *gorm.DB
	Authz    *authz.Engine
	Producer *mykafka.Producer
	Index    *es.TaskIndex
}

func (h *ProjectHandler) CreateProject(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
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

	project := models.Project{Title: req.Title}
	// Project row and the creator's owner grant commit together.
	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return h.Authz.SeedOwner(tx, project.ID, accountID)
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	publish(c, h.Producer, "project_events", fmt.Sprint(project.ID), map[string]interface{}{
		"type":       "project_created",
		"project_id": project.ID,
		"owner_id":   accountID,
	})

	return c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) GetProject(c echo.Context) error {
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

	var project models.Project
	if err := h.DB.First(&project, projectID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "project not found")
	}
	return c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) ListMyProjects(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}

	var projects []models.Project
	if err := h.DB.
		Joins("JOIN role_grants ON role_grants.project_id = projects.id").
		Where("role_grants.account_id = ?", accountID).
		Distinct().
		Find(&projects).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) RenameProject(c echo.Context) error {
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

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleAdmin); err != nil {
		return mapError(err)
	}

	if err := h.DB.Model(&models.Project{}).Where("id = ?", projectID).
		Update("title", req.Title).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProjectHandler) DeleteProject(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleOwner); err != nil {
		return mapError(err)
	}

	var taskIDs []uint
	err = h.DB.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).Where("project_id = ?", projectID).
			Pluck("id", &taskIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Board{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.RoleGrant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, projectID).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	dropTaskDocs(c, h.Index, taskIDs)
	publish(c, h.Producer, "project_events", fmt.Sprint(projectID), map[string]interface{}{
		"type":       "project_deleted",
		"project_id": projectID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ProjectHandler) ListMembers(c echo.Context) error {
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

	var grants []models.RoleGrant
	if err := h.DB.Where("project_id = ?", projectID).Find(&grants).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, grants)
}

func (h *ProjectHandler) AddMember(c echo.Context) error {
	accountID, projectID, req, err := h.membershipRequest(c)
	if err != nil {
		return err
	}

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleAdmin); err != nil {
		return mapError(err)
	}
	if err := h.Authz.AddMember(c.Request().Context(), projectID, req.AccountID); err != nil {
		return mapError(err)
	}

	publish(c, h.Producer, "project_events", fmt.Sprint(projectID), map[string]interface{}{
		"type":       "member_added",
		"project_id": projectID,
		"account_id": req.AccountID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ProjectHandler) GrantRole(c echo.Context) error {
	accountID, projectID, req, err := h.membershipRequest(c)
	if err != nil {
		return err
	}

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleAdmin); err != nil {
		return mapError(err)
	}
	if err := h.Authz.GrantRole(c.Request().Context(), projectID, req.AccountID, authz.Role(req.Role)); err != nil {
		return mapError(err)
	}

	publish(c, h.Producer, "project_events", fmt.Sprint(projectID), map[string]interface{}{
		"type":       "role_granted",
		"project_id": projectID,
		"account_id": req.AccountID,
		"role":       req.Role,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ProjectHandler) RevokeRole(c echo.Context) error {
	accountID, projectID, req, err := h.membershipRequest(c)
	if err != nil {
		return err
	}

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleAdmin); err != nil {
		return mapError(err)
	}
	if err := h.Authz.RevokeRole(c.Request().Context(), projectID, req.AccountID, authz.Role(req.Role)); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ProjectHandler) KickMember(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}
	projectID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	memberID, err := paramID(c, "accountID")
	if err != nil {
		return err
	}

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleAdmin); err != nil {
		return mapError(err)
	}
	if err := h.Authz.RevokeAllRoles(c.Request().Context(), projectID, memberID); err != nil {
		return mapError(err)
	}

	publish(c, h.Producer, "project_events", fmt.Sprint(projectID), map[string]interface{}{
		"type":       "member_kicked",
		"project_id": projectID,
		"account_id": memberID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ProjectHandler) TransferOwnership(c echo.Context) error {
	accountID, projectID, req, err := h.membershipRequest(c)
	if err != nil {
		return err
	}

	if err := h.Authz.CheckAccess(c.Request().Context(), accountID, projectID, authz.RoleOwner); err != nil {
		return mapError(err)
	}
	if err := h.Authz.ChangeOwner(c.Request().Context(), projectID, req.AccountID); err != nil {
		return mapError(err)
	}

	publish(c, h.Producer, "project_events", fmt.Sprint(projectID), map[string]interface{}{
		"type":         "ownership_transferred",
		"project_id":   projectID,
		"new_owner_id": req.AccountID,
	})

	return c.NoContent(http.StatusNoContent)
}

type membershipReq struct {
	AccountID uint   `json:"account_id"`
	Role      string `json:"role"`
}

func (h *ProjectHandler) membershipRequest(c echo.Context) (uint, uint, *membershipReq, error) {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return 0, 0, nil, err
	}
	projectID, err := paramID(c, "id")
	if err != nil {
		return 0, 0, nil, err
	}
	var req membershipReq
	if err := c.Bind(&req); err != nil {
		return 0, 0, nil, echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.AccountID == 0 {
		return 0, 0, nil, echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}
	return accountID, projectID, &req, nil
}
