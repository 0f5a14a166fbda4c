package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ntalakanov/taskboard/internal/hash"
	mwauth "github.com/ntalakanov/taskboard/internal/middleware/auth"
	"github.com/ntalakanov/taskboard/internal/models"
	"github.com/ntalakanov/taskboard/internal/mykafka"
	"github.com/ntalakanov/taskboard/internal/session"
)

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *session.Service
	Producer *mykafka.Producer
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email, username and password are required")
	}

	salt, err := hash.NewSalt()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	pwHash, err := hash.HashPassword(salt + req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	var existing models.Account
	result := h.DB.Where("email = ? OR username = ?", req.Email, req.Username).First(&existing)
	if result.Error == nil {
		return echo.NewHTTPError(http.StatusConflict, "account already exists")
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	account := models.Account{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: pwHash,
		Salt:         salt,
	}
	if err := h.DB.Create(&account).Error; err != nil {
		// The existence check above races with concurrent registrations;
		// the unique constraint is the backstop.
		if isDuplicateKey(err) {
			return echo.NewHTTPError(http.StatusConflict, "account already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	publish(c, h.Producer, "user_events", fmt.Sprint(account.ID), map[string]interface{}{
		"type":     "account_registered",
		"id":       account.ID,
		"username": account.Username,
	})

	return c.JSON(http.StatusCreated, account)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	var account models.Account
	if err := h.DB.Where("email = ?", req.Email).First(&account).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if !hash.CheckPassword(account.PasswordHash, account.Salt+req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if account.Banned {
		return echo.NewHTTPError(http.StatusForbidden, "account is banned")
	}

	pair, err := h.Sessions.IssueInitialPair(c.Request().Context(), &account, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	c.SetCookie(CreateCookie("accessToken", pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(CreateCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExp))

	publish(c, h.Producer, "user_events", fmt.Sprint(account.ID), map[string]interface{}{
		"type": "account_logged_in",
		"id":   account.ID,
		"ip":   c.RealIP(),
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := refreshTokenFromRequest(c)
	if raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	pair, err := h.Sessions.Rotate(c.Request().Context(), raw, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		c.SetCookie(DeleteCookie("accessToken", "/"))
		c.SetCookie(DeleteCookie("refreshToken", "/"))
		return mapError(err)
	}

	c.SetCookie(CreateCookie("accessToken", pair.AccessToken, "/", pair.AccessExp))
	c.SetCookie(CreateCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExp))

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}

	raw := refreshTokenFromRequest(c)
	if raw == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	if err := h.Sessions.Revoke(c.Request().Context(), accountID, raw); err != nil {
		return mapError(err)
	}

	c.SetCookie(DeleteCookie("accessToken", "/"))
	c.SetCookie(DeleteCookie("refreshToken", "/"))

	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) LogOutAll(c echo.Context) error {
	accountID, err := mwauth.AccountID(c)
	if err != nil {
		return err
	}

	if err := h.Sessions.RevokeAll(c.Request().Context(), accountID); err != nil {
		return mapError(err)
	}

	c.SetCookie(DeleteCookie("accessToken", "/"))
	c.SetCookie(DeleteCookie("refreshToken", "/"))

	publish(c, h.Producer, "user_events", fmt.Sprint(accountID), map[string]interface{}{
		"type": "sessions_revoked",
		"id":   accountID,
	})

	return c.NoContent(http.StatusNoContent)
}

// isDuplicateKey reports whether err is a unique-constraint violation.
// Matches both gorm's translated sentinel and the raw driver messages
// (postgres in production, sqlite under test).
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func refreshTokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie("refreshToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}
