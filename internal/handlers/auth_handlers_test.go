package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ntalakanov/taskboard/internal/authz"
	"github.com/ntalakanov/taskboard/internal/hash"
	"github.com/ntalakanov/taskboard/internal/models"
	"github.com/ntalakanov/taskboard/internal/mykafka"
	"github.com/ntalakanov/taskboard/internal/session"
)

const (
	testIssuer   = "taskboard-test"
	testAudience = "taskboard-api-test"
)

func InitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Project{},
		&models.Board{},
		&models.Task{},
		&models.RoleGrant{},
		&models.RefreshToken{},
	); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

type testEnv struct {
	E        *echo.Echo
	DB       *gorm.DB
	Sessions *session.Service
	Authz    *authz.Engine
	Auth     *AuthHandler
	Projects *ProjectHandler
	Boards   *BoardHandler
	Tasks    *TaskHandler
}

func newTestEnv(t *testing.T) *testEnv {
	db := InitTestDB(t)
	sessions := &session.Service{
		DB:            db,
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		Issuer:        testIssuer,
		Audience:      testAudience,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
	engine := authz.NewEngine(db)
	return &testEnv{
		E:        echo.New(),
		DB:       db,
		Sessions: sessions,
		Authz:    engine,
		Auth:     &AuthHandler{DB: db, Sessions: sessions, Producer: &mykafka.Producer{}},
		Projects: &ProjectHandler{DB: db, Authz: engine, Producer: &mykafka.Producer{}},
		Boards:   &BoardHandler{DB: db, Authz: engine, Producer: &mykafka.Producer{}},
		Tasks:    &TaskHandler{DB: db, Authz: engine, Producer: &mykafka.Producer{}},
	}
}

func (env *testEnv) jsonRequest(method, target string, payload interface{}) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func (env *testEnv) seedAccount(t *testing.T, email, username, password string) *models.Account {
	salt, err := hash.NewSalt()
	require.NoError(t, err)
	pwHash, err := hash.HashPassword(salt + password)
	require.NoError(t, err)
	acc := models.Account{Email: email, Username: username, PasswordHash: pwHash, Salt: salt}
	require.NoError(t, env.DB.Create(&acc).Error)
	return &acc
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	t.Fatal("refreshToken cookie not set")
	return nil
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	req, rec := env.jsonRequest(http.MethodPost, "/register", map[string]string{
		"email":    "test@test.io",
		"username": "test_user",
		"password": "password",
	})
	c := env.E.NewContext(req, rec)

	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var account models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	assert.Equal(t, "test_user", account.Username)
	assert.NotEmpty(t, account.ID)

	var stored models.Account
	require.NoError(t, env.DB.First(&stored, account.ID).Error)
	assert.NotEqual(t, "password", stored.PasswordHash)
	assert.NotEmpty(t, stored.Salt)

	// Same email again: conflict.
	req, rec = env.jsonRequest(http.MethodPost, "/register", map[string]string{
		"email":    "test@test.io",
		"username": "another_user",
		"password": "password",
	})
	err := env.Auth.Register(env.E.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, he.Code)
}

func TestRegister_DuplicateInsertIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seedAccount(t, "dup@test.io", "dup", "secret")

	// A concurrent registration can slip past the existence check and hit
	// the unique constraint on insert; that error must read as a conflict,
	// not a server error.
	clash := models.Account{Email: "dup@test.io", Username: "dup2", PasswordHash: "x", Salt: "y"}
	err := env.DB.Create(&clash).Error
	require.Error(t, err)
	assert.True(t, isDuplicateKey(err))
	assert.True(t, isDuplicateKey(gorm.ErrDuplicatedKey))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "a@test.io", "a", "secret")

	req, rec := env.jsonRequest(http.MethodPost, "/login", map[string]string{
		"email":    "a@test.io",
		"password": "secret",
	})
	c := env.E.NewContext(req, rec)

	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	var rows []models.RefreshToken
	require.NoError(t, env.DB.Where("account_id = ?", account.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, resp.RefreshToken, rows[0].Token)

	// Wrong password.
	req, rec = env.jsonRequest(http.MethodPost, "/login", map[string]string{
		"email":    "a@test.io",
		"password": "wrong",
	})
	err := env.Auth.Login(env.E.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLogin_BannedAccount(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "banned@test.io", "banned", "secret")
	require.NoError(t, env.DB.Model(account).Update("banned", true).Error)

	req, rec := env.jsonRequest(http.MethodPost, "/login", map[string]string{
		"email":    "banned@test.io",
		"password": "secret",
	})
	err := env.Auth.Login(env.E.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)
}

func TestRefresh_RotatesAndInvalidatesOldToken(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "a@test.io", "a", "secret")

	pair, err := env.Sessions.IssueInitialPair(
		context.Background(), account, "1.2.3.4", "cli/1.0")
	require.NoError(t, err)

	req, rec := env.jsonRequest(http.MethodPost, "/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.RefreshToken})
	c := env.E.NewContext(req, rec)

	require.NoError(t, env.Auth.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	newCookie := refreshCookie(t, rec)
	assert.NotEqual(t, pair.RefreshToken, newCookie.Value)

	// The consumed token no longer refreshes.
	req, rec = env.jsonRequest(http.MethodPost, "/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.RefreshToken})
	err = env.Auth.Refresh(env.E.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLogOut(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "a@test.io", "a", "secret")

	pair, err := env.Sessions.IssueInitialPair(
		context.Background(), account, "1.2.3.4", "cli/1.0")
	require.NoError(t, err)

	req, rec := env.jsonRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.RefreshToken})
	c := env.E.NewContext(req, rec)
	c.Set("accountID", account.ID)

	require.NoError(t, env.Auth.LogOut(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.RefreshToken{}).
		Where("account_id = ?", account.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLogOutAll(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "a@test.io", "a", "secret")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.Sessions.IssueInitialPair(ctx, account, "1.2.3.4", "cli/1.0")
		require.NoError(t, err)
	}

	req, rec := env.jsonRequest(http.MethodPost, "/logout/all", nil)
	c := env.E.NewContext(req, rec)
	c.Set("accountID", account.ID)

	require.NoError(t, env.Auth.LogOutAll(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.RefreshToken{}).
		Where("account_id = ?", account.ID).Count(&count).Error)
	assert.Zero(t, count)
}
