package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ntalakanov/taskboard/internal/handlers"
	mwauth "github.com/ntalakanov/taskboard/internal/middleware/auth"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	ProjectHandler *handlers.ProjectHandler
	BoardHandler   *handlers.BoardHandler
	TaskHandler    *handlers.TaskHandler
	SearchHandler  *handlers.SearchHandler
	AccessSecret   []byte
	TokenIssuer    string
	TokenAudience  string
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/refresh", d.AuthHandler.Refresh)

	authed := v1.Group("", mwauth.RequireLogin(d.AccessSecret, d.TokenIssuer, d.TokenAudience))

	authed.POST("/logout", d.AuthHandler.LogOut)
	authed.POST("/logout/all", d.AuthHandler.LogOutAll)

	projects := authed.Group("/projects")

	projects.POST("", d.ProjectHandler.CreateProject)
	projects.GET("", d.ProjectHandler.ListMyProjects)
	projects.GET("/:id", d.ProjectHandler.GetProject)
	projects.PATCH("/:id", d.ProjectHandler.RenameProject)
	projects.DELETE("/:id", d.ProjectHandler.DeleteProject)

	projects.GET("/:id/members", d.ProjectHandler.ListMembers)
	projects.POST("/:id/members", d.ProjectHandler.AddMember)
	projects.DELETE("/:id/members/:accountID", d.ProjectHandler.KickMember)
	projects.POST("/:id/roles", d.ProjectHandler.GrantRole)
	projects.DELETE("/:id/roles", d.ProjectHandler.RevokeRole)
	projects.POST("/:id/owner", d.ProjectHandler.TransferOwnership)

	projects.POST("/:id/boards", d.BoardHandler.CreateBoard)
	projects.GET("/:id/boards", d.BoardHandler.ListBoards)
	projects.GET("/:id/search", d.SearchHandler.SearchTasks)

	boards := authed.Group("/boards")

	boards.PATCH("/:boardID", d.BoardHandler.RenameBoard)
	boards.DELETE("/:boardID", d.BoardHandler.DeleteBoard)
	boards.POST("/:boardID/tasks", d.TaskHandler.CreateTask)
	boards.GET("/:boardID/tasks", d.TaskHandler.ListTasks)

	tasks := authed.Group("/tasks")

	tasks.PATCH("/:taskID", d.TaskHandler.UpdateTask)
	tasks.POST("/:taskID/move", d.TaskHandler.MoveTask)
	tasks.DELETE("/:taskID", d.TaskHandler.DeleteTask)
}
