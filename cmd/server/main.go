package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ntalakanov/taskboard/internal/authz"
	"github.com/ntalakanov/taskboard/internal/config"
	"github.com/ntalakanov/taskboard/internal/es"
	"github.com/ntalakanov/taskboard/internal/handlers"
	"github.com/ntalakanov/taskboard/internal/logging"
	"github.com/ntalakanov/taskboard/internal/mykafka"
	"github.com/ntalakanov/taskboard/internal/session"
	httpserver "github.com/ntalakanov/taskboard/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	accessSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	defer prod.Close()

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("elasticsearch init error: %v", err)
	}
	taskIndex := &es.TaskIndex{ES: esClient, Index: "tasks"}

	engine := authz.NewEngine(db)
	sessions := &session.Service{
		DB:            db,
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		Issuer:        configuration.TOKEN_ISSUER,
		Audience:      configuration.TOKEN_AUDIENCE,
		AccessTTL:     configuration.AccessTTL(),
		RefreshTTL:    configuration.RefreshTTL(),
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		DB:             db,
		AuthHandler:    &handlers.AuthHandler{DB: db, Sessions: sessions, Producer: prod},
		ProjectHandler: &handlers.ProjectHandler{DB: db, Authz: engine, Producer: prod, Index: taskIndex},
		BoardHandler:   &handlers.BoardHandler{DB: db, Authz: engine, Producer: prod, Index: taskIndex},
		TaskHandler:    &handlers.TaskHandler{DB: db, Authz: engine, Producer: prod, Index: taskIndex},
		SearchHandler:  &handlers.SearchHandler{Authz: engine, Index: taskIndex},
		AccessSecret:   accessSecret,
		TokenIssuer:    configuration.TOKEN_ISSUER,
		TokenAudience:  configuration.TOKEN_AUDIENCE,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
