package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/AnsonZhang2009/playground-todo-list/internal/config"
	handlers "github.com/AnsonZhang2009/playground-todo-list/internal/http"
	taskMiddleware "github.com/AnsonZhang2009/playground-todo-list/internal/middleware"
	"github.com/AnsonZhang2009/playground-todo-list/internal/repository"
	"github.com/AnsonZhang2009/playground-todo-list/internal/service"
	"github.com/AnsonZhang2009/playground-todo-list/shared/logger"
	"github.com/AnsonZhang2009/playground-todo-list/shared/middleware"
)

func main() {
	logrusLogger := logger.Init("tasks")

	cfg, err := config.Load()
	if err != nil {
		logrusLogger.WithError(err).Fatal("failed to load config")
	}

	repo, err := repository.NewSQLTaskRepository(cfg.DB.Driver, cfg.DB.DSN())
	if err != nil {
		logrusLogger.WithError(err).Fatal("failed to connect to database")
	}
	defer repo.Close()

	if err := repo.Init(context.Background()); err != nil {
		logrusLogger.WithError(err).Fatal("failed to initialize schema")
	}

	taskService := service.NewTaskService(repo)
	taskHandler := handlers.NewTaskHandler(taskService, logrusLogger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", taskHandler.CreateTask)
	mux.HandleFunc("GET /tasks", taskHandler.ListTasks)
	mux.HandleFunc("GET /tasks/{id}", taskHandler.GetTask)
	mux.HandleFunc("PATCH /tasks/{id}", taskHandler.UpdateTask)
	mux.HandleFunc("DELETE /tasks/{id}", taskHandler.DeleteTask)
	mux.Handle("GET /metrics", taskMiddleware.MetricsHandler())

	// Middleware chain (order matters)
	handler := middleware.RequestIDMiddleware(mux)
	handler = taskMiddleware.SecurityHeadersMiddleware(handler)
	handler = taskMiddleware.MetricsMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)

	addr := fmt.Sprintf(":%s", cfg.Port)
	logrusLogger.WithFields(logrus.Fields{
		"port":   cfg.Port,
		"driver": cfg.DB.Driver,
	}).Info("tasks service starting")
	if err := http.ListenAndServe(addr, handler); err != nil {
		logrusLogger.WithError(err).Fatal("server failed")
	}
}
