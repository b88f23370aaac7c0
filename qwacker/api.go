package qwacker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const (
	apiPathHealth  = "/health"
	apiPathVersion = "/version"
	apiPathLastRun = "/runs/last"
)

// API is the read-only status server. It exposes liveness, build info
// and a snapshot of the most recent provisioning run. It never mutates
// bot state, so it carries no auth.
type API struct {
	config     *APIConfig
	httpServer *http.Server
	listener   net.Listener
	engine     *gin.Engine
	logger     *slog.Logger

	q *Qwacker
}

type versionResponse struct {
	Version   string `json:"version"`
	CommitSHA string `json:"commit_sha"`
	BuildTime string `json:"build_time"`
}

type healthResponse struct {
	Status             string `json:"status"`
	Connected          bool   `json:"discord_connected"`
	GatewayConnects    int64  `json:"gateway_connects"`
	GatewayDisconnects int64  `json:"gateway_disconnects"`
}

// newAPI initializes the status API server with its routes and
// middleware. It does not start listening; call Serve for that.
func newAPI(q *Qwacker, config *APIConfig) *API {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	api := &API{
		config: config,
		engine: r,
		q:      q,
		logger: slog.New(
			tint.NewHandler(
				defaultLogWriter, &tint.Options{
					Level:     config.LogLevel,
					AddSource: true,
				},
			),
		).With(loggerNameKey, "api"),
	}

	api.httpServer = &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	r.Use(gin.Recovery(), apiLoggingMiddleware(api.logger))

	r.GET(apiPathHealth, api.healthCheck)
	r.GET(apiPathVersion, api.version)
	r.GET(apiPathLastRun, api.lastRun)

	return api
}

// Serve listens on the configured address and serves until the server
// is shut down.
func (a *API) Serve(ctx context.Context) error {
	if a.listener == nil {
		listenCfg := &net.ListenConfig{}
		ln, err := listenCfg.Listen(ctx, a.config.ListenNetwork, a.config.Listen)
		if err != nil {
			return fmt.Errorf("error listening on %s: %w", a.config.Listen, err)
		}
		a.listener = ln
	}
	a.logger.Info("status api listening", "address", a.config.Listen)
	return a.httpServer.Serve(a.listener)
}

// Shutdown gracefully stops the status API server.
func (a *API) Shutdown(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("error shutting down status api", tint.Err(err))
	}
}

func (a *API) healthCheck(c *gin.Context) {
	c.JSON(
		http.StatusOK, healthResponse{
			Status:             "ok",
			Connected:          a.q.discord.connected.Load(),
			GatewayConnects:    a.q.discord.metricConnects.Load(),
			GatewayDisconnects: a.q.discord.metricDisconnects.Load(),
		},
	)
}

func (a *API) version(c *gin.Context) {
	c.JSON(
		http.StatusOK, versionResponse{
			Version:   Version,
			CommitSHA: CommitSHA,
			BuildTime: BuildTime,
		},
	)
}

func (a *API) lastRun(c *gin.Context) {
	run, ok := a.q.LastSetupRun()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no setup runs yet"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// apiLoggingMiddleware logs each request's method, path, status and
// duration.
func apiLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(
			fmt.Sprintf("%s %s finished", c.Request.Method, c.Request.URL),
			"duration", time.Since(start),
			slog.Group(
				"response",
				"status_code", c.Writer.Status(),
				"body_size", c.Writer.Size(),
			),
		)
	}
}
