// Package resthttp exposes the instance engine as a JSON HTTP API. Routes
// are scoped per ontology; error bodies follow the shared taxonomy.
package resthttp

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/database"
	"github.com/ontoforge/ontoforge-go/internal/runtime"
)

// Server is the REST transport.
type Server struct {
	echo *echo.Echo
	svc  *runtime.Service
	db   *database.DBManager
	log  *slog.Logger
}

// New builds the HTTP server with routing and middleware wired.
func New(svc *runtime.Service, db *database.DBManager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("http request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(log)

	s := &Server{echo: e, svc: svc, db: db, log: log}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.handleHealthz)

	api := s.echo.Group("/api/ontologies/:ontology")
	api.GET("/schema", s.handleGetSchema)
	api.PUT("/schema", s.handleProvision)

	api.POST("/entities/:type", s.handleCreateEntity)
	api.GET("/entities/:type", s.handleListEntities)
	api.GET("/entities/:type/:id", s.handleGetEntity)
	api.PATCH("/entities/:type/:id", s.handleUpdateEntity)
	api.DELETE("/entities/:type/:id", s.handleDeleteEntity)
	api.GET("/entities/:type/:id/neighbors", s.handleNeighbors)

	api.POST("/relations/:type", s.handleCreateRelation)
	api.GET("/relations/:type", s.handleListRelations)
	api.GET("/relations/:type/:id", s.handleGetRelation)
	api.PATCH("/relations/:type/:id", s.handleUpdateRelation)
	api.DELETE("/relations/:type/:id", s.handleDeleteRelation)

	api.POST("/search", s.handleSearch)
	api.POST("/wipe", s.handleWipe)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() *echo.Echo { return s.echo }

// Start begins serving on addr, blocking until shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
