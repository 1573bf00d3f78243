package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"studio-cli/internal/remote"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Options struct {
	Address        string
	Store          remote.Store
	Logger         *zap.Logger
	DisableReqLogs bool
}

// Server exposes a block store over the JSON contract remote.HTTPStore speaks.
type Server struct {
	opts Options
	app  *echo.Echo
	log  *zap.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: missing store")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{opts: opts, app: echo.New(), log: log}
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !s.opts.DisableReqLogs {
		s.app.Use(s.requestLogger())
	}
	s.app.Use(middleware.Recover())
	s.app.HTTPErrorHandler = newHTTPErrorHandler(s.log)

	s.app.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := blockAPI{store: s.opts.Store}
	s.app.GET("/xblock/:id", api.retrieve)
	s.app.POST("/xblock/:id", api.update)

	s.app.GET("/docs", listDocs)
	s.app.GET("/docs/:topic", showDoc)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	})
}

func (s *Server) Handler() http.Handler { return s.app }

func (s *Server) Start() error {
	addr := strings.TrimSpace(s.opts.Address)
	if addr == "" {
		addr = "127.0.0.1:8010"
	}
	s.log.Info("serving", zap.String("addr", addr))
	if err := s.app.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

type blockAPI struct {
	store remote.Store
}

func blockID(c echo.Context) (string, error) {
	raw := c.Param("id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "malformed block id")
	}
	return strings.TrimSpace(id), nil
}

func (api blockAPI) retrieve(c echo.Context) error {
	id, err := blockID(c)
	if err != nil {
		return err
	}
	n, err := api.store.Fetch(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (api blockAPI) update(c echo.Context) error {
	id, err := blockID(c)
	if err != nil {
		return err
	}
	var u remote.Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed update body")
	}
	if u.IsEmpty() {
		return echo.NewHTTPError(http.StatusBadRequest, "empty update")
	}
	if err := api.store.UpdateFields(c.Request().Context(), id, u); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id})
}
