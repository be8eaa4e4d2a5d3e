package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quillworks/quill/engine"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
)

// Server is the local HTTP surface the collector talks to: submit an item,
// read engine status, health-check.
type Server struct {
	eng    *engine.Engine
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
}

func NewServer(eng *engine.Engine, logger *slog.Logger, bind string) *Server {
	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		eng:    eng,
		echo:   e,
		logger: logger,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/healthz", srv.HandleHealthCheck)
	e.GET("/status", srv.HandleStatus)
	e.POST("/evaluate", srv.HandleEvaluate)

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// RunAPI serves until the context ends, then drains connections.
func (srv *Server) RunAPI(ctx context.Context) error {
	srv.logger.Info("starting API server", "bind", srv.httpd.Addr)

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.httpd.Shutdown(sctx); err != nil {
			srv.logger.Error("API server shutdown", "err", err)
		}
	}()

	if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	if !srv.eng.Ready() {
		return c.JSON(503, GenericStatus{Daemon: "quill", Status: "degraded", Message: "engine not ready"})
	}
	return c.JSON(200, GenericStatus{Daemon: "quill", Status: "ok"})
}

func (srv *Server) HandleStatus(c echo.Context) error {
	return c.JSON(200, srv.eng.Status(c.Request().Context()))
}

// HandleEvaluate runs one collector-submitted post through the decision
// pipeline and returns the verdict. Skips are 200s with a skip_reason; only
// undecided items (bad payload, engine not ready, failed action call) are
// non-200.
func (srv *Server) HandleEvaluate(c echo.Context) error {
	ctx := c.Request().Context()

	var in postInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidPayload",
			Message: fmt.Sprintf("%s", err),
		})
	}
	item, err := in.item(time.Now())
	if err != nil {
		return c.JSON(400, GenericError{
			Error:   "InvalidPayload",
			Message: err.Error(),
		})
	}

	verdict, err := srv.eng.ProcessItem(ctx, item)
	if err != nil {
		if errors.Is(err, engine.ErrNotReady) {
			return c.JSON(503, GenericError{
				Error:   "NotReady",
				Message: err.Error(),
			})
		}
		return c.JSON(502, GenericError{
			Error:   "ActionFailed",
			Message: err.Error(),
		})
	}
	return c.JSON(200, verdict)
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("quill-http-internal-error", "err", err)
	}
	if !c.Response().Committed {
		c.JSON(code, GenericStatus{Daemon: "quill", Status: "error", Message: errorMessage})
	}
}
