// Package api serves the CSV export API and the sequence generator over
// HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"imisexport/internal/apperr"
	"imisexport/internal/export"
	"imisexport/internal/sequence"
)

// UserHeader carries the name of the requesting user. Authentication
// happens upstream; the value is only logged with each export.
const UserHeader = "X-Imis-User"

// Exporter produces CSV exports.
type Exporter interface {
	Export(ctx context.Context, user string, req export.Request) (string, error)
	Path(name string) (string, error)
}

// Sequencer allocates facility identifiers.
type Sequencer interface {
	FetchNext(ctx context.Context, hfID int64, field sequence.Field) (int64, error)
}

// Server is the HTTP front end.
type Server struct {
	echo   *echo.Echo
	export Exporter
	seq    Sequencer
	logger zerolog.Logger
}

// New builds the router. Either dependency may be nil, in which case its
// routes answer 503.
func New(exp Exporter, seq Sequencer) *Server {
	s := &Server{
		echo:   echo.New(),
		export: exp,
		seq:    seq,
		logger: log.With().Str("component", "api").Logger(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(recovery(s.logger))
	s.echo.Use(middleware.RequestID())
	s.echo.Use(requestLogger(s.logger))

	s.echo.GET("/healthz", s.healthz)
	g := s.echo.Group("/api")
	g.POST("/exports/:field", s.createExport)
	g.GET("/exports/files/:name", s.downloadExport)
	g.POST("/facilities/:hf/insuree-ids", s.nextID(sequence.FieldInsureeID))
	g.POST("/facilities/:hf/claim-ids", s.nextID(sequence.FieldClaimID))
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Serve listens on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Serve(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createExport(c echo.Context) error {
	if s.export == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "exports are not configured")
	}
	var req export.Request
	if err := c.Bind(&req); err != nil {
		return err
	}
	req.Field = c.Param("field")

	user := c.Request().Header.Get(UserHeader)
	if user == "" {
		user = "anonymous"
	}
	name, err := s.export.Export(c.Request().Context(), user, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]string{"file": name})
}

func (s *Server) downloadExport(c echo.Context) error {
	if s.export == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "exports are not configured")
	}
	name := c.Param("name")
	path, err := s.export.Path(name)
	if err != nil {
		return err
	}
	return c.Attachment(path, name)
}

func (s *Server) nextID(field sequence.Field) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.seq == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "sequence generator is not configured")
		}
		hf, err := strconv.ParseInt(c.Param("hf"), 10, 64)
		if err != nil || hf <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "health facility id must be a positive integer")
		}
		v, err := s.seq.FetchNext(c.Request().Context(), hf, field)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]int64{"value": v})
	}
}

// handleError renders every failure as {"error": message} with a status
// derived from the apperr kind.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := "internal server error"

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
		msg = http.StatusText(status)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	default:
		switch apperr.KindOf(err) {
		case apperr.KindConfig, apperr.KindFormat:
			status, msg = http.StatusBadRequest, err.Error()
		case apperr.KindNotFound:
			status, msg = http.StatusNotFound, err.Error()
		default:
			s.logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, map[string]string{"error": msg})
}
