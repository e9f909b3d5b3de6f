// Package admind serves the read-mostly admin HTTP API of the IRC server:
// health, stats, channel overview, Prometheus metrics and message relay.
package admind

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/presbrey/ircserv/echovalidator"
	"github.com/presbrey/ircserv/irc"
	"github.com/presbrey/ircserv/irc/server"
)

// IRC is the part of *server.Server the admin API needs. Every method must
// be safe to call from HTTP handler goroutines.
type IRC interface {
	Stats() server.Stats
	Metrics() *server.Metrics
	Relay(channel, text string) error
}

type Server struct {
	irc  IRC
	addr string
	log  *slog.Logger

	echoServer *echo.Echo
	requests   *prometheus.CounterVec
}

// New builds the admin server for addr. Request counters are registered on
// the IRC server's metrics registry so /metrics exposes both.
func New(addr string, ircServer IRC, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		irc:  ircServer,
		addr: addr,
		log:  logger,
		requests: promauto.With(ircServer.Metrics().Registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircserv",
			Subsystem: "admin",
			Name:      "http_requests_total",
			Help:      "Admin HTTP requests by method, route and status code.",
		}, []string{"method", "path", "code"}),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	echovalidator.Setup(e)
	e.Use(s.observe)
	s.route(e)
	s.echoServer = e

	return s
}

func (s *Server) route(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/stats", s.handleStats)
	e.GET("/channels", s.handleChannels)
	e.POST("/channels/:name/messages", s.handleRelay)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
		s.irc.Metrics().Registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("admin server listening", "addr", s.addr)
		errCh <- s.echoServer.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("admin server stopping")
		return s.echoServer.Shutdown(shutdownCtx)
	}
}

// observe counts requests and logs them at debug level.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		s.requests.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).Inc()
		s.log.Debug("admin request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", status,
			"duration", time.Since(start))
		return nil
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.irc.Stats())
}

func (s *Server) handleChannels(c echo.Context) error {
	channels := s.irc.Stats().ChannelList
	if channels == nil {
		channels = []server.ChannelStats{}
	}
	return c.JSON(http.StatusOK, channels)
}

type relayRequest struct {
	Text string `json:"text" validate:"required,max=400"`
}

// handleRelay queues a server message to a channel. The channel may be
// given without its prefix, e.g. /channels/ops/messages for #ops.
func (s *Server) handleRelay(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid channel name")
	}
	if !irc.IsChannelName(name) {
		name = "#" + name
	}

	var req relayRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if !s.channelExists(name) {
		return echo.NewHTTPError(http.StatusNotFound, "channel "+name+" does not exist")
	}
	if err := s.irc.Relay(name, req.Text); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusAccepted, map[string]string{"channel": name, "status": "queued"})
}

func (s *Server) channelExists(name string) bool {
	for _, ch := range s.irc.Stats().ChannelList {
		if ch.Name == name {
			return true
		}
	}
	return false
}
