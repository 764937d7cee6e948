// Package gateway is the edge process: it authenticates requests with the fiber gate and
// reverse-proxies them to the backend named by the route table.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/auth/fibergate"
	"github.com/campusnet/academic-platform/internal/events"
	"github.com/campusnet/academic-platform/internal/observability"
)

// Options bundles gateway dependencies.
type Options struct {
	Name         string
	Version      string
	Table        *Table
	Codec        auth.Verifier
	Resolver     *auth.Resolver
	PublicPaths  auth.PathMatcher
	CORS         fibergate.CORS
	ProxyTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Dispatcher   events.Dispatcher
}

// Gateway holds the assembled fiber app.
type Gateway struct {
	app     *fiber.App
	table   *Table
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New assembles the edge app.
func New(opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}
	if opts.ProxyTimeout <= 0 {
		opts.ProxyTimeout = 15 * time.Second
	}

	g := &Gateway{
		table:   opts.Table,
		timeout: opts.ProxyTimeout,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	g.app = fiber.New(fiber.Config{
		AppName:               opts.Name,
		DisableStartupMessage: true,
		ErrorHandler:          g.errorHandler,
	})

	gate := auth.NewGate(auth.AnyOf(opts.PublicPaths, opts.Table), opts.Codec, opts.Resolver)

	g.app.Use(requestID)
	g.app.Use(observability.RequestLogger(opts.Logger, opts.Metrics))
	g.app.Use(g.recoverer)
	g.app.Use(fibergate.New(fibergate.Config{
		Gate:   gate,
		CORS:   opts.CORS,
		Logger: opts.Logger,
		Roles: func(c *fiber.Ctx) []auth.Role {
			return opts.Table.RolesFor(c.Path())
		},
		OnReject: func(c *fiber.Ctx, out auth.Outcome) {
			opts.Metrics.RecordAuth(out)
			if opts.Dispatcher == nil {
				return
			}
			// fiber strings are only valid inside the handler; the dispatcher may be async
			event := events.Rejection(out, utils.CopyString(c.Path()))
			event.RequestID = utils.CopyString(c.Get(observability.HeaderRequestID))
			_ = opts.Dispatcher.Publish(context.Background(), event)
		},
	}))

	g.app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive", "service": opts.Name, "version": opts.Version})
	})
	g.app.Get("/health/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ready", "routes": len(opts.Table.Routes())})
	})
	g.app.Get("/health/metrics", func(c *fiber.Ctx) error {
		return c.JSON(opts.Metrics.Snapshot())
	})
	g.app.All("/*", g.forward)

	return g
}

// App exposes the fiber app for Listen and tests.
func (g *Gateway) App() *fiber.App {
	return g.app
}

// Listen serves until Shutdown.
func (g *Gateway) Listen(addr string) error {
	return g.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.app.ShutdownWithContext(ctx)
}

func (g *Gateway) forward(c *fiber.Ctx) error {
	route, ok := g.table.Lookup(c.Path())
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no route for path")
	}
	if sc, ok := fibergate.Security(c); ok {
		g.metrics.RecordAuth(auth.Outcome{State: auth.StateAuthenticated, Security: sc})
	}

	target := route.Upstream + c.OriginalURL()
	if err := proxy.DoTimeout(c, target, g.timeout); err != nil {
		g.logger.Warn("upstream request failed",
			zap.String("route", route.Name),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return fiber.NewError(fiber.StatusBadGateway, "upstream unavailable")
	}
	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}

func (g *Gateway) errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	}
	if status >= fiber.StatusInternalServerError {
		g.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	g.metrics.RecordError(c.Path(), c.Method(), "HTTP_"+strconv.Itoa(status))
	return c.Status(status).JSON(fiber.Map{"error": http.StatusText(status), "message": message})
}

func (g *Gateway) recoverer(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fiber.ErrInternalServerError
		}
	}()
	return c.Next()
}

func requestID(c *fiber.Ctx) error {
	id := c.Get(observability.HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
		c.Request().Header.Set(observability.HeaderRequestID, id)
	}
	c.Set(observability.HeaderRequestID, id)
	return c.Next()
}
