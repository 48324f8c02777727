package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"simpleweb3/internal/config"
	"simpleweb3/internal/controller/handler"
	route "simpleweb3/internal/controller/routes"
	"simpleweb3/internal/logger"
	"simpleweb3/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/r3labs/sse/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Controller struct {
	Services   *service.Service
	Config     *config.Config
	handler    *handler.Handler
	stream     *sse.Server
	httpServer *http.Server
}

func NewController(cfg *config.Config, srvc *service.Service) *Controller {
	return &Controller{
		Config:   cfg,
		Services: srvc,
	}
}

// NewStream creates the SSE server carrying fee snapshots.
func NewStream() *sse.Server {
	stream := sse.New()
	stream.AutoReplay = false
	stream.CreateStream(handler.FeeStreamID)
	return stream
}

// NewRouter builds the gin engine with CORS and all routes.
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	router.Use(cors.New(corsCfg))

	route.RegisterRoutes(router, h)
	return router
}

// Serve runs the HTTP server and the fee poller until parent is cancelled or
// the process receives SIGINT/SIGTERM.
func (c *Controller) Serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	l := c.Services.Logger

	c.configureRouter()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("http server listening", logger.Fields{"addr": c.httpServer.Addr})
		if err := c.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if c.Services.Transactions != nil {
		g.Go(func() error {
			c.Services.Transactions.WatchFees(gctx, c.Config.Fees.PollInterval, c.handler.PublishFees)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting down http server")

		// open SSE subscribers would otherwise hold Shutdown until the deadline
		c.stream.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return c.httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	l.Info("http server stopped")
	return err
}

func (c *Controller) configureRouter() {
	var txService handler.TransactionService
	if c.Services.Transactions != nil {
		txService = c.Services.Transactions
	}
	c.stream = NewStream()
	c.handler = handler.NewHandler(c.Services.Exports, txService, c.stream, handler.Environment{
		HasGoogleCredentials: c.Config.GoogleCredentials != "",
		HasProjectID:         c.Config.GoogleProjectID != "",
	}, c.Services.Logger)

	router := NewRouter(c.Config, c.handler)

	// Exports may run for the full warehouse job timeout and the fee
	// stream stays open, so there is no write timeout.
	c.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", c.Config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
