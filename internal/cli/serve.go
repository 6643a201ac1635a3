package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/guard"
	"github.com/tiqology/superapp-go/internal/app"
	"github.com/tiqology/superapp-go/middleware/ginmw"
)

func newServeCmd(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local console server",
		Long: "Run a local HTTP server that holds one session and gates its routes by role:\n" +
			"TrustShield routes need the security role, enterprise routes need owner or admin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				g.cfg.ServeAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return g.withApp(ctx, func(a *app.App) error {
				if g.cfg.LogLevel != "debug" {
					gin.SetMode(gin.ReleaseMode)
				}
				srv := &http.Server{
					Addr:              g.cfg.ServeAddr,
					Handler:           newConsole(a, g.logger),
					ReadHeaderTimeout: 10 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					g.logger.Info("console listening", "addr", srv.Addr, "metrics", a.Registry != nil)
					errCh <- srv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
				}

				g.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (or TIQOLOGY_SERVE_ADDR env)")
	return cmd
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// newConsole builds the console router over a.
func newConsole(a *app.App, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), ginmw.RequestID(), accessLog(logger), ginmw.Session(a.Session))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if a.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, newSessionView(a.Session.Current()))
	})
	api.POST("/login", func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": tiqology.MsgValidation})
			return
		}
		if err := a.Session.Login(c.Request.Context(), req.Email, req.Password); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, newSessionView(a.Session.Current()))
	})
	api.POST("/logout", func(c *gin.Context) {
		a.Session.Logout(c.Request.Context())
		c.JSON(http.StatusOK, newSessionView(a.Session.Current()))
	})

	authed := api.Group("", ginmw.RequireAuth())
	authed.GET("/dashboard", func(c *gin.Context) {
		snap, err := a.Dashboard.Snapshot(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	})
	authed.GET("/organizations", listOrganizations(a, logger))
	authed.GET("/organizations/:id", func(c *gin.Context) {
		org, err := a.Orgs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, org)
	})

	api.GET("/trustshield/insights", ginmw.RequireArea(guard.AreaTrustShield), func(c *gin.Context) {
		res, err := a.AI.Ask(c.Request.Context(), tiqology.AgentSentinel, "Summarize current security insights", nil)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
	api.GET("/enterprise/organizations", ginmw.RequireArea(guard.AreaEnterprise), listOrganizations(a, logger))

	return r
}

func listOrganizations(a *app.App, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgs, err := a.Orgs.List(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, tiqology.OrganizationsResponse{Organizations: orgs})
	}
}

// respondError renders err as {"error": message}. Only the user-facing message
// of a *tiqology.Error reaches the client.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var e *tiqology.Error
	if !errors.As(err, &e) {
		logger.Error("unhandled error", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": tiqology.MsgGeneric})
		return
	}
	c.JSON(statusFor(e), gin.H{"error": e.Message})
}

func statusFor(e *tiqology.Error) int {
	switch e.Kind {
	case tiqology.KindValidation:
		return http.StatusUnprocessableEntity
	case tiqology.KindAuth:
		return http.StatusUnauthorized
	case tiqology.KindForbidden:
		return http.StatusForbidden
	case tiqology.KindNotFound:
		return http.StatusNotFound
	case tiqology.KindTimeout:
		return http.StatusGatewayTimeout
	case tiqology.KindNetwork, tiqology.KindServer, tiqology.KindInvalidResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", ginmw.GetRequestID(c),
		)
	}
}
