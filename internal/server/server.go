package server

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"github.com/nguyentranbao-ct/family-chat/internal/config"
	pkgmdw "github.com/nguyentranbao-ct/family-chat/internal/server/middleware"
	"github.com/nguyentranbao-ct/family-chat/pkg/logger"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
)

func StartServer(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	conf *config.Config,
	handler Controller,
) error {
	e, err := newEcho(conf, handler)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Infow(ctx, "starting HTTP server", "addr", conf.Server.Addr)
				if err := e.Start(conf.Server.Addr); !errors.Is(err, http.ErrServerClosed) {
					log.Errorw(context.Background(), "HTTP server stopped", "error", err)
					_ = sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
	return nil
}

func newEcho(conf *config.Config, handler Controller) (*echo.Echo, error) {
	corsPattern, err := regexp.Compile(conf.Server.CORSPattern)
	if err != nil {
		return nil, err
	}
	httpLogger := logger.MustNamed("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = pkgmdw.NewValidator()
	e.HTTPErrorHandler = pkgmdw.ErrorHandler(httpLogger)

	logConfig := pkgmdw.LogRequestConfig{
		Logger: httpLogger,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/health" || path == "/metrics"
		},
		// message bodies and search terms stay out of access logs
		RequestBody: func(c echo.Context) bool {
			return !strings.HasSuffix(c.Path(), "/messages")
		},
		Query: func(c echo.Context) bool {
			return c.Path() != "/api/v1/messages/search"
		},
	}

	e.Use(pkgmdw.Metrics())
	e.Use(pkgmdw.RequestID())
	e.Use(pkgmdw.CORS(corsPattern))
	e.Use(pkgmdw.LogRequest(logConfig))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Errorw(c.Request().Context(), "PANIC RECOVER", "error", err, "stack", string(stack))
			return err
		},
	}))

	e.GET("/health", handler.Health)

	api := e.Group("/api/v1", pkgmdw.JWTAuth(conf.Server.JWTSecret))
	api.GET("/chats", handler.ListChats)
	api.POST("/chats/dm", handler.CreateDM)
	api.POST("/chats/group", handler.CreateGroup)
	api.GET("/chats/:id", handler.GetChat)
	api.DELETE("/chats/:id/messages", handler.ClearChat)
	api.GET("/chats/:id/members", handler.ListMembers)
	api.POST("/chats/:id/members", handler.AddMembers)
	api.DELETE("/chats/:id/members/:user_id", handler.RemoveMember)
	api.PUT("/chats/:id/read", handler.UpdateReadCursor)
	api.GET("/chats/:id/messages", handler.ListMessages)
	api.POST("/chats/:id/messages", handler.CreateMessage)
	api.GET("/messages/search", handler.SearchMessages)

	return e, nil
}
