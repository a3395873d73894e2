package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// maxLoggedBody caps how much of a JSON request body lands in the access log.
const maxLoggedBody = 4 << 10

// LogRequestConfig selects what the access log records.
// RequestBody and Query default to off.
type LogRequestConfig struct {
	Logger      Logger
	Skipper     Skipper
	RequestBody func(c echo.Context) bool
	Query       func(c echo.Context) bool
}

// LogRequest writes one access log line per request, at warn for 4xx and
// error for 5xx.
func LogRequest(config LogRequestConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		panic("Logger is required to use LogRequest")
	}
	if config.Skipper == nil {
		config.Skipper = DefaultSkipper
	}
	off := func(echo.Context) bool { return false }
	if config.RequestBody == nil {
		config.RequestBody = off
	}
	if config.Query == nil {
		config.Query = off
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			start := time.Now()
			req := c.Request()
			var body json.RawMessage
			if config.RequestBody(c) {
				body = readJSONBody(c)
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status

			args := []any{
				"status", status,
				"method", req.Method,
				"route", c.Path(),
				"uri", req.URL.Path,
				"latency_ms", time.Since(start).Milliseconds(),
				"real_ip", c.RealIP(),
				"request_id", GetRequestID(c),
			}
			if userID := GetUserID(c); userID != "" {
				args = append(args, "user_id", userID)
			}
			if names := c.ParamNames(); len(names) > 0 {
				params := make(map[string]string, len(names))
				for _, name := range names {
					params[name] = c.Param(name)
				}
				args = append(args, "params", params)
			}
			if config.Query(c) && req.URL.RawQuery != "" {
				args = append(args, "query", req.URL.RawQuery)
			}
			if len(body) > 0 {
				args = append(args, "request_body", body)
			}

			switch {
			case status >= 500:
				if err != nil {
					args = append(args, "error", err.Error())
				}
				config.Logger.Errorw("request", args...)
			case status >= 400:
				config.Logger.Warnw("request", args...)
			default:
				config.Logger.Infow("request", args...)
			}
			return err
		}
	}
}

// readJSONBody returns a JSON body for logging and restores it for the handler.
// Oversized or invalid bodies are not logged.
func readJSONBody(c echo.Context) json.RawMessage {
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return nil
	}
	raw, err := io.ReadAll(req.Body)
	req.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 || len(raw) > maxLoggedBody || !json.Valid(raw) {
		return nil
	}
	return raw
}
