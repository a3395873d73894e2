package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const corsMaxAge = 10 * time.Minute

// CORS allows browser clients whose origin matches pattern.
// Preflight requests are answered here and never reach the routes.
func CORS(pattern *regexp.Regexp) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Response().Header()
			header.Add(echo.HeaderVary, echo.HeaderOrigin)
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin == "" || !pattern.MatchString(origin) {
				return next(c)
			}
			header.Set(echo.HeaderAccessControlAllowOrigin, origin)
			header.Set(echo.HeaderAccessControlExposeHeaders, echo.HeaderXRequestID)

			if c.Request().Method != http.MethodOptions {
				return next(c)
			}
			// `*` alone does not cover Authorization in Safari
			header.Set(echo.HeaderAccessControlAllowHeaders, "*, Authorization")
			header.Set(echo.HeaderAccessControlAllowMethods, "OPTIONS, GET, POST, PUT, DELETE")
			header.Set(echo.HeaderAccessControlMaxAge, strconv.Itoa(int(corsMaxAge.Seconds())))
			return c.NoContent(http.StatusNoContent)
		}
	}
}
