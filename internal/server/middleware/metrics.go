package middleware

import (
	"reflect"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nguyentranbao-ct/family-chat/pkg/util"
)

const (
	httpRequestsDuration = "request_duration_seconds"
	metricsPath          = "/metrics"
	notFoundRoute        = "/not-found"
)

// Metrics serves /metrics and observes request latency per route template.
func Metrics() echo.MiddlewareFunc {
	histogram, err := registerHTTPMetrics()
	if err != nil {
		panic(err)
	}
	promHandler := echo.WrapHandler(promhttp.Handler())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == metricsPath {
				return promHandler(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				// commit the response so the status below is final
				c.Error(err)
			}

			histogram.
				WithLabelValues(strconv.Itoa(c.Response().Status), c.Request().Method, routeOf(c)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// routeOf keeps label cardinality bounded: unmatched paths share one label.
func routeOf(c echo.Context) string {
	if c.Path() == "" || isNotFoundHandler(c.Handler()) {
		return notFoundRoute
	}
	return c.Path()
}

func isNotFoundHandler(handler echo.HandlerFunc) bool {
	return reflect.ValueOf(handler).Pointer() == reflect.ValueOf(echo.NotFoundHandler).Pointer()
}

func registerHTTPMetrics() (*prometheus.HistogramVec, error) {
	return util.GetHistogramVec(httpRequestsDuration, "code", "method", "path")
}
