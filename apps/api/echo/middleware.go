package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/jifunze/services/metrics"
)

// metricsMiddleware observes the latency of every routed request.
func metricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				// the error handler has not written the response yet
				status = statusOf(err)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(ctx.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
