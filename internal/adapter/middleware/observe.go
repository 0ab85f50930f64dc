package middleware

import (
	"time"

	"library-backend/internal/infrastructure/metrics"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// status resolves the final code, including errors echo has not rendered yet.
func status(c echo.Context, err error) int {
	code := c.Response().Status
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		} else if !c.Response().Committed {
			code = 500
		}
	}
	return code
}

// RequestLogger writes one logrus entry per request.
func RequestLogger(log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			code := status(c, err)
			entry := log.WithFields(logrus.Fields{
				"method":     req.Method,
				"path":       c.Path(),
				"uri":        req.RequestURI,
				"status":     code,
				"latency_ms": time.Since(start).Milliseconds(),
				"remote_ip":  c.RealIP(),
				"request_id": req.Header.Get("Ax-Request-Id"),
			})
			switch {
			case code >= 500:
				entry.WithError(err).Error("request")
			case code >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return err
		}
	}
}

// Metrics records request count and latency per route template.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			metrics.RecordHTTPRequest(c.Request().Method, path, status(c, err), time.Since(start))
			return err
		}
	}
}
