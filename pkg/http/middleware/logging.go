package middleware

import (
	"time"

	applogger "NetflowWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AccessLog logs one line per request. Paths in quiet (scrape and probe
// endpoints) log at debug so they do not drown the API traffic.
func AccessLog(l *applogger.Logger, quiet ...string) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			if l == nil {
				return nil
			}

			req, res := c.Request(), c.Response()
			log := l.Info
			if skip[req.URL.Path] {
				log = l.Debug
			}
			log("http request",
				applogger.String("request_id", requestID(c)),
				applogger.String("method", req.Method),
				applogger.String("route", routeOf(c)),
				applogger.String("query", req.URL.RawQuery),
				applogger.Int("status", res.Status),
				applogger.Int64("bytes", res.Size),
				applogger.Duration("latency", time.Since(start)),
			)
			return nil
		}
	}
}

// routeOf returns the matched route template, never the raw path, so label
// and log cardinality stay bounded.
func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
