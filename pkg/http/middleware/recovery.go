package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "NetflowWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

const maxStack = 4 << 10

// Recover turns a handler panic into the usual error envelope and logs the
// stack. http.ErrAbortHandler is re-panicked so net/http can abort the conn.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("panic: %v", r)
				}
				if l != nil {
					stack := debug.Stack()
					if len(stack) > maxStack {
						stack = stack[:maxStack]
					}
					l.Error("panic recovered",
						applogger.Error(perr),
						applogger.String("request_id", requestID(c)),
						applogger.String("route", routeOf(c)),
						applogger.String("stack", string(stack)),
					)
				}
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusOK, map[string]any{
					"status":     http.StatusInternalServerError,
					"message":    "Something went wrong",
					"request_id": requestID(c),
				})
			}()
			return next(c)
		}
	}
}
