package http

import (
	"net/http"
	"time"

	"library-backend/internal/infrastructure/metrics"

	"github.com/labstack/echo/v4"
)

type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Register mounts every route. guard wraps only the mutating ones.
func Register(e *echo.Echo, h *Handler, lh *LoanHandler, sh *StatisticsHandler, guard ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// static segments win over :loan_id in echo's router
	e.GET("/loans/active", sh.Active)
	e.GET("/loans/overdue", sh.Overdue)
	e.GET("/loans/statistics", sh.Summary)

	e.GET("/loans/:loan_id", lh.GetLoan)
	e.GET("/users/:user_id/loans", lh.ListByUser)
	e.GET("/books/:book_id/loans", lh.ListByBook)

	e.POST("/loans", lh.Borrow, guard...)
	e.POST("/loans/:loan_id/return", lh.Return, guard...)
	e.PATCH("/loans/:loan_id/extend", lh.Extend, guard...)
	e.PATCH("/loans/:loan_id/fine", lh.SetFine, guard...)
}
