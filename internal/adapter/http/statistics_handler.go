package http

import (
	"net/http"
	"time"

	"library-backend/internal/infrastructure/logger"
	"library-backend/internal/usecase/statistics"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type StatisticsHandler struct {
	uc    *statistics.Usecase
	log   *logrus.Logger
	clock func() time.Time
}

func NewStatisticsHandler(uc *statistics.Usecase, log *logrus.Logger) *StatisticsHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &StatisticsHandler{uc: uc, log: log, clock: utcNow}
}

func (h *StatisticsHandler) Active(c echo.Context) error {
	dtos, err := h.uc.Active(c.Request().Context(), h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dtos)
}

func (h *StatisticsHandler) Overdue(c echo.Context) error {
	dtos, err := h.uc.Overdue(c.Request().Context(), h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dtos)
}

func (h *StatisticsHandler) Summary(c echo.Context) error {
	s, err := h.uc.Summary(c.Request().Context(), h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, s)
}
