package http

import (
	"net/http"
	"time"

	"library-backend/internal/adapter/middleware"
	"library-backend/internal/infrastructure/logger"
	"library-backend/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type LoanHandler struct {
	uc    *loan.Usecase
	log   *logrus.Logger
	clock func() time.Time
}

func NewLoanHandler(uc *loan.Usecase, log *logrus.Logger) *LoanHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &LoanHandler{uc: uc, log: log, clock: utcNow}
}

type borrowReq struct {
	UserID string `json:"user_id" validate:"required,hex32"`
	BookID string `json:"book_id" validate:"required,hex32"`
}

type extendReq struct {
	Days int `json:"days" validate:"max=365"`
}

type setFineReq struct {
	Amount string `json:"amount" validate:"required,money"`
}

// Borrow: POST /loans. user_id defaults to the caller's Ax-User-Id.
func (h *LoanHandler) Borrow(c echo.Context) error {
	var req borrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if req.UserID == "" {
		if id, ok := c.Get(middleware.ContextUserID).(string); ok {
			req.UserID = id
		}
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}

	dto, err := h.uc.Borrow(c.Request().Context(), loan.BorrowInput{UserID: req.UserID, BookID: req.BookID}, h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return badParam(c, "loan_id")
	}
	dto, err := h.uc.Get(c.Request().Context(), loanID, h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// Return: POST /loans/:loan_id/return
func (h *LoanHandler) Return(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return badParam(c, "loan_id")
	}
	dto, err := h.uc.Return(c.Request().Context(), loanID, h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// Extend: PATCH /loans/:loan_id/extend. days is checked by the ledger, not the validator.
func (h *LoanHandler) Extend(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return badParam(c, "loan_id")
	}
	var req extendReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Extend(c.Request().Context(), loanID, req.Days, h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// SetFine: PATCH /loans/:loan_id/fine
func (h *LoanHandler) SetFine(c echo.Context) error {
	loanID := c.Param("loan_id")
	if !reHex32.MatchString(loanID) {
		return badParam(c, "loan_id")
	}
	var req setFineReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	// money already guarantees a parseable decimal
	amount := decimal.RequireFromString(req.Amount)
	dto, err := h.uc.SetFine(c.Request().Context(), loanID, amount, h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListByUser(c echo.Context) error {
	userID := c.Param("user_id")
	if !reHex32.MatchString(userID) {
		return badParam(c, "user_id")
	}
	dtos, err := h.uc.ListByUser(c.Request().Context(), userID, h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dtos)
}

func (h *LoanHandler) ListByBook(c echo.Context) error {
	bookID := c.Param("book_id")
	if !reHex32.MatchString(bookID) {
		return badParam(c, "book_id")
	}
	dtos, err := h.uc.ListByBook(c.Request().Context(), bookID, h.clock())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dtos)
}
