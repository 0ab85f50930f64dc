package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"library-backend/internal/adapter/middleware"
	"library-backend/internal/domain/book"
	domain "library-backend/internal/domain/loan"
	"library-backend/internal/domain/uow"
	"library-backend/internal/domain/user"
	"library-backend/internal/infrastructure/logger"
	"library-backend/internal/testutil/bookmock"
	"library-backend/internal/testutil/loanmock"
	"library-backend/internal/testutil/uowmock"
	"library-backend/internal/testutil/usermock"
	uc "library-backend/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// -------- helpers --------

var (
	userID = strings.Repeat("a", 32)
	bookID = strings.Repeat("b", 32)
	loanID = strings.Repeat("c", 32)
	fixed  = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
)

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

// ledgerRepos: one student, one book with `available` copies, and optionally one active loan.
func ledgerRepos(available int, active *domain.Loan) uow.Repos {
	loans := &loanmock.Repo{
		CountActiveByUserFn:        func(context.Context, string) (int64, error) { return 0, nil },
		CountActiveByUserAndBookFn: func(context.Context, string, string) (int64, error) { return 0, nil },
		GetByLoanIDFn: func(_ context.Context, id string) (*domain.Loan, error) {
			if active == nil || id != active.LoanID {
				return nil, gorm.ErrRecordNotFound
			}
			return active, nil
		},
		ListByUserFn: func(context.Context, string) ([]domain.Loan, error) { return nil, nil },
	}
	loans.GetByLoanIDForUpdateFn = loans.GetByLoanIDFn

	books := &bookmock.Repo{
		GetByBookIDForUpdateFn: func(_ context.Context, id string) (*book.Book, error) {
			if id != bookID {
				return nil, gorm.ErrRecordNotFound
			}
			return &book.Book{BookID: bookID, TotalCopies: 2, AvailableCopies: available}, nil
		},
	}
	users := usermock.WithRole(userID, user.RoleStudent)
	users.GetByUserIDFn = func(_ context.Context, id string) (*user.User, error) {
		if id != userID {
			return nil, gorm.ErrRecordNotFound
		}
		return &user.User{UserID: userID, Role: user.RoleStudent}, nil
	}
	users.RoleOfFn = func(_ context.Context, id string) (user.Role, error) {
		if id != userID {
			return "", gorm.ErrRecordNotFound
		}
		return user.RoleStudent, nil
	}
	return uow.Repos{Loans: loans, Books: books, Users: users}
}

func newLoanHandler(tx uow.UnitOfWork, repos uow.Repos) *LoanHandler {
	h := NewLoanHandler(uc.NewUsecase(tx, repos, uc.WithTxRetry(1, 0)), logger.Discard())
	h.clock = func() time.Time { return fixed }
	return h
}

func activeLoan(dueAt time.Time) *domain.Loan {
	return &domain.Loan{
		LoanID: loanID, UserID: userID, BookID: bookID,
		BorrowedAt: dueAt.Add(-14 * 24 * time.Hour), DueAt: dueAt,
		FineAmount: decimal.Zero, State: domain.StateActive,
	}
}

func serve(e *echo.Echo, method, target string, body any) *httptest.ResponseRecorder {
	var req *stdhttp.Request
	if body != nil {
		req = httptest.NewRequest(method, target, mustJSON(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func routedEcho(h *LoanHandler) *echo.Echo {
	e := newEchoWithValidator()
	Register(e, NewHandler(), h, NewStatisticsHandler(nil, nil))
	return e
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("bad json: %v (%s)", err, rec.Body.String())
	}
	return er
}

// -------- tests --------

func TestBorrow_Success(t *testing.T) {
	repos := ledgerRepos(1, nil)
	e := routedEcho(newLoanHandler(uowmock.Passthrough(repos), repos))

	rec := serve(e, stdhttp.MethodPost, "/loans", map[string]any{"user_id": userID, "book_id": bookID})
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	var got uc.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.UserID != userID || got.BookID != bookID || len(got.LoanID) != 32 {
		t.Fatalf("unexpected dto: %+v", got)
	}
	if !got.DueAt.Equal(fixed.Add(14 * 24 * time.Hour)) {
		t.Fatalf("due_at = %v, want borrowed + 14d", got.DueAt)
	}
	if got.Status != domain.DisplayActive {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestBorrow_UserIDFromContext(t *testing.T) {
	repos := ledgerRepos(1, nil)
	h := newLoanHandler(uowmock.Passthrough(repos), repos)
	e := newEchoWithValidator()

	req := httptest.NewRequest(stdhttp.MethodPost, "/loans", mustJSON(map[string]any{"book_id": bookID}))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.ContextUserID, userID)

	if err := h.Borrow(c); err != nil {
		t.Fatalf("Borrow error: %v", err)
	}
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
}

func TestBorrow_BindError(t *testing.T) {
	repos := ledgerRepos(1, nil)
	e := routedEcho(newLoanHandler(uowmock.New(), repos))

	req := httptest.NewRequest(stdhttp.MethodPost, "/loans", strings.NewReader(`{"user_id":`)) // broken JSON
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if er := decodeError(t, rec); er.Error != "invalid body" {
		t.Fatalf("error = %q, want %q", er.Error, "invalid body")
	}
}

func TestBorrow_ValidationError(t *testing.T) {
	repos := ledgerRepos(1, nil)
	e := routedEcho(newLoanHandler(uowmock.New(), repos)) // ledger must not be reached

	rec := serve(e, stdhttp.MethodPost, "/loans", map[string]any{"user_id": "NOT_HEX_32"})
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	er := decodeError(t, rec)
	if !containsFieldMsg(er.Details, "UserID", "32-char lowercase hex") {
		t.Fatalf("missing hex32 detail: %+v", er.Details)
	}
	if !containsFieldMsg(er.Details, "BookID", "is required") {
		t.Fatalf("missing required detail: %+v", er.Details)
	}
}

func TestBorrow_ConflictCarriesReason(t *testing.T) {
	repos := ledgerRepos(0, nil)
	e := routedEcho(newLoanHandler(uowmock.Passthrough(repos), repos))

	rec := serve(e, stdhttp.MethodPost, "/loans", map[string]any{"user_id": userID, "book_id": bookID})
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if er := decodeError(t, rec); er.Reason != string(domain.ReasonBookUnavailable) {
		t.Fatalf("reason = %q", er.Reason)
	}
}

func TestBorrow_UnknownBook(t *testing.T) {
	repos := ledgerRepos(1, nil)
	e := routedEcho(newLoanHandler(uowmock.Passthrough(repos), repos))

	rec := serve(e, stdhttp.MethodPost, "/loans", map[string]any{"user_id": userID, "book_id": strings.Repeat("d", 32)})
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if er := decodeError(t, rec); er.Error != "book not found" {
		t.Fatalf("error = %q", er.Error)
	}
}

func TestBorrow_StorageErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unavailable", fmt.Errorf("%w: borrow: retries exhausted", domain.ErrUnavailable), stdhttp.StatusServiceUnavailable},
		{"unclassified", errors.New("disk on fire"), stdhttp.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repos := ledgerRepos(1, nil)
			tx := uowmock.New().WithWithinTx(func(context.Context, func(uow.Repos) error) error { return tc.err })
			e := routedEcho(newLoanHandler(tx, repos))

			rec := serve(e, stdhttp.MethodPost, "/loans", map[string]any{"user_id": userID, "book_id": bookID})
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if strings.Contains(rec.Body.String(), "disk on fire") {
				t.Fatalf("internal error leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestGetLoan(t *testing.T) {
	repos := ledgerRepos(1, activeLoan(fixed.Add(-time.Hour)))
	e := routedEcho(newLoanHandler(uowmock.New(), repos))

	rec := serve(e, stdhttp.MethodGet, "/loans/"+loanID, nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var dto uc.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if dto.LoanID != loanID || dto.Status != domain.DisplayOverdue {
		t.Fatalf("dto = %+v, want overdue %s", dto, loanID)
	}

	if rec := serve(e, stdhttp.MethodGet, "/loans/"+strings.Repeat("e", 32), nil); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("unknown loan status = %d, want 404", rec.Code)
	}
	if rec := serve(e, stdhttp.MethodGet, "/loans/xxx", nil); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("malformed id status = %d, want 400", rec.Code)
	}
}

func TestReturn_ComputesFine(t *testing.T) {
	repos := ledgerRepos(0, activeLoan(fixed.Add(-3*24*time.Hour-time.Hour)))
	e := routedEcho(newLoanHandler(uowmock.Passthrough(repos), repos))

	rec := serve(e, stdhttp.MethodPost, "/loans/"+loanID+"/return", nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var dto uc.LoanDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &dto)
	if !dto.FineAmount.Equal(decimal.NewFromInt(3)) || dto.Status != domain.DisplayReturned {
		t.Fatalf("dto = %+v, want fine 3 and returned", dto)
	}

	rec = serve(e, stdhttp.MethodPost, "/loans/"+loanID+"/return", nil)
	if rec.Code != stdhttp.StatusConflict || decodeError(t, rec).Reason != string(domain.ReasonNotActive) {
		t.Fatalf("second return = %d %s, want 409 notActive", rec.Code, rec.Body.String())
	}
}

func TestExtend(t *testing.T) {
	t.Run("non-positive days is 422 on the days field", func(t *testing.T) {
		repos := ledgerRepos(0, activeLoan(fixed.Add(24*time.Hour)))
		e := routedEcho(newLoanHandler(uowmock.Passthrough(repos), repos))

		rec := serve(e, stdhttp.MethodPatch, "/loans/"+loanID+"/extend", map[string]any{"days": 0})
		if rec.Code != stdhttp.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		if !containsFieldMsg(decodeError(t, rec).Details, "days", "greater than 0") {
			t.Fatalf("body = %s", rec.Body.String())
		}
	})

	t.Run("oversized days rejected before the ledger", func(t *testing.T) {
		repos := ledgerRepos(0, activeLoan(fixed.Add(24*time.Hour)))
		tx := uowmock.Passthrough(repos)
		e := routedEcho(newLoanHandler(tx, repos))

		rec := serve(e, stdhttp.MethodPatch, "/loans/"+loanID+"/extend", map[string]any{"days": 200000})
		if rec.Code != stdhttp.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
		if !containsFieldMsg(decodeError(t, rec).Details, "Days", "at most 365") {
			t.Fatalf("body = %s", rec.Body.String())
		}
		if _, loanTx := tx.Calls(); loanTx != 0 {
			t.Fatalf("loan was locked for an invalid request")
		}
	})

	t.Run("extends inside the window", func(t *testing.T) {
		repos := ledgerRepos(0, activeLoan(fixed.Add(24*time.Hour)))
		e := routedEcho(newLoanHandler(uowmock.Passthrough(repos), repos))

		rec := serve(e, stdhttp.MethodPatch, "/loans/"+loanID+"/extend", map[string]any{"days": 7})
		if rec.Code != stdhttp.StatusOK {
			t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
		}
		var dto uc.LoanDTO
		_ = json.Unmarshal(rec.Body.Bytes(), &dto)
		if !dto.DueAt.Equal(fixed.Add(8*24*time.Hour)) || dto.ExtensionCount != 1 {
			t.Fatalf("dto = %+v", dto)
		}
	})

	t.Run("too far out is 409 alreadyExtended", func(t *testing.T) {
		repos := ledgerRepos(0, activeLoan(fixed.Add(10*24*time.Hour)))
		e := routedEcho(newLoanHandler(uowmock.Passthrough(repos), repos))

		rec := serve(e, stdhttp.MethodPatch, "/loans/"+loanID+"/extend", map[string]any{"days": 3})
		if rec.Code != stdhttp.StatusConflict || decodeError(t, rec).Reason != string(domain.ReasonAlreadyExtended) {
			t.Fatalf("got %d %s", rec.Code, rec.Body.String())
		}
	})
}

func TestSetFine(t *testing.T) {
	repos := ledgerRepos(0, activeLoan(fixed.Add(24*time.Hour)))
	e := routedEcho(newLoanHandler(uowmock.Passthrough(repos), repos))

	rec := serve(e, stdhttp.MethodPatch, "/loans/"+loanID+"/fine", map[string]any{"amount": "12.50"})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var dto uc.LoanDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &dto)
	if !dto.FineAmount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("fine = %s", dto.FineAmount)
	}

	rec = serve(e, stdhttp.MethodPatch, "/loans/"+loanID+"/fine", map[string]any{"amount": "1.234"})
	if rec.Code != stdhttp.StatusUnprocessableEntity || !containsFieldMsg(decodeError(t, rec).Details, "Amount", "2 decimal places") {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(e, stdhttp.MethodPatch, "/loans/"+loanID+"/fine", map[string]any{"amount": "100000000.00"})
	if rec.Code != stdhttp.StatusUnprocessableEntity || !containsFieldMsg(decodeError(t, rec).Details, "Amount", "up to 99999999.99") {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(e, stdhttp.MethodPatch, "/loans/"+loanID+"/fine", map[string]any{"amount": "-1"})
	if rec.Code != stdhttp.StatusUnprocessableEntity || !containsFieldMsg(decodeError(t, rec).Details, "amount", "negative") {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestListByUser(t *testing.T) {
	repos := ledgerRepos(0, nil)
	e := routedEcho(newLoanHandler(uowmock.New(), repos))

	rec := serve(e, stdhttp.MethodGet, "/users/"+userID+"/loans", nil)
	if rec.Code != stdhttp.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("got %d %q, want 200 []", rec.Code, rec.Body.String())
	}
	if rec := serve(e, stdhttp.MethodGet, "/users/"+strings.Repeat("f", 32)+"/loans", nil); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("unknown user status = %d, want 404", rec.Code)
	}
}

func TestListByBook(t *testing.T) {
	repos := ledgerRepos(0, nil)
	repos.Books.(*bookmock.Repo).ExistsFn = func(_ context.Context, id string) (bool, error) { return id == bookID, nil }
	repos.Loans.(*loanmock.Repo).ListByBookFn = func(context.Context, string) ([]domain.Loan, error) {
		return []domain.Loan{*activeLoan(fixed.Add(time.Hour))}, nil
	}
	e := routedEcho(newLoanHandler(uowmock.New(), repos))

	rec := serve(e, stdhttp.MethodGet, "/books/"+bookID+"/loans", nil)
	var dtos []uc.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dtos); err != nil || len(dtos) != 1 {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(e, stdhttp.MethodGet, "/books/"+strings.Repeat("f", 32)+"/loans", nil); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("unknown book status = %d, want 404", rec.Code)
	}
}
