package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library-backend/internal/domain/fine"
	"library-backend/internal/domain/loan"
	"library-backend/internal/domain/notification"
	"library-backend/internal/domain/policy"
	"library-backend/internal/domain/uow"
	"library-backend/internal/infrastructure/logger"
	"library-backend/internal/infrastructure/metrics"
	"library-backend/pkg/id"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Usecase is the loan ledger. Writes go through the unit of work; reads use repos directly.
type Usecase struct {
	tx       uow.UnitOfWork
	repos    uow.Repos
	notifier notification.Notifier
	log      *logrus.Logger

	dailyRate     decimal.Decimal
	txMaxAttempts int
	txBaseDelay   time.Duration
}

type Option func(*Usecase)

func WithLogger(l *logrus.Logger) Option { return func(u *Usecase) { u.log = l } }

func WithNotifier(n notification.Notifier) Option { return func(u *Usecase) { u.notifier = n } }

func WithDailyRate(r decimal.Decimal) Option { return func(u *Usecase) { u.dailyRate = r } }

// WithTxRetry bounds how often borrow and return re-run a transaction that hit a transient storage error.
func WithTxRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(u *Usecase) {
		u.txMaxAttempts = maxAttempts
		u.txBaseDelay = baseDelay
	}
}

// NewUsecase: pass the UoW for write flows and non-transactional repos for lookups.
func NewUsecase(tx uow.UnitOfWork, repos uow.Repos, opts ...Option) *Usecase {
	u := &Usecase{
		tx:            tx,
		repos:         repos,
		notifier:      notification.Nop{},
		log:           logger.Discard(),
		dailyRate:     fine.DefaultDailyRate,
		txMaxAttempts: 5,
		txBaseDelay:   10 * time.Millisecond,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

func (u *Usecase) Borrow(ctx context.Context, in BorrowInput, now time.Time) (*LoanDTO, error) {
	start := time.Now()
	now = now.UTC()

	var created *loan.Loan
	err := u.withRetry(ctx, "borrow", func(ctx context.Context) error {
		return u.tx.WithinTx(ctx, func(r uow.Repos) error {
			l, err := borrowTx(ctx, r, in, now)
			created = l
			return err
		})
	})
	u.observe("borrow", start, err)
	if err != nil {
		return nil, err
	}

	u.log.WithFields(logrus.Fields{
		"loan_id": created.LoanID,
		"user_id": created.UserID,
		"book_id": created.BookID,
		"due_at":  created.DueAt,
	}).Info("loan borrowed")
	u.notify(ctx, notification.KindBorrowed, created, now)
	return toDTO(created, now), nil
}

// borrowTx checks preconditions in order, first failure wins, then decrements and inserts.
// The book and user rows stay locked from the first read until commit.
func borrowTx(ctx context.Context, r uow.Repos, in BorrowInput, now time.Time) (*loan.Loan, error) {
	b, err := r.Books.GetByBookIDForUpdate(ctx, in.BookID)
	if err != nil {
		return nil, notFound(err, loan.ErrBookNotFound)
	}
	// the user row lock serializes the per-user limit check across different books
	usr, err := r.Users.GetByUserIDForUpdate(ctx, in.UserID)
	if err != nil {
		return nil, notFound(err, loan.ErrUserNotFound)
	}
	if b.AvailableCopies <= 0 {
		return nil, loan.ErrBookUnavailable
	}

	dup, err := r.Loans.CountActiveByUserAndBook(ctx, usr.UserID, b.BookID)
	if err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, loan.ErrAlreadyBorrowed
	}

	limits := policy.LimitsFor(usr.Role)
	active, err := r.Loans.CountActiveByUser(ctx, usr.UserID)
	if err != nil {
		return nil, err
	}
	if active >= int64(limits.MaxActiveLoans) {
		return nil, loan.ErrLimitExceeded
	}

	ok, err := r.Books.AdjustAvailable(ctx, b.BookID, -1)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, loan.ErrBookUnavailable
	}

	l := &loan.Loan{
		LoanID:     id.NewID32(),
		UserID:     usr.UserID,
		BookID:     b.BookID,
		BorrowedAt: now,
		DueAt:      now.Add(limits.LoanDuration()),
		FineAmount: decimal.Zero,
		State:      loan.StateActive,
	}
	if err := r.Loans.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (u *Usecase) Return(ctx context.Context, loanID string, now time.Time) (*LoanDTO, error) {
	start := time.Now()
	now = now.UTC()

	var (
		returned *loan.Loan
		capHit   bool
	)
	err := u.withRetry(ctx, "return", func(ctx context.Context) error {
		capHit = false
		return u.tx.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
			if !l.IsActive() {
				return loan.ErrNotActive
			}
			at := now
			l.ReturnedAt = &at
			if now.After(l.DueAt) {
				l.FineAmount = fine.Compute(l.DueAt, now, u.dailyRate)
			}
			l.State = loan.StateReturned
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}

			ok, err := r.Books.AdjustAvailable(ctx, l.BookID, 1)
			if err != nil {
				return err
			}
			capHit = !ok
			returned = l
			return nil
		})
	})
	err = notFound(err, loan.ErrLoanNotFound)
	u.observe("return", start, err)
	if err != nil {
		return nil, err
	}

	entry := u.log.WithFields(logrus.Fields{
		"loan_id": returned.LoanID,
		"book_id": returned.BookID,
		"fine":    returned.FineAmount.StringFixed(2),
	})
	if capHit {
		metrics.RecordAvailabilityCapHit()
		entry.Warn("return: availability already at total copies, increment skipped")
	}
	entry.Info("loan returned")
	u.notify(ctx, notification.KindReturned, returned, now)
	return toDTO(returned, now), nil
}

func (u *Usecase) Extend(ctx context.Context, loanID string, days int, now time.Time) (*LoanDTO, error) {
	start := time.Now()
	now = now.UTC()
	if err := validateDays(days); err != nil {
		u.observe("extend", start, err)
		return nil, err
	}

	var out *loan.Loan
	err := u.tx.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
		if !l.IsActive() {
			return loan.ErrNotActive
		}
		if !policy.CanExtend(l.DueAt, now) {
			return loan.ErrAlreadyExtended
		}
		l.DueAt = l.DueAt.AddDate(0, 0, days)
		l.ExtensionCount++
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	err = notFound(err, loan.ErrLoanNotFound)
	u.observe("extend", start, err)
	if err != nil {
		return nil, err
	}

	u.log.WithFields(logrus.Fields{"loan_id": out.LoanID, "due_at": out.DueAt, "days": days}).Info("loan extended")
	return toDTO(out, now), nil
}

// SetFine overwrites the fine unconditionally, whatever the loan state.
func (u *Usecase) SetFine(ctx context.Context, loanID string, amount decimal.Decimal, now time.Time) (*LoanDTO, error) {
	start := time.Now()
	if err := validateFine(amount); err != nil {
		u.observe("set_fine", start, err)
		return nil, err
	}

	var out *loan.Loan
	err := u.tx.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
		l.FineAmount = amount
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	err = notFound(err, loan.ErrLoanNotFound)
	u.observe("set_fine", start, err)
	if err != nil {
		return nil, err
	}

	u.log.WithFields(logrus.Fields{"loan_id": out.LoanID, "fine": amount.StringFixed(2)}).Info("fine overridden")
	return toDTO(out, now.UTC()), nil
}

func validateDays(days int) error {
	switch {
	case days <= 0:
		return loan.ErrInvalidDays
	case days > loan.MaxExtendDays:
		return loan.ErrTooManyDays
	}
	return nil
}

func validateFine(amount decimal.Decimal) error {
	switch {
	case amount.IsNegative():
		return loan.ErrNegativeFine
	case amount.GreaterThan(loan.MaxFine):
		return loan.ErrFineTooLarge
	}
	return nil
}

func (u *Usecase) Get(ctx context.Context, loanID string, now time.Time) (*LoanDTO, error) {
	l, err := u.repos.Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, notFound(err, loan.ErrLoanNotFound)
	}
	return toDTO(l, now.UTC()), nil
}

func (u *Usecase) ListByUser(ctx context.Context, userID string, now time.Time) ([]LoanDTO, error) {
	if _, err := u.repos.Users.RoleOf(ctx, userID); err != nil {
		return nil, notFound(err, loan.ErrUserNotFound)
	}
	ls, err := u.repos.Loans.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ToDTOs(ls, now.UTC()), nil
}

func (u *Usecase) ListByBook(ctx context.Context, bookID string, now time.Time) ([]LoanDTO, error) {
	ok, err := u.repos.Books.Exists(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, loan.ErrBookNotFound
	}
	ls, err := u.repos.Loans.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return ToDTOs(ls, now.UTC()), nil
}

// withRetry re-runs fn while the unit of work reports a transient fault; exhaustion becomes ErrUnavailable.
func (u *Usecase) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = u.txBaseDelay
	eb.RandomizationFactor = 0.3
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0

	var maxRetries uint64
	if u.txMaxAttempts > 1 {
		maxRetries = uint64(u.txMaxAttempts - 1)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := fn(ctx)
		if err != nil && !errors.Is(err, uow.ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, delay time.Duration) {
		metrics.RecordTxRetry(op)
		u.log.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"delay":   delay.String(),
		}).WithError(err).Warn("ledger: retrying transaction")
	})
	if errors.Is(err, uow.ErrTransient) {
		return fmt.Errorf("%w: %s after %d attempts: %w", loan.ErrUnavailable, op, attempt, err)
	}
	return err
}

func (u *Usecase) notify(ctx context.Context, kind notification.Kind, l *loan.Loan, now time.Time) {
	e := notification.Event{
		EventID:    id.NewEventID(),
		Kind:       kind,
		LoanID:     l.LoanID,
		UserID:     l.UserID,
		BookID:     l.BookID,
		DueAt:      l.DueAt,
		ReturnedAt: l.ReturnedAt,
		FineAmount: l.FineAmount,
		OccurredAt: now,
	}
	if err := u.notifier.Notify(ctx, e); err != nil {
		u.log.WithFields(logrus.Fields{"loan_id": l.LoanID, "kind": kind}).WithError(err).Warn("notify failed")
	}
}

func (u *Usecase) observe(op string, start time.Time, err error) {
	metrics.RecordLedgerOp(op, Outcome(err), time.Since(start))
}

// Outcome buckets an error by category for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, loan.ErrNotFound):
		return "not_found"
	case errors.Is(err, loan.ErrConflict):
		return "conflict"
	case errors.Is(err, loan.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, loan.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func notFound(err, nf error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nf
	}
	return err
}
