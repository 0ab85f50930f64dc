// Package statistics reads the loan ledger for reporting. It never writes.
package statistics

import (
	"context"
	"time"

	"library-backend/internal/domain/loan"
	"library-backend/internal/domain/notification"
	"library-backend/internal/infrastructure/logger"
	loanuc "library-backend/internal/usecase/loan"
	"library-backend/pkg/id"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultBatchSize = 500

type Summary struct {
	Total        int64           `json:"total"`
	Active       int64           `json:"active"`
	OverdueCount int64           `json:"overdue"`
	Returned     int64           `json:"returned"`
	TotalFines   decimal.Decimal `json:"total_fines"`
	AsOf         time.Time       `json:"as_of"`
}

type Usecase struct {
	loans     loan.Repository
	notifier  notification.Notifier
	log       *logrus.Logger
	batchSize int
}

type Option func(*Usecase)

func WithLogger(l *logrus.Logger) Option { return func(u *Usecase) { u.log = l } }

func WithNotifier(n notification.Notifier) Option { return func(u *Usecase) { u.notifier = n } }

func WithBatchSize(n int) Option { return func(u *Usecase) { u.batchSize = n } }

func NewUsecase(loans loan.Repository, opts ...Option) *Usecase {
	u := &Usecase{
		loans:     loans,
		notifier:  notification.Nop{},
		log:       logger.Discard(),
		batchSize: defaultBatchSize,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

func (u *Usecase) Active(ctx context.Context, now time.Time) ([]loanuc.LoanDTO, error) {
	ls, err := u.loans.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return loanuc.ToDTOs(ls, now.UTC()), nil
}

// Overdue lists active loans with due_at strictly before now.
func (u *Usecase) Overdue(ctx context.Context, now time.Time) ([]loanuc.LoanDTO, error) {
	now = now.UTC()
	ls, err := u.loans.ListOverdue(ctx, now)
	if err != nil {
		return nil, err
	}
	return loanuc.ToDTOs(ls, now), nil
}

// Summary is a single read-only pass over every loan, read from one snapshot.
func (u *Usecase) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	now = now.UTC()
	s := &Summary{TotalFines: decimal.Zero, AsOf: now}

	err := u.loans.Scan(ctx, u.batchSize, func(batch []loan.Loan) error {
		for i := range batch {
			l := &batch[i]
			s.Total++
			switch l.State {
			case loan.StateActive:
				s.Active++
				if l.IsOverdue(now) {
					s.OverdueCount++
				}
			case loan.StateReturned:
				s.Returned++
			}
			s.TotalFines = s.TotalFines.Add(l.FineAmount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NotifyOverdue hands one overdue event per overdue loan to the notifier and
// returns how many were accepted. Individual failures are logged and skipped.
func (u *Usecase) NotifyOverdue(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	ls, err := u.loans.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range ls {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		l := &ls[i]
		e := notification.Event{
			EventID:    id.NewEventID(),
			Kind:       notification.KindOverdue,
			LoanID:     l.LoanID,
			UserID:     l.UserID,
			BookID:     l.BookID,
			DueAt:      l.DueAt,
			FineAmount: l.FineAmount,
			OccurredAt: now,
		}
		if err := u.notifier.Notify(ctx, e); err != nil {
			u.log.WithFields(logrus.Fields{"loan_id": l.LoanID, "user_id": l.UserID}).
				WithError(err).Warn("overdue reminder not sent")
			continue
		}
		sent++
	}

	u.log.WithFields(logrus.Fields{"overdue": len(ls), "sent": sent}).Info("overdue sweep finished")
	return sent, nil
}
