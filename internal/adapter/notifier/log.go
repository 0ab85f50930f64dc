package notifier

import (
	"context"

	"library-backend/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// Log writes events to the process log. Used when no Redis is configured and as the fallback sink.
type Log struct{ log *logrus.Logger }

func NewLog(l *logrus.Logger) *Log { return &Log{log: l} }

func (n *Log) Notify(_ context.Context, e notification.Event) error {
	fields := logrus.Fields{
		"event_id": e.EventID,
		"kind":     e.Kind,
		"loan_id":  e.LoanID,
		"user_id":  e.UserID,
		"book_id":  e.BookID,
		"due_at":   e.DueAt,
	}
	if e.ReturnedAt != nil {
		fields["returned_at"] = *e.ReturnedAt
		fields["fine"] = e.FineAmount.StringFixed(2)
	}
	n.log.WithFields(fields).Info("notification")
	return nil
}

// Fallback tries Primary and, when it fails, hands the event to Secondary.
type Fallback struct {
	Primary   notification.Notifier
	Secondary notification.Notifier
	Log       *logrus.Logger
}

func (f *Fallback) Notify(ctx context.Context, e notification.Event) error {
	err := f.Primary.Notify(ctx, e)
	if err == nil {
		return nil
	}
	if f.Log != nil {
		f.Log.WithField("event_id", e.EventID).WithError(err).Warn("notifier: primary failed, using fallback")
	}
	return f.Secondary.Notify(ctx, e)
}
