// Package policy maps a borrower's role to the lending limits that apply to them.
package policy

import (
	"time"

	"library-backend/internal/domain/user"
)

type Limits struct {
	MaxActiveLoans   int
	LoanDurationDays int
}

// LoanDuration is LoanDurationDays as a duration of whole 24h days.
func (l Limits) LoanDuration() time.Duration {
	return time.Duration(l.LoanDurationDays) * 24 * time.Hour
}

var (
	studentLimits   = Limits{MaxActiveLoans: 5, LoanDurationDays: 14}
	facultyLimits   = Limits{MaxActiveLoans: 10, LoanDurationDays: 30}
	librarianLimits = Limits{MaxActiveLoans: 15, LoanDurationDays: 14}
	defaultLimits   = Limits{MaxActiveLoans: 3, LoanDurationDays: 14}
)

// LimitsFor is total: any role outside student/faculty/librarian, including "", gets the default tier.
func LimitsFor(r user.Role) Limits {
	switch r {
	case user.RoleStudent:
		return studentLimits
	case user.RoleFaculty:
		return facultyLimits
	case user.RoleLibrarian:
		return librarianLimits
	default:
		return defaultLimits
	}
}

// ExtensionWindow is how far out a due date may already be for an extension to be granted.
const ExtensionWindow = 7 * 24 * time.Hour

// CanExtend reports whether a loan due at dueAt is still inside the extension window at now.
func CanExtend(dueAt, now time.Time) bool {
	return !dueAt.After(now.Add(ExtensionWindow))
}
