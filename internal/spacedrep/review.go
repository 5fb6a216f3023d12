package spacedrep

import "cloud.google.com/go/civil"

// IsDue returns true if an item due on due should be shown on asOf.
func IsDue(due, asOf civil.Date) bool {
	return !asOf.Before(due)
}

// OverdueDays returns how many days past due the item is. Returns 0 if not
// yet overdue.
func OverdueDays(due, asOf civil.Date) int {
	if !asOf.After(due) {
		return 0
	}
	return asOf.DaysSince(due)
}

// DaysUntil returns the number of days until the item is due.
// Returns 0 if already due.
func DaysUntil(due, asOf civil.Date) int {
	if IsDue(due, asOf) {
		return 0
	}
	return due.DaysSince(asOf)
}

// ReviewStatus describes an item's review status for display.
type ReviewStatus string

const (
	ReviewNotDue  ReviewStatus = "not_due"
	ReviewDue     ReviewStatus = "due"
	ReviewOverdue ReviewStatus = "overdue"
)

// Status classifies an item for display. An item counts as overdue once it
// has been due for longer than half its interval.
func Status(due civil.Date, interval int, asOf civil.Date) ReviewStatus {
	if !IsDue(due, asOf) {
		return ReviewNotDue
	}
	grace := max(interval/2, 1)
	if OverdueDays(due, asOf) > grace {
		return ReviewOverdue
	}
	return ReviewDue
}
