package mastery

// Status represents an item's position in the learning lifecycle.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusLearning   Status = "learning"
	StatusMastered   Status = "mastered"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusLearning, StatusMastered:
		return true
	}
	return false
}

// Transition records a status change for display and event logging.
type Transition struct {
	ItemID  string
	From    Status
	To      Status
	Trigger string // "first-review", "graduated", "lapse"
}
