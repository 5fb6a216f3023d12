package mastery

import "github.com/abhisek/lexiz/internal/spacedrep"

const (
	TriggerFirstReview = "first-review"
	TriggerGraduated   = "graduated"
	TriggerLapse       = "lapse"
)

// Policy decides how a rated review moves an item between statuses.
type Policy struct {
	// DemoteOnLapse moves a mastered item back to learning when it is
	// rated again. Off by default: mastery is permanent.
	DemoteOnLapse bool
}

// Next returns the status after a review rated r produced res. It returns
// nil when the status does not change.
func (p Policy) Next(itemID string, current Status, r spacedrep.Rating, res spacedrep.Result) *Transition {
	next := current
	trigger := ""

	switch {
	case current == StatusMastered:
		if p.DemoteOnLapse && r == spacedrep.Again {
			next, trigger = StatusLearning, TriggerLapse
		}
	case res.Graduated:
		next, trigger = StatusMastered, TriggerGraduated
	case current != StatusLearning:
		next, trigger = StatusLearning, TriggerFirstReview
	}

	if next == current {
		return nil
	}
	return &Transition{ItemID: itemID, From: current, To: next, Trigger: trigger}
}
