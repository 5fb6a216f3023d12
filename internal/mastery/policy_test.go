package mastery

import (
	"testing"

	"cloud.google.com/go/civil"

	"github.com/abhisek/lexiz/internal/spacedrep"
)

var day = civil.Date{Year: 2025, Month: 6, Day: 1}

func TestNext_FirstReviewStartsLearning(t *testing.T) {
	res := spacedrep.Schedule(1, 2.5, spacedrep.Good, day)
	tr := Policy{}.Next("a1", StatusNotStarted, spacedrep.Good, res)
	if tr == nil || tr.To != StatusLearning || tr.Trigger != TriggerFirstReview {
		t.Fatalf("Next() = %+v, want not_started -> learning", tr)
	}
}

func TestNext_LearningStaysLearning(t *testing.T) {
	res := spacedrep.Schedule(3, 2.5, spacedrep.Good, day)
	if tr := (Policy{}).Next("a1", StatusLearning, spacedrep.Good, res); tr != nil {
		t.Errorf("Next() = %+v, want no transition", tr)
	}
}

func TestNext_GraduatesPastThirtyDays(t *testing.T) {
	res := spacedrep.Schedule(40, 2.5, spacedrep.Good, day)
	tr := Policy{}.Next("a1", StatusLearning, spacedrep.Good, res)
	if tr == nil || tr.To != StatusMastered || tr.Trigger != TriggerGraduated {
		t.Fatalf("Next() = %+v, want learning -> mastered", tr)
	}
}

func TestNext_MasteredNeverRevertsByDefault(t *testing.T) {
	for _, r := range spacedrep.Ratings {
		res := spacedrep.Schedule(100, 2.5, r, day)
		if tr := (Policy{}).Next("a1", StatusMastered, r, res); tr != nil {
			t.Errorf("rating %s: Next() = %+v, want mastered to stay mastered", r, tr)
		}
	}
}

func TestNext_DemoteOnLapse(t *testing.T) {
	p := Policy{DemoteOnLapse: true}

	res := spacedrep.Schedule(100, 2.5, spacedrep.Again, day)
	tr := p.Next("a1", StatusMastered, spacedrep.Again, res)
	if tr == nil || tr.To != StatusLearning || tr.Trigger != TriggerLapse {
		t.Fatalf("Next() = %+v, want mastered -> learning on lapse", tr)
	}

	// Hard shrinks the interval but is not a lapse.
	res = spacedrep.Schedule(100, 2.5, spacedrep.Hard, day)
	if tr := p.Next("a1", StatusMastered, spacedrep.Hard, res); tr != nil {
		t.Errorf("hard: Next() = %+v, want no transition", tr)
	}
}

func TestStatusLabels(t *testing.T) {
	if StatusMastered.Label() != "Mastered" || StatusNotStarted.Label() != "New" {
		t.Error("unexpected labels")
	}
	if Status("bogus").Valid() {
		t.Error("bogus status should be invalid")
	}
	if StatusLearning.Glyph() == StatusMastered.Glyph() {
		t.Error("learning and mastered glyphs should differ")
	}
}
