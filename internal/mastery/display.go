package mastery

// Label returns the human-readable status name.
func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "New"
	case StatusLearning:
		return "Learning"
	case StatusMastered:
		return "Mastered"
	default:
		return "Unknown"
	}
}

// Glyph returns a one-rune marker for compact lists.
func (s Status) Glyph() string {
	switch s {
	case StatusLearning:
		return "◐"
	case StatusMastered:
		return "●"
	default:
		return "○"
	}
}
