package similarity

// DefaultVoicePassThreshold requires an exact normalized match for a spoken
// answer to pass. Lower it to accept near misses from speech recognition.
const DefaultVoicePassThreshold = Exact

// Grade is the outcome of checking one answer.
type Grade struct {
	// Score is the similarity percentage, kept for analytics even when the
	// answer fails.
	Score  int
	Passed bool
}

// Grader is the single grading policy for both modalities. Pass/fail and
// the reported score always come from the same Score call.
type Grader struct {
	// VoicePassThreshold is the minimum score for a spoken answer to pass.
	// Zero means DefaultVoicePassThreshold.
	VoicePassThreshold int
}

// Text grades a typed answer. Typed answers must match exactly after
// normalization.
func (g Grader) Text(answer, expected string) Grade {
	s := Score(answer, expected)
	return Grade{Score: s, Passed: s == Exact}
}

// Voice grades a transcribed spoken answer against the configured threshold.
func (g Grader) Voice(detected, expected string) Grade {
	s := Score(detected, expected)
	return Grade{Score: s, Passed: s >= g.threshold()}
}

func (g Grader) threshold() int {
	if g.VoicePassThreshold <= 0 || g.VoicePassThreshold > Exact {
		return DefaultVoicePassThreshold
	}
	return g.VoicePassThreshold
}
