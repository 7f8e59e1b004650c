package model

// Structured insight outputs. Each field presence doubles as the idempotency
// marker for its stage, so these are persisted as jsonb documents and never
// partially written.

// Analysis is the structured output of the analyze stage.
type Analysis struct {
	Nuggets        []string       `json:"nuggets"`
	Patterns       Patterns       `json:"patterns"`
	Risks          []string       `json:"risks"`
	NextQuestions  []string       `json:"next_questions"`
	ClosingOutlook ClosingOutlook `json:"closing_outlook"`
}

// Patterns splits observed conversation patterns into strengths and gaps.
type Patterns struct {
	WellDone []string `json:"well_done"`
	Gaps     []string `json:"gaps"`
}

// ClosingOutlook scores how likely the customer is to buy.
type ClosingOutlook struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Feedback is the coaching text produced by the feedback stage.
type Feedback struct {
	Text string `json:"text"`
}

// Followup is the output of the followup stage: an outbound message plus
// internal notes for the salesperson.
type Followup struct {
	Message string `json:"message"`
	Brief   string `json:"brief"`
	Plan    string `json:"plan"`
	Channel string `json:"channel,omitempty"`
	Tone    string `json:"tone,omitempty"`
}

// Default delivery settings for followup generation.
const (
	DefaultFollowupChannel = "whatsapp"
	DefaultFollowupTone    = "friendly"
)
