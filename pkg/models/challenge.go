package models

// Challenge is one multiple-choice decision round. Options are labeled by
// their first character (typically A-D); CorrectOption holds that label.
// Rationale is never sent to the peer.
type Challenge struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correct_option"`
	Rationale     string   `json:"rationale,omitempty"`
	Scenario      string   `json:"scenario,omitempty"`
	RoundNum      int      `json:"round_num,omitempty"`
}

// ChallengeResponse records the peer's answer to one Stage 2 round.
type ChallengeResponse struct {
	RoundNum int     `json:"round_num"`
	Answer   string  `json:"answer"`
	ElapsedS float64 `json:"elapsed_s"`
	Correct  bool    `json:"correct"`
}

// RoundSummary is the per-round entry fed back into the oracle's generation
// context so consecutive challenges can build on earlier answers.
type RoundSummary struct {
	Round   int    `json:"round"`
	Prompt  string `json:"prompt"`
	Answer  string `json:"answer"`
	Correct bool   `json:"correct"`
}
