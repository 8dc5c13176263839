package domain

import "encoding/json"

// SnapshotParticipant is one entry of a match snapshot's applied_participants.
// IsTag always equals the snapshot-level flag; the builder enforces it.
type SnapshotParticipant struct {
	ID       int64  `json:"id"`
	IsWinner bool   `json:"is_winner"`
	Outcome  string `json:"outcome"`
	IsTag    bool   `json:"is_tag"`
}

// MatchSnapshot is the canonical denormalized summary stored on a match.
// Unknown fields written by earlier processor versions survive a rebuild:
// they round-trip through Extra.
type MatchSnapshot struct {
	Applied             bool                  `json:"applied"`
	AppliedAt           string                `json:"applied_at"`
	AppliedParticipants []SnapshotParticipant `json:"applied_participants"`
	Winners             []int64               `json:"winners"`
	WinnersExpanded     []int64               `json:"winners_expanded"`
	IsTag               bool                  `json:"is_tag"`
	MatchResult         string                `json:"match_result"`
	ParticipantIDs      []int64               `json:"participant_ids"`

	Extra map[string]json.RawMessage `json:"-"`
}

var matchSnapshotKeys = map[string]bool{
	"applied":              true,
	"applied_at":           true,
	"applied_participants": true,
	"winners":              true,
	"winners_expanded":     true,
	"is_tag":               true,
	"match_result":         true,
	"participant_ids":      true,
}

func (s *MatchSnapshot) UnmarshalJSON(data []byte) error {
	type alias MatchSnapshot
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if matchSnapshotKeys[k] {
			delete(raw, k)
		}
	}
	*s = MatchSnapshot(known)
	if len(raw) > 0 {
		s.Extra = raw
	}
	return nil
}

func (s MatchSnapshot) MarshalJSON() ([]byte, error) {
	type alias MatchSnapshot
	data, err := json.Marshal(alias(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		if !matchSnapshotKeys[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// ReignSnapshot records exactly what bookkeeping one apply run performed on
// a reign, so a later run (or a delete) can reverse it precisely.
type ReignSnapshot struct {
	Applied        bool    `json:"applied"`
	AppliedAt      string  `json:"applied_at"`
	Champions      []int64 `json:"champions"`
	IsCurrent      bool    `json:"is_current"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	ClosedReignIDs []int64 `json:"closed_reign_ids"`
	Processor      string  `json:"processor"`
}
