package domain

import (
	"time"
)

// Entity type slugs. These mirror the post types the editorial data was
// migrated from, including the plural/singular team variants still present
// in older records.
const (
	TypeSuperstar    = "superstar"
	TypeMatch        = "match"
	TypeChampionship = "championship"
	TypeReign        = "reign"
	TypeEvent        = "event"
)

var teamTypes = map[string]bool{
	"team":   true,
	"teams":  true,
	"stable": true,
}

// IsTeamType reports whether an entity type slug denotes a team or stable.
func IsTeamType(entityType string) bool {
	return teamTypes[entityType]
}

const (
	StatusPublish = "publish"
	StatusDraft   = "draft"
	StatusPrivate = "private"
	StatusTrash   = "trash"
)

type Entity struct {
	ID        int64
	Type      string
	Title     string
	Status    string
	ParentID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParticipantRow is one resolved participant of a match. Participant may be
// a superstar or a team entity; expansion to individuals happens later.
type ParticipantRow struct {
	Participant int64  `json:"participant"`
	IsWinner    bool   `json:"is_winner"`
	Role        string `json:"role,omitempty"`
}

// Outcome of a match from one participant's point of view.
const (
	OutcomeWin       = "win"
	OutcomeLoss      = "loss"
	OutcomeDraw      = "draw"
	OutcomeNoContest = "nocontest"
	OutcomeUnknown   = ""
)

// Counters is the full derived win/loss record of a superstar. Values are
// never incremented in place; the counter engine recomputes them from match
// history and overwrites the stored set.
type Counters struct {
	TotalMatches  int `json:"total_matches"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	Draws         int `json:"draws"`
	NoContests    int `json:"nocontests"`
	TagMatches    int `json:"tag_matches"`
	TagWins       int `json:"tag_wins"`
	TagLosses     int `json:"tag_losses"`
	TagDraws      int `json:"tag_draws"`
	TagNoContests int `json:"tag_nocontests"`
}

// ApplyResult summarizes one run of the reign application engine.
type ApplyResult struct {
	Status           string  `json:"status"`
	AppliedChampions []int64 `json:"applied_champions"`
	ClosedReignIDs   []int64 `json:"closed_reign_ids"`
	Message          string  `json:"message,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)
