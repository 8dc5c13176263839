package domain

// Attribute keys. Several concerns carry more than one key because the data
// passed through multiple schema generations; resolution chains try them in
// the order listed.

// Match attributes.
const (
	AttrParticipantsDetails = "participants_details"
	AttrParticipantDetails  = "participant_details"

	AttrMatchParticipants         = "match_participants"
	AttrParticipants              = "participants"
	AttrMatchParticipantsExpanded = "match_participants_expanded"

	AttrWFWinners = "wf_winners"
	AttrWinners   = "winners"

	AttrMatchSnapshot  = "wf_match_snapshot"
	AttrMatchType      = "match_type"
	AttrMatchResult    = "match_result"
	AttrTitleOnTheLine = "title_on_the_line"
	AttrTitleOnLine    = "title_on_line"
	AttrChampionship   = "championship"
	AttrTitleChanged   = "wf_title_changed"
	AttrReignCreated   = "wf_reign_created"
)

// TaxonomyMatchType is the taxonomy carrying editorial match-type terms.
const TaxonomyMatchType = "match_type"

// Reign attributes (wf_ keys are canonical, bare keys are legacy fallbacks).
const (
	AttrReignTitle        = "wf_reign_title"
	AttrReignTitleLegacy  = "championship"
	AttrReignChampions    = "wf_reign_champions"
	AttrReignChampsLegacy = "championship_holders"
	AttrReignStartDate    = "wf_reign_start_date"
	AttrReignStartLegacy  = "reign_start_date"
	AttrReignEndDate      = "wf_reign_end_date"
	AttrReignEndLegacy    = "reign_end_date"
	AttrReignIsCurrent    = "wf_reign_is_current"
	AttrReignCurLegacy    = "reign_is_current"
	AttrReignWonMatch     = "wf_reign_won_match"
	AttrReignEndedByMatch = "wf_reign_ended_by_match"
	AttrReignManual       = "wf_reign_manual"
	AttrReignSnapshot     = "wf_reign_snapshot"
	AttrReignReversedBy   = "wf_reign_reversed_by_match"
	AttrReignReversedNote = "wf_reign_reversed_note"
)

// Superstar attributes.
const (
	AttrTitleReignCount = "wf_title_reign_count"
	AttrCurrentTitles   = "wf_current_titles"
)

// CounterAttrKeys maps each derived counter to its stored attribute key.
var CounterAttrKeys = []string{
	"total_matches",
	"wins",
	"losses",
	"draws",
	"nocontests",
	"tag_matches",
	"tag_wins",
	"tag_losses",
	"tag_draws",
	"tag_nocontests",
}

// TeamMemberKeys are the attribute keys a team's membership may live under.
var TeamMemberKeys = []string{"team_members", "members", "wf_team_members", "team_members_list"}

// SuperstarTeamKeys are the attribute keys a superstar's team memberships may
// live under. Values in all keys are unioned.
var SuperstarTeamKeys = []string{"teams", "member_of", "team_ids", "wf_team_ids", "team"}

// ParticipantSearchKeys feed the coarse candidate query of counter
// recomputation: any attribute that may reference a participant.
var ParticipantSearchKeys = []string{
	AttrMatchParticipants,
	AttrMatchParticipantsExpanded,
	AttrParticipants,
	AttrParticipantsDetails,
	AttrWFWinners,
	AttrWinners,
}

// Values of a Counters struct in CounterAttrKeys order.
func (c Counters) Values() []int {
	return []int{
		c.TotalMatches, c.Wins, c.Losses, c.Draws, c.NoContests,
		c.TagMatches, c.TagWins, c.TagLosses, c.TagDraws, c.TagNoContests,
	}
}
