package game

import (
	"slices"

	"github.com/bkohler93/thavalon-backend/internal/shared/response"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
)

// StateFor assembles the snapshot sent to one player. Player identifiers on
// the wire are display names.
func (g *Game) StateFor(playerID uuidstring.ID) (*response.GameState, error) {
	if _, ok := g.roles[playerID]; !ok {
		return nil, ErrUnknownPlayer
	}

	s := response.NewGameState(true, "").
		SetProposalOrder(g.namesOf(g.proposalOrder)).
		SetMissionSizes(slices.Clone(g.missionSizes)).
		SetMissionResults(slices.Clone(g.missionResults)).
		SetRoleInformation(g.RoleInformation(playerID)).
		SetProposerIndex(g.proposerIndex).
		SetProposalNum(g.proposalNum).
		SetCurrentPhase(g.phase)

	if g.missionPlayers != nil {
		s.SetMissionPlayers(g.namesOf(g.missionPlayers))
	}
	if len(g.declarations) > 0 {
		s.SetDeclarations(slices.Clone(g.declarations))
	}
	if g.lastVote != nil {
		s.SetLastVoteInformation(*g.lastVote)
	}
	return s, nil
}
