package game

import (
	"encoding/json"

	"github.com/bkohler93/thavalon-backend/internal/shared/response"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
)

// gameRecord is the stored form of a Game. Names are rebuilt from Players.
type gameRecord struct {
	GameID         uuidstring.ID             `json:"game_id"`
	Players        []Player                  `json:"players"`
	Roles          map[uuidstring.ID]Role    `json:"roles"`
	ProposalOrder  []uuidstring.ID           `json:"proposal_order"`
	MissionSizes   []int                     `json:"mission_sizes"`
	MissionResults []response.MissionResult  `json:"mission_results"`
	MissionPlayers []uuidstring.ID           `json:"mission_players"`
	ProposerIndex  int                       `json:"proposer_index"`
	ProposalNum    int                       `json:"proposal_num"`
	Phase          response.Phase            `json:"phase"`
	Declarations   []response.Declaration    `json:"declarations"`
	LastVote       *response.VoteInformation `json:"last_vote"`
}

func (g *Game) MarshalJSON() ([]byte, error) {
	return json.Marshal(gameRecord{
		GameID:         g.GameID,
		Players:        g.Players,
		Roles:          g.roles,
		ProposalOrder:  g.proposalOrder,
		MissionSizes:   g.missionSizes,
		MissionResults: g.missionResults,
		MissionPlayers: g.missionPlayers,
		ProposerIndex:  g.proposerIndex,
		ProposalNum:    g.proposalNum,
		Phase:          g.phase,
		Declarations:   g.declarations,
		LastVote:       g.lastVote,
	})
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var r gameRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	names := make(map[uuidstring.ID]string, len(r.Players))
	for _, p := range r.Players {
		names[p.UserID] = p.Name
	}
	*g = Game{
		GameID:         r.GameID,
		Players:        r.Players,
		roles:          r.Roles,
		names:          names,
		proposalOrder:  r.ProposalOrder,
		missionSizes:   r.MissionSizes,
		missionResults: r.MissionResults,
		missionPlayers: r.MissionPlayers,
		proposerIndex:  r.ProposerIndex,
		proposalNum:    r.ProposalNum,
		phase:          r.Phase,
		declarations:   r.Declarations,
		lastVote:       r.LastVote,
	}
	return nil
}
