package response

import "github.com/bkohler93/thavalon-backend/pkg/opt"

// Wire keys are camelCase for this variant, unlike the envelope keys.
const (
	KeyProposalOrder   = "proposalOrder"
	KeyMissionSizes    = "missionSizes"
	KeyMissionResults  = "missionResults"
	KeyRoleInformation = "roleInformation"
	KeyMissionPlayers  = "missionPlayers"
	KeyProposerIndex   = "proposerIndex"
	KeyProposalNum     = "proposalNum"
	KeyCurrentPhase    = "currentPhase"
	KeyDeclarations    = "declarations"
	KeyLastVoteInfo    = "lastVoteInfo"
)

var gameStateKeys = []string{
	KeyProposalOrder,
	KeyMissionSizes,
	KeyMissionResults,
	KeyRoleInformation,
	KeyMissionPlayers,
	KeyProposerIndex,
	KeyProposalNum,
	KeyCurrentPhase,
	KeyDeclarations,
	KeyLastVoteInfo,
}

type Phase string

const (
	PhaseProposal      Phase = "Proposal"
	PhaseVoting        Phase = "Voting"
	PhaseMission       Phase = "Mission"
	PhaseAssassination Phase = "Assassination"
	PhaseDone          Phase = "Done"
)

type MissionResult string

const (
	MissionSuccess MissionResult = "Success"
	MissionFail    MissionResult = "Fail"
)

type Declaration struct {
	Player string `json:"player"`
	Role   string `json:"role"`
}

// VoteInformation is the outcome of the most recent team vote.
type VoteInformation struct {
	Upvotes   []string `json:"upvotes"`
	Downvotes []string `json:"downvotes"`
	Sent      bool     `json:"sent"`
}

// GameState is a per-player snapshot of a running game. It is meant to be
// created empty with NewGameState and filled in as the snapshot is assembled.
type GameState struct {
	Envelope
	ProposalOrder       opt.Value[[]string]
	MissionSizes        opt.Value[[]int]
	MissionResults      opt.Value[[]MissionResult]
	RoleInformation     string
	MissionPlayers      opt.Value[[]string]
	ProposerIndex       opt.Value[int]
	ProposalNum         int
	CurrentPhase        opt.Value[Phase]
	Declarations        opt.Value[[]Declaration]
	LastVoteInformation opt.Value[VoteInformation]
}

func NewGameState(success bool, errorMessage string) *GameState {
	return &GameState{
		Envelope:    Envelope{Type: GameStateType, Success: success, ErrorMessage: errorMessage},
		ProposalNum: 1,
	}
}

// Base always reports the gamestate type, whatever was assigned to the
// embedded envelope.
func (g *GameState) Base() Envelope {
	env := g.Envelope
	env.Type = GameStateType
	return env
}

func (g *GameState) Discriminator() string {
	return string(GameStateType)
}

func (g *GameState) sealed() {}

func (g *GameState) SetProposalOrder(order []string) *GameState {
	g.ProposalOrder = opt.Some(order)
	return g
}

func (g *GameState) SetMissionSizes(sizes []int) *GameState {
	g.MissionSizes = opt.Some(sizes)
	return g
}

func (g *GameState) SetMissionResults(results []MissionResult) *GameState {
	g.MissionResults = opt.Some(results)
	return g
}

func (g *GameState) SetRoleInformation(info string) *GameState {
	g.RoleInformation = info
	return g
}

func (g *GameState) SetMissionPlayers(players []string) *GameState {
	g.MissionPlayers = opt.Some(players)
	return g
}

func (g *GameState) SetProposerIndex(i int) *GameState {
	g.ProposerIndex = opt.Some(i)
	return g
}

func (g *GameState) SetProposalNum(n int) *GameState {
	g.ProposalNum = n
	return g
}

func (g *GameState) SetCurrentPhase(p Phase) *GameState {
	g.CurrentPhase = opt.Some(p)
	return g
}

func (g *GameState) SetDeclarations(d []Declaration) *GameState {
	g.Declarations = opt.Some(d)
	return g
}

func (g *GameState) SetLastVoteInformation(v VoteInformation) *GameState {
	g.LastVoteInformation = opt.Some(v)
	return g
}

func (g *GameState) appendFields(m map[string]any) map[string]any {
	m[KeyProposalOrder] = g.ProposalOrder.Any()
	m[KeyMissionSizes] = g.MissionSizes.Any()
	m[KeyMissionResults] = g.MissionResults.Any()
	m[KeyRoleInformation] = g.RoleInformation
	m[KeyMissionPlayers] = g.MissionPlayers.Any()
	m[KeyProposerIndex] = g.ProposerIndex.Any()
	m[KeyProposalNum] = g.ProposalNum
	m[KeyCurrentPhase] = g.CurrentPhase.Any()
	m[KeyDeclarations] = g.Declarations.Any()
	m[KeyLastVoteInfo] = g.LastVoteInformation.Any()
	return m
}
