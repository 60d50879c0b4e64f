package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/bkohler93/thavalon-backend/internal/shared/response"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
)

const missionsToWin = 3

var (
	ErrPlayerCount   = fmt.Errorf("games need between %d and %d players", MinPlayers, MaxPlayers)
	ErrUnknownPlayer = errors.New("player is not in this game")
	ErrGameOver      = errors.New("game is over")
	ErrDeclared      = errors.New("player has already declared")
)

// Game is the bookkeeping a rules engine drives. It records what happened
// and turns it into per-player snapshots; it does not decide whether a move
// was legal.
type Game struct {
	GameID  uuidstring.ID
	Players []Player

	roles          map[uuidstring.ID]Role
	names          map[uuidstring.ID]string
	proposalOrder  []uuidstring.ID
	missionSizes   []int
	missionResults []response.MissionResult
	missionPlayers []uuidstring.ID
	proposerIndex  int
	proposalNum    int
	phase          response.Phase
	declarations   []response.Declaration
	lastVote       *response.VoteInformation
}

// Roll deals roles and a random proposal order for players.
func Roll(gameID uuidstring.ID, players []Player, rng *rand.Rand) (*Game, error) {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return nil, ErrPlayerCount
	}

	g := &Game{
		GameID:         gameID,
		Players:        slices.Clone(players),
		roles:          make(map[uuidstring.ID]Role, len(players)),
		names:          make(map[uuidstring.ID]string, len(players)),
		missionSizes:   slices.Clone(missionSizes[len(players)]),
		missionResults: []response.MissionResult{},
		proposalNum:    1,
		phase:          response.PhaseProposal,
	}

	nEvil := evilCount[len(players)]
	good := slices.Clone(goodRoles)
	evil := slices.Clone(evilRoles)
	rng.Shuffle(len(good), func(i, j int) { good[i], good[j] = good[j], good[i] })
	rng.Shuffle(len(evil), func(i, j int) { evil[i], evil[j] = evil[j], evil[i] })
	// Merlin is always in play so Good has a priority target.
	if i := slices.Index(good, Merlin); i > 0 {
		good[0], good[i] = good[i], good[0]
	}
	deck := slices.Concat(evil[:nEvil], good[:len(players)-nEvil])
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	for i, p := range players {
		g.roles[p.UserID] = deck[i]
		g.names[p.UserID] = p.Name
		g.proposalOrder = append(g.proposalOrder, p.UserID)
	}
	rng.Shuffle(len(g.proposalOrder), func(i, j int) {
		g.proposalOrder[i], g.proposalOrder[j] = g.proposalOrder[j], g.proposalOrder[i]
	})
	return g, nil
}

func (g *Game) RoleOf(id uuidstring.ID) (Role, bool) {
	r, ok := g.roles[id]
	return r, ok
}

func (g *Game) Phase() response.Phase {
	return g.phase
}

func (g *Game) Proposer() uuidstring.ID {
	return g.proposalOrder[g.proposerIndex]
}

func (g *Game) CurrentMission() int {
	return len(g.missionResults)
}

// RecordProposal stores the team the current proposer put forward and
// moves the game to voting.
func (g *Game) RecordProposal(team []uuidstring.ID) error {
	if g.phase == response.PhaseDone {
		return ErrGameOver
	}
	for _, id := range team {
		if _, ok := g.roles[id]; !ok {
			return fmt.Errorf("%s - %w", id, ErrUnknownPlayer)
		}
	}
	g.missionPlayers = slices.Clone(team)
	g.phase = response.PhaseVoting
	return nil
}

// RecordVote stores the vote outcome. A sent proposal goes on its mission,
// otherwise the next player in the order proposes.
func (g *Game) RecordVote(upvotes, downvotes []uuidstring.ID, sent bool) error {
	if g.phase == response.PhaseDone {
		return ErrGameOver
	}
	g.lastVote = &response.VoteInformation{
		Upvotes:   g.namesOf(upvotes),
		Downvotes: g.namesOf(downvotes),
		Sent:      sent,
	}
	if sent {
		g.phase = response.PhaseMission
		return nil
	}
	g.advanceProposer()
	g.proposalNum++
	g.missionPlayers = nil
	g.phase = response.PhaseProposal
	return nil
}

// RecordMission appends the mission outcome and moves to the next proposal,
// to assassination after a third success, or ends the game after a third
// failure.
func (g *Game) RecordMission(result response.MissionResult) error {
	if g.phase == response.PhaseDone {
		return ErrGameOver
	}
	g.missionResults = append(g.missionResults, result)
	g.missionPlayers = nil
	g.proposalNum = 1
	g.advanceProposer()

	switch {
	case g.count(response.MissionFail) >= missionsToWin:
		g.phase = response.PhaseDone
	case g.count(response.MissionSuccess) >= missionsToWin:
		g.phase = response.PhaseAssassination
	default:
		g.phase = response.PhaseProposal
	}
	return nil
}

// Declare publicly reveals a player's role.
func (g *Game) Declare(id uuidstring.ID) error {
	if g.phase == response.PhaseDone {
		return ErrGameOver
	}
	role, ok := g.roles[id]
	if !ok {
		return ErrUnknownPlayer
	}
	name := g.names[id]
	if slices.ContainsFunc(g.declarations, func(d response.Declaration) bool { return d.Player == name }) {
		return ErrDeclared
	}
	g.declarations = append(g.declarations, response.Declaration{Player: name, Role: role.Name})
	return nil
}

func (g *Game) Finish() {
	g.phase = response.PhaseDone
}

func (g *Game) advanceProposer() {
	g.proposerIndex = (g.proposerIndex + 1) % len(g.proposalOrder)
}

func (g *Game) count(r response.MissionResult) int {
	n := 0
	for _, res := range g.missionResults {
		if res == r {
			n++
		}
	}
	return n
}

func (g *Game) namesOf(ids []uuidstring.ID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, g.names[id])
	}
	return names
}

// RoleInformation is the text only the given player may see: their role and
// whatever that role knows about the others.
func (g *Game) RoleInformation(id uuidstring.ID) string {
	role, ok := g.roles[id]
	if !ok {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s [%s].", role.Name, role.Team)

	var seen []string
	for _, p := range g.Players {
		if p.UserID == id {
			continue
		}
		other := g.roles[p.UserID]
		switch {
		case role == Merlin && other.Team == Evil && other != Mordred:
			seen = append(seen, p.Name)
		case role.Team == Evil && other.Team == Evil:
			seen = append(seen, fmt.Sprintf("%s (%s)", p.Name, other.Name))
		}
	}
	if len(seen) > 0 {
		slices.Sort(seen)
		if role.Team == Evil {
			fmt.Fprintf(&b, "\nYour fellow Evil players: %s.", strings.Join(seen, ", "))
		} else {
			fmt.Fprintf(&b, "\nYou see as Evil: %s.", strings.Join(seen, ", "))
		}
	}
	return b.String()
}
