package response

import "github.com/bkohler93/thavalon-backend/pkg/opt"

const (
	KeyPlayerNames = "player_names"
	KeyPlayerList  = "player_list"
)

var joinLeaveKeys = []string{KeyPlayerNames, KeyPlayerList}

// JoinLeaveGame acknowledges a player joining or leaving a lobby. The same
// variant serves both; the caller picks the message through Type.
type JoinLeaveGame struct {
	Envelope
	PlayerNames opt.Value[[]string]
	PlayerList  opt.Value[[]string]
}

func NewJoinLeaveGame(t Type, success bool, errorMessage string) *JoinLeaveGame {
	return &JoinLeaveGame{
		Envelope: Envelope{Type: t, Success: success, ErrorMessage: errorMessage},
	}
}

func NewJoin(success bool, errorMessage string) *JoinLeaveGame {
	return NewJoinLeaveGame(Join, success, errorMessage)
}

func NewLeave(success bool, errorMessage string) *JoinLeaveGame {
	return NewJoinLeaveGame(Leave, success, errorMessage)
}

func (r *JoinLeaveGame) WithPlayerNames(names []string) *JoinLeaveGame {
	r.PlayerNames = opt.Some(names)
	return r
}

func (r *JoinLeaveGame) WithPlayerList(list []string) *JoinLeaveGame {
	r.PlayerList = opt.Some(list)
	return r
}

func (r *JoinLeaveGame) Base() Envelope {
	return r.Envelope
}

func (r *JoinLeaveGame) Discriminator() string {
	return string(r.Envelope.Type)
}

func (r *JoinLeaveGame) sealed() {}

func (r *JoinLeaveGame) appendFields(m map[string]any) map[string]any {
	m[KeyPlayerNames] = r.PlayerNames.Any()
	m[KeyPlayerList] = r.PlayerList.Any()
	return m
}
