package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bkohler93/thavalon-backend/internal/app/game"
	"github.com/bkohler93/thavalon-backend/internal/shared/message"
	"github.com/bkohler93/thavalon-backend/internal/shared/response"
	"github.com/bkohler93/thavalon-backend/internal/shared/transport"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type sent struct {
	to   uuidstring.ID
	resp map[string]any
}

type fakeBus struct {
	mu    sync.Mutex
	sent  []sent
	msgCh chan transport.WrappedConsumeMsg
	errCh chan error
	acked []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		msgCh: make(chan transport.WrappedConsumeMsg),
		errCh: make(chan error, 1),
	}
}

func (b *fakeBus) StartReceivingServerMessages(ctx context.Context) (<-chan transport.WrappedConsumeMsg, <-chan error) {
	return b.msgCh, b.errCh
}

func (b *fakeBus) AckServerMessage(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acked = append(b.acked, id)
	return nil
}

func (b *fakeBus) SendToClient(ctx context.Context, id uuidstring.ID, r response.Response) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sent{to: id, resp: response.Serialize(r)})
	return nil
}

func (b *fakeBus) drain() []sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.sent
	b.sent = nil
	return out
}

func startup(t *testing.T) (*Lobby, *fakeBus, *RedisRosterStore, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := NewRedisRosterStore(rdb)
	bus := newFakeBus()
	l := NewWithRand(store, bus, logrus.NewEntry(log), rand.New(rand.NewPCG(3, 4)))
	return l, bus, store, t.Context()
}

func joinEnv(t *testing.T, gameID, playerID uuidstring.ID, name string) message.Envelope {
	t.Helper()
	env, err := message.NewEnvelopeOf(message.JoinRequest, playerID, gameID, message.JoinPayload{Name: name})
	if err != nil {
		t.Fatalf("did not expect error building join envelope - %v", err)
	}
	return env
}

func joinN(t *testing.T, l *Lobby, ctx context.Context, gameID uuidstring.ID, n int) []uuidstring.ID {
	t.Helper()
	var players []uuidstring.ID
	for i := range n {
		id := uuidstring.NewID()
		if err := l.Handle(ctx, joinEnv(t, gameID, id, fmt.Sprintf("player%d", i+1))); err != nil {
			t.Fatalf("did not expect error joining - %v", err)
		}
		players = append(players, id)
	}
	return players
}

func TestJoin(t *testing.T) {
	t.Run("every player in the lobby gets the new roster", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		gameID := uuidstring.NewID()
		alice, bob := uuidstring.NewID(), uuidstring.NewID()

		if err := l.Handle(ctx, joinEnv(t, gameID, alice, "Alice")); err != nil {
			t.Fatalf("did not expect error - %v", err)
		}
		bus.drain()
		if err := l.Handle(ctx, joinEnv(t, gameID, bob, " Bob ")); err != nil {
			t.Fatalf("did not expect error - %v", err)
		}

		got := bus.drain()
		if len(got) != 2 {
			t.Fatalf("expected 2 join responses got %d", len(got))
		}
		expected := map[string]any{
			"type":          "join",
			"success":       true,
			"error_message": "",
			"player_names":  []string{"Alice", "Bob"},
			"player_list":   []string{alice.String(), bob.String()},
		}
		for i, s := range got {
			if !reflect.DeepEqual(s.resp, expected) {
				t.Errorf("response %d: expected %v got %v", i, expected, s.resp)
			}
		}
		if got[0].to != alice || got[1].to != bob {
			t.Errorf("expected responses for alice then bob got %s, %s", got[0].to, got[1].to)
		}
	})

	t.Run("duplicate name is rejected to the requester only", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		gameID := uuidstring.NewID()
		l.Handle(ctx, joinEnv(t, gameID, uuidstring.NewID(), "Alice"))
		bus.drain()

		imposter := uuidstring.NewID()
		if err := l.Handle(ctx, joinEnv(t, gameID, imposter, "Alice")); err != nil {
			t.Fatalf("rule violations should not be errors - %v", err)
		}
		got := bus.drain()
		if len(got) != 1 || got[0].to != imposter {
			t.Fatalf("expected one response to the requester got %v", got)
		}
		expected := map[string]any{
			"type":          "join",
			"success":       false,
			"error_message": ErrNameTaken.Error(),
			"player_names":  nil,
			"player_list":   nil,
		}
		if !reflect.DeepEqual(got[0].resp, expected) {
			t.Errorf("expected %v got %v", expected, got[0].resp)
		}
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		l.Handle(ctx, joinEnv(t, uuidstring.NewID(), uuidstring.NewID(), "   "))
		got := bus.drain()
		if len(got) != 1 || got[0].resp["error_message"] != ErrEmptyName.Error() {
			t.Errorf("expected empty name rejection got %v", got)
		}
	})

	t.Run("eleventh player is rejected", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		gameID := uuidstring.NewID()
		joinN(t, l, ctx, gameID, game.MaxPlayers)
		bus.drain()

		l.Handle(ctx, joinEnv(t, gameID, uuidstring.NewID(), "late"))
		got := bus.drain()
		if len(got) != 1 || got[0].resp["error_message"] != ErrGameFull.Error() {
			t.Errorf("expected game full rejection got %v", got)
		}
	})

	t.Run("game id that is not an id is rejected", func(t *testing.T) {
		l, bus, store, ctx := startup(t)
		l.Handle(ctx, joinEnv(t, "../../lobby:x", uuidstring.NewID(), "Alice"))
		got := bus.drain()
		if len(got) != 1 || got[0].resp["success"] != false || got[0].resp["error_message"] != ErrInvalidGameID.Error() {
			t.Errorf("expected invalid game id rejection got %v", got)
		}
		if roster, _ := store.Roster(ctx, "../../lobby:x"); len(roster) != 0 {
			t.Errorf("expected nothing stored got %v", roster)
		}
	})

	t.Run("game id is stored in canonical form", func(t *testing.T) {
		l, bus, store, ctx := startup(t)
		gameID := uuidstring.NewID()
		l.Handle(ctx, joinEnv(t, uuidstring.ID(strings.ToUpper(gameID.String())), uuidstring.NewID(), "Alice"))
		bus.drain()
		if roster, _ := store.Roster(ctx, gameID); len(roster) != 1 {
			t.Errorf("expected the join under the canonical id got %v", roster)
		}
	})

	t.Run("missing game id is rejected", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		l.Handle(ctx, joinEnv(t, "", uuidstring.NewID(), "Alice"))
		got := bus.drain()
		if len(got) != 1 || got[0].resp["type"] != "join" || got[0].resp["success"] != false {
			t.Errorf("expected failed join got %v", got)
		}
	})
}

func TestLeave(t *testing.T) {
	t.Run("remaining players and the leaver get a leave response", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		gameID := uuidstring.NewID()
		players := joinN(t, l, ctx, gameID, 2)
		bus.drain()

		env := message.Envelope{Type: message.LeaveRequest, PlayerID: players[1], GameID: gameID}
		if err := l.Handle(ctx, env); err != nil {
			t.Fatalf("did not expect error - %v", err)
		}
		got := bus.drain()
		if len(got) != 2 {
			t.Fatalf("expected 2 leave responses got %d", len(got))
		}
		if got[0].to != players[0] || got[1].to != players[1] {
			t.Errorf("expected responses to remaining player then leaver")
		}
		expected := map[string]any{
			"type":          "leave",
			"success":       true,
			"error_message": "",
			"player_names":  []string{"player1"},
			"player_list":   []string{players[0].String()},
		}
		if !reflect.DeepEqual(got[0].resp, expected) {
			t.Errorf("expected %v got %v", expected, got[0].resp)
		}
	})

	t.Run("leaving a lobby you are not in is rejected", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		env := message.Envelope{Type: message.LeaveRequest, PlayerID: uuidstring.NewID(), GameID: uuidstring.NewID()}
		l.Handle(ctx, env)
		got := bus.drain()
		if len(got) != 1 || got[0].resp["type"] != "leave" || got[0].resp["error_message"] != ErrNotInGame.Error() {
			t.Errorf("expected not in game rejection got %v", got)
		}
	})
}

func TestStartGame(t *testing.T) {
	t.Run("too few players is rejected", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		gameID := uuidstring.NewID()
		players := joinN(t, l, ctx, gameID, 4)
		bus.drain()

		l.Handle(ctx, message.Envelope{Type: message.StartGameRequest, PlayerID: players[0], GameID: gameID})
		got := bus.drain()
		if len(got) != 1 || got[0].resp["type"] != "error" || got[0].resp["error_message"] != game.ErrPlayerCount.Error() {
			t.Errorf("expected player count rejection got %v", got)
		}
	})

	t.Run("starting sends a notice and a private game state to everyone", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		gameID := uuidstring.NewID()
		players := joinN(t, l, ctx, gameID, 5)
		bus.drain()

		if err := l.Handle(ctx, message.Envelope{Type: message.StartGameRequest, PlayerID: players[0], GameID: gameID}); err != nil {
			t.Fatalf("did not expect error - %v", err)
		}
		got := bus.drain()
		if len(got) != 10 {
			t.Fatalf("expected 5 notices and 5 game states got %d", len(got))
		}
		for _, s := range got[:5] {
			if s.resp["type"] != "game_started" || s.resp["success"] != true || len(s.resp) != 3 {
				t.Errorf("unexpected notice %v", s.resp)
			}
		}
		roleInfo := map[any]bool{}
		for i, s := range got[5:] {
			if s.to != players[i] {
				t.Errorf("expected game state %d to go to %s got %s", i, players[i], s.to)
			}
			if s.resp["type"] != "gamestate" || len(s.resp) != 13 {
				t.Errorf("unexpected game state %v", s.resp)
			}
			if !reflect.DeepEqual(s.resp["missionSizes"], []int{2, 3, 2, 3, 3}) {
				t.Errorf("unexpected mission sizes %v", s.resp["missionSizes"])
			}
			roleInfo[s.resp["roleInformation"]] = true
		}
		if len(roleInfo) != 5 {
			t.Errorf("expected each player to get their own role information got %d distinct", len(roleInfo))
		}

		l.Handle(ctx, joinEnv(t, gameID, uuidstring.NewID(), "late"))
		got = bus.drain()
		if len(got) != 1 || got[0].resp["error_message"] != ErrGameStarted.Error() {
			t.Errorf("expected joining a started game to be rejected got %v", got)
		}

		l.Handle(ctx, message.Envelope{Type: message.StartGameRequest, PlayerID: players[1], GameID: gameID})
		got = bus.drain()
		if len(got) != 1 || got[0].resp["error_message"] != ErrGameStarted.Error() {
			t.Errorf("expected starting twice to be rejected got %v", got)
		}
	})
}

func TestGameStateRequest(t *testing.T) {
	t.Run("before the game starts the reply is a failed game state", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		player := uuidstring.NewID()
		l.Handle(ctx, message.Envelope{Type: message.GameStateRequest, PlayerID: player, GameID: uuidstring.NewID()})
		got := bus.drain()
		if len(got) != 1 {
			t.Fatalf("expected one response got %d", len(got))
		}
		m := got[0].resp
		if m["type"] != "gamestate" || m["success"] != false || m["error_message"] != ErrGameNotStarted.Error() {
			t.Errorf("unexpected envelope %v", m)
		}
		if m["proposalNum"] != 1 || m["proposalOrder"] != nil || len(m) != 13 {
			t.Errorf("expected default game state fields got %v", m)
		}
	})

	t.Run("a running game answers with the player's snapshot", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		gameID := uuidstring.NewID()
		players := joinN(t, l, ctx, gameID, 6)
		l.Handle(ctx, message.Envelope{Type: message.StartGameRequest, PlayerID: players[0], GameID: gameID})
		bus.drain()

		err := l.UpdateGame(ctx, gameID, func(g *game.Game) error {
			return g.RecordMission(response.MissionSuccess)
		})
		if err != nil {
			t.Fatalf("did not expect error updating - %v", err)
		}
		if got := bus.drain(); len(got) != 6 {
			t.Errorf("expected every player to get the new snapshot got %d", len(got))
		}

		l.Handle(ctx, message.Envelope{Type: message.GameStateRequest, PlayerID: players[2], GameID: gameID})
		got := bus.drain()
		if len(got) != 1 || got[0].to != players[2] {
			t.Fatalf("expected one snapshot for the requester got %v", got)
		}
		if !reflect.DeepEqual(got[0].resp["missionResults"], []response.MissionResult{response.MissionSuccess}) {
			t.Errorf("expected recorded mission in snapshot got %v", got[0].resp["missionResults"])
		}
		if got[0].resp["proposerIndex"] != 1 {
			t.Errorf("expected proposer index 1 got %v", got[0].resp["proposerIndex"])
		}
	})
}

func TestDeclare(t *testing.T) {
	t.Run("a declaration reaches every player's snapshot", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		gameID := uuidstring.NewID()
		players := joinN(t, l, ctx, gameID, 5)
		l.Handle(ctx, message.Envelope{Type: message.StartGameRequest, PlayerID: players[0], GameID: gameID})
		bus.drain()

		if err := l.Handle(ctx, message.Envelope{Type: message.DeclareRequest, PlayerID: players[3], GameID: gameID}); err != nil {
			t.Fatalf("did not expect error - %v", err)
		}
		g, err := l.Game(ctx, gameID)
		if err != nil {
			t.Fatalf("did not expect error loading - %v", err)
		}
		role, _ := g.RoleOf(players[3])

		got := bus.drain()
		if len(got) != 5 {
			t.Fatalf("expected 5 snapshots got %d", len(got))
		}
		for _, s := range got {
			decl, ok := s.resp["declarations"].([]response.Declaration)
			if !ok || len(decl) != 1 || decl[0].Player != "player4" || decl[0].Role != role.Name {
				t.Errorf("expected player4's declaration got %v", s.resp["declarations"])
			}
		}
	})

	t.Run("declaring twice or before the game starts is rejected", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		gameID := uuidstring.NewID()
		players := joinN(t, l, ctx, gameID, 5)
		bus.drain()

		l.Handle(ctx, message.Envelope{Type: message.DeclareRequest, PlayerID: players[0], GameID: gameID})
		got := bus.drain()
		if len(got) != 1 || got[0].resp["type"] != "error" || got[0].resp["error_message"] != ErrGameNotStarted.Error() {
			t.Errorf("expected not started rejection got %v", got)
		}

		l.Handle(ctx, message.Envelope{Type: message.StartGameRequest, PlayerID: players[0], GameID: gameID})
		l.Handle(ctx, message.Envelope{Type: message.DeclareRequest, PlayerID: players[0], GameID: gameID})
		bus.drain()
		l.Handle(ctx, message.Envelope{Type: message.DeclareRequest, PlayerID: players[0], GameID: gameID})
		got = bus.drain()
		if len(got) != 1 || got[0].to != players[0] || got[0].resp["error_message"] != game.ErrDeclared.Error() {
			t.Errorf("expected repeat declaration rejected got %v", got)
		}
	})
}

func TestUnknownRequestType(t *testing.T) {
	l, bus, _, ctx := startup(t)
	l.Handle(ctx, message.Envelope{Type: "vote", PlayerID: uuidstring.NewID(), GameID: uuidstring.NewID()})
	got := bus.drain()
	if len(got) != 1 || got[0].resp["type"] != "error" || got[0].resp["error_message"] != `unknown request type "vote"` {
		t.Errorf("expected unknown type error got %v", got)
	}
}

func TestStart(t *testing.T) {
	t.Run("requests are handled and acked, malformed ones are dropped", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		ctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- l.Start(ctx) }()

		env := joinEnv(t, uuidstring.NewID(), uuidstring.NewID(), "Alice")
		data, _ := json.Marshal(env)
		bus.msgCh <- transport.WrappedConsumeMsg{ID: "1-0", Payload: []byte(`{"bad"`)}
		bus.msgCh <- transport.WrappedConsumeMsg{ID: "2-0", Payload: data}

		deadline := time.Now().Add(2 * time.Second)
		for {
			bus.mu.Lock()
			n := len(bus.acked)
			bus.mu.Unlock()
			if n == 2 || time.Now().After(deadline) {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("did not expect error on shutdown - %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("lobby did not stop")
		}

		bus.mu.Lock()
		defer bus.mu.Unlock()
		if !reflect.DeepEqual(bus.acked, []string{"1-0", "2-0"}) {
			t.Errorf("expected both messages acked got %v", bus.acked)
		}
		if len(bus.sent) != 1 || bus.sent[0].resp["type"] != "join" {
			t.Errorf("expected one join response got %v", bus.sent)
		}
	})

	t.Run("consumer errors stop the lobby", func(t *testing.T) {
		l, bus, _, ctx := startup(t)
		boom := errors.New("stream gone")
		bus.errCh <- boom
		if err := l.Start(ctx); !errors.Is(err, boom) {
			t.Errorf("expected consumer error got %v", err)
		}
	})
}
