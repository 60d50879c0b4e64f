package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/bkohler93/thavalon-backend/internal/app/game"
	"github.com/bkohler93/thavalon-backend/internal/shared/message"
	"github.com/bkohler93/thavalon-backend/internal/shared/response"
	"github.com/bkohler93/thavalon-backend/internal/shared/transport"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const internalErrorMessage = "internal server error"

var (
	ErrGameNotStarted = errors.New("game has not started")
	ErrEmptyName      = errors.New("name must not be empty")
	ErrMissingGameID  = errors.New("request is missing a game id")
	ErrInvalidGameID  = errors.New("game id is not a valid id")
)

// Bus is the lobby's view of the transport.
type Bus interface {
	StartReceivingServerMessages(ctx context.Context) (<-chan transport.WrappedConsumeMsg, <-chan error)
	AckServerMessage(ctx context.Context, id string) error
	SendToClient(ctx context.Context, id uuidstring.ID, r response.Response) error
}

// Lobby gathers players into games and answers every request with a
// response sent to the players it concerns. Rosters and running games live
// in the store, so any number of lobby processes can share the work.
type Lobby struct {
	store RosterStore
	bus   Bus
	log   *logrus.Entry

	// guards rng
	mu  sync.Mutex
	rng *rand.Rand
}

func New(store RosterStore, bus Bus, log *logrus.Entry) *Lobby {
	return NewWithRand(store, bus, log, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

func NewWithRand(store RosterStore, bus Bus, log *logrus.Entry, rng *rand.Rand) *Lobby {
	return &Lobby{
		store: store,
		bus:   bus,
		log:   log,
		rng:   rng,
	}
}

// Start consumes lobby requests until ctx is done or the consumer fails.
func (l *Lobby) Start(ctx context.Context) error {
	msgCh, errCh := l.bus.StartReceivingServerMessages(ctx)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, open := <-msgCh:
				if !open {
					return nil
				}
				l.process(ctx, msg)
			}
		}
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case err, open := <-errCh:
			if !open {
				return nil
			}
			return err
		}
	})

	l.log.Info("lobby is accepting requests")
	return g.Wait()
}

func (l *Lobby) process(ctx context.Context, msg transport.WrappedConsumeMsg) {
	env, err := message.UnmarshalEnvelope(msg.Payload)
	if err != nil {
		l.log.WithError(err).WithField("msg_id", msg.ID).Warn("dropping malformed request")
	} else if err := l.Handle(ctx, env); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"player_id": env.PlayerID,
			"game_id":   env.GameID,
			"type":      env.Type,
		}).Error("failed to handle request")
	}

	if err := l.bus.AckServerMessage(ctx, msg.ID); err != nil {
		l.log.WithError(err).WithField("msg_id", msg.ID).Error("failed to ack request")
	}
}

// Handle answers one request. Rule violations are answered with a failed
// response and are not errors; an error means a response could not be
// built or delivered.
func (l *Lobby) Handle(ctx context.Context, env message.Envelope) error {
	if env.GameID == "" {
		return l.reject(ctx, env, ErrMissingGameID)
	}
	gameID, err := uuidstring.Parse(env.GameID.String())
	if err != nil {
		return l.reject(ctx, env, ErrInvalidGameID)
	}
	env.GameID = gameID

	switch env.Type {
	case message.JoinRequest:
		return l.handleJoin(ctx, env)
	case message.LeaveRequest:
		return l.handleLeave(ctx, env)
	case message.StartGameRequest:
		return l.handleStartGame(ctx, env)
	case message.GameStateRequest:
		return l.handleGameState(ctx, env)
	case message.DeclareRequest:
		return l.handleDeclare(ctx, env)
	default:
		return l.reject(ctx, env, fmt.Errorf("unknown request type %q", env.Type))
	}
}

func (l *Lobby) handleJoin(ctx context.Context, env message.Envelope) error {
	p, err := message.DecodePayload[message.JoinPayload](env.Payload)
	if err != nil {
		return l.reject(ctx, env, fmt.Errorf("invalid join payload - %w", err))
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return l.reject(ctx, env, ErrEmptyName)
	}

	roster, err := l.store.AddPlayer(ctx, env.GameID, game.Player{UserID: env.PlayerID, Name: name})
	if err != nil {
		return l.rejectOrFail(ctx, env, err)
	}

	l.log.WithFields(logrus.Fields{"player_id": env.PlayerID, "game_id": env.GameID, "players": len(roster)}).Info("player joined")
	return l.broadcast(ctx, roster, func() response.Response {
		return response.NewJoin(true, "").
			WithPlayerNames(playerNames(roster)).
			WithPlayerList(playerIDs(roster))
	})
}

func (l *Lobby) handleLeave(ctx context.Context, env message.Envelope) error {
	roster, err := l.store.RemovePlayer(ctx, env.GameID, env.PlayerID)
	if err != nil {
		return l.rejectOrFail(ctx, env, err)
	}

	l.log.WithFields(logrus.Fields{"player_id": env.PlayerID, "game_id": env.GameID, "players": len(roster)}).Info("player left")
	recipients := append(roster, game.Player{UserID: env.PlayerID})
	return l.broadcast(ctx, recipients, func() response.Response {
		return response.NewLeave(true, "").
			WithPlayerNames(playerNames(roster)).
			WithPlayerList(playerIDs(roster))
	})
}

func (l *Lobby) handleStartGame(ctx context.Context, env message.Envelope) error {
	g, err := l.store.StartGame(ctx, env.GameID, func(roster []game.Player) (*game.Game, error) {
		if !inRoster(roster, env.PlayerID) {
			return nil, ErrNotInGame
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		return game.Roll(env.GameID, roster, l.rng)
	})
	if err != nil {
		return l.rejectOrFail(ctx, env, err)
	}

	l.log.WithFields(logrus.Fields{"game_id": env.GameID, "players": len(g.Players)}).Info("game started")
	if err := l.broadcast(ctx, g.Players, func() response.Response {
		return response.NewNotice(response.GameStartedType, true, "")
	}); err != nil {
		return err
	}
	return l.sendStates(ctx, g)
}

func (l *Lobby) handleGameState(ctx context.Context, env message.Envelope) error {
	g, err := l.store.LoadGame(ctx, env.GameID)
	if err != nil {
		return l.rejectOrFail(ctx, env, err)
	}
	s, err := g.StateFor(env.PlayerID)
	if err != nil {
		return l.reject(ctx, env, err)
	}
	return l.bus.SendToClient(ctx, env.PlayerID, s)
}

// handleDeclare publicly reveals the requester's role to the whole table.
func (l *Lobby) handleDeclare(ctx context.Context, env message.Envelope) error {
	err := l.UpdateGame(ctx, env.GameID, func(g *game.Game) error {
		return g.Declare(env.PlayerID)
	})
	if err != nil && isRuleViolation(err) {
		return l.reject(ctx, env, err)
	}
	return err
}

// SendGameState sends every player of a running game their own snapshot.
func (l *Lobby) SendGameState(ctx context.Context, gameID uuidstring.ID) error {
	g, err := l.store.LoadGame(ctx, gameID)
	if err != nil {
		return err
	}
	return l.sendStates(ctx, g)
}

// Game loads the running game.
func (l *Lobby) Game(ctx context.Context, gameID uuidstring.ID) (*game.Game, error) {
	return l.store.LoadGame(ctx, gameID)
}

// UpdateGame is how a rules engine drives a running game: fn records a move
// (RecordProposal, RecordVote, RecordMission, Declare, Finish), the result
// is stored and every player receives their new snapshot. Errors from fn
// are returned unchanged and nothing is stored or sent.
func (l *Lobby) UpdateGame(ctx context.Context, gameID uuidstring.ID, fn func(g *game.Game) error) error {
	g, err := l.store.UpdateGame(ctx, gameID, fn)
	if err != nil {
		return err
	}
	return l.sendStates(ctx, g)
}

func (l *Lobby) sendStates(ctx context.Context, g *game.Game) error {
	states := make([]*response.GameState, 0, len(g.Players))
	for _, p := range g.Players {
		s, err := g.StateFor(p.UserID)
		if err != nil {
			return err
		}
		states = append(states, s)
	}

	var errs []error
	for i, s := range states {
		if ctx.Err() != nil {
			break
		}
		p := g.Players[i]
		if err := l.bus.SendToClient(ctx, p.UserID, s); err != nil {
			errs = append(errs, fmt.Errorf("error sending game state to %s - %w", p.UserID, err))
		}
	}
	return errors.Join(errs...)
}

// broadcast builds a fresh response per recipient; responses are never
// shared between sends.
func (l *Lobby) broadcast(ctx context.Context, players []game.Player, build func() response.Response) error {
	var errs []error
	utils.SliceForeachContext(ctx, players, func(ctx context.Context, p game.Player) {
		if err := l.bus.SendToClient(ctx, p.UserID, build()); err != nil {
			errs = append(errs, fmt.Errorf("error sending to %s - %w", p.UserID, err))
		}
	})
	return errors.Join(errs...)
}

func isRuleViolation(err error) bool {
	return utils.ErrorsIsAny(err,
		ErrNameTaken, ErrGameFull, ErrGameStarted, ErrAlreadyJoined, ErrNotInGame,
		ErrGameNotStarted, ErrEmptyName, ErrMissingGameID, ErrInvalidGameID,
		game.ErrPlayerCount, game.ErrUnknownPlayer, game.ErrDeclared, game.ErrGameOver,
	)
}

// rejectOrFail answers rule violations with their message and anything else
// with a generic failure, returning the underlying error.
func (l *Lobby) rejectOrFail(ctx context.Context, env message.Envelope, err error) error {
	if isRuleViolation(err) {
		return l.reject(ctx, env, err)
	}
	if sendErr := l.bus.SendToClient(ctx, env.PlayerID, failure(env.Type, internalErrorMessage)); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

func (l *Lobby) reject(ctx context.Context, env message.Envelope, reason error) error {
	l.log.WithFields(logrus.Fields{
		"player_id": env.PlayerID,
		"game_id":   env.GameID,
		"type":      env.Type,
	}).WithError(reason).Debug("request rejected")
	return l.bus.SendToClient(ctx, env.PlayerID, failure(env.Type, reason.Error()))
}

// failure picks the response variant the client expects for a request type.
func failure(t message.RequestType, msg string) response.Response {
	switch t {
	case message.JoinRequest:
		return response.NewJoin(false, msg)
	case message.LeaveRequest:
		return response.NewLeave(false, msg)
	case message.GameStateRequest:
		return response.NewGameState(false, msg)
	default:
		return response.NewError(msg)
	}
}
