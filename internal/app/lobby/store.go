package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/bkohler93/thavalon-backend/internal/app/game"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils/redisutils/rediskeys"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNameTaken     = errors.New("name is already taken")
	ErrGameFull      = errors.New("game is full")
	ErrGameStarted   = errors.New("game has already started")
	ErrAlreadyJoined = errors.New("player has already joined")
	ErrNotInGame     = errors.New("player is not in this game")
)

const maxTxRetries = 10

// RosterStore keeps the players waiting in each lobby, in join order, and
// the game a lobby turns into once it starts. Any lobby process sharing the
// store can serve any game.
type RosterStore interface {
	AddPlayer(ctx context.Context, gameID uuidstring.ID, p game.Player) ([]game.Player, error)
	RemovePlayer(ctx context.Context, gameID, playerID uuidstring.ID) ([]game.Player, error)
	Roster(ctx context.Context, gameID uuidstring.ID) ([]game.Player, error)
	StartGame(ctx context.Context, gameID uuidstring.ID, roll RollFunc) (*game.Game, error)
	LoadGame(ctx context.Context, gameID uuidstring.ID) (*game.Game, error)
	UpdateGame(ctx context.Context, gameID uuidstring.ID, fn func(g *game.Game) error) (*game.Game, error)
}

// RollFunc turns the final roster into a game. It may run more than once
// when another writer races the start.
type RollFunc = func(roster []game.Player) (*game.Game, error)

// rosterReader and gameReader are satisfied by both *redis.Client and
// *redis.Tx.
type rosterReader interface {
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
}

type gameReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type RedisRosterStore struct {
	rdb *redis.Client
}

func NewRedisRosterStore(rdb *redis.Client) *RedisRosterStore {
	return &RedisRosterStore{rdb: rdb}
}

// watch runs fn under WATCH on the lobby's keys and retries when another
// writer got there first.
func (s *RedisRosterStore) watch(ctx context.Context, gameID uuidstring.ID, fn func(tx *redis.Tx) error) error {
	keys := []string{
		rediskeys.LobbyPlayersList(gameID),
		rediskeys.LobbyNamesHash(gameID),
		rediskeys.LobbyStartedKey(gameID),
		rediskeys.LobbyGameState(gameID),
	}
	for range maxTxRetries {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("lobby %s - %w", gameID, redis.TxFailedErr)
}

func (s *RedisRosterStore) AddPlayer(ctx context.Context, gameID uuidstring.ID, p game.Player) ([]game.Player, error) {
	listKey := rediskeys.LobbyPlayersList(gameID)
	namesKey := rediskeys.LobbyNamesHash(gameID)

	err := s.watch(ctx, gameID, func(tx *redis.Tx) error {
		started, err := tx.Exists(ctx, rediskeys.LobbyStartedKey(gameID)).Result()
		if err != nil {
			return err
		}
		if started > 0 {
			return ErrGameStarted
		}

		names, err := tx.HGetAll(ctx, namesKey).Result()
		if err != nil {
			return err
		}
		if _, ok := names[p.UserID.String()]; ok {
			return ErrAlreadyJoined
		}
		for _, name := range names {
			if name == p.Name {
				return ErrNameTaken
			}
		}
		if len(names) >= game.MaxPlayers {
			return ErrGameFull
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, listKey, p.UserID.String())
			pipe.HSet(ctx, namesKey, p.UserID.String(), p.Name)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Roster(ctx, gameID)
}

func (s *RedisRosterStore) RemovePlayer(ctx context.Context, gameID, playerID uuidstring.ID) ([]game.Player, error) {
	listKey := rediskeys.LobbyPlayersList(gameID)
	namesKey := rediskeys.LobbyNamesHash(gameID)

	err := s.watch(ctx, gameID, func(tx *redis.Tx) error {
		started, err := tx.Exists(ctx, rediskeys.LobbyStartedKey(gameID)).Result()
		if err != nil {
			return err
		}
		if started > 0 {
			return ErrGameStarted
		}

		joined, err := tx.HExists(ctx, namesKey, playerID.String()).Result()
		if err != nil {
			return err
		}
		if !joined {
			return ErrNotInGame
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, listKey, 0, playerID.String())
			pipe.HDel(ctx, namesKey, playerID.String())
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Roster(ctx, gameID)
}

func (s *RedisRosterStore) Roster(ctx context.Context, gameID uuidstring.ID) ([]game.Player, error) {
	return readRoster(ctx, s.rdb, gameID)
}

func readRoster(ctx context.Context, r rosterReader, gameID uuidstring.ID) ([]game.Player, error) {
	ids, err := r.LRange(ctx, rediskeys.LobbyPlayersList(gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading roster of %s - %w", gameID, err)
	}
	if len(ids) == 0 {
		return []game.Player{}, nil
	}

	names, err := r.HMGet(ctx, rediskeys.LobbyNamesHash(gameID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading names of %s - %w", gameID, err)
	}

	players := make([]game.Player, 0, len(ids))
	for i, id := range ids {
		name, _ := names[i].(string)
		players = append(players, game.Player{UserID: uuidstring.ID(id), Name: name})
	}
	return players, nil
}

// StartGame closes the lobby and stores the game roll builds from its
// roster, in one transaction. It fails with ErrGameStarted if the lobby was
// already closed.
func (s *RedisRosterStore) StartGame(ctx context.Context, gameID uuidstring.ID, roll RollFunc) (*game.Game, error) {
	var g *game.Game
	err := s.watch(ctx, gameID, func(tx *redis.Tx) error {
		started, err := tx.Exists(ctx, rediskeys.LobbyStartedKey(gameID)).Result()
		if err != nil {
			return err
		}
		if started > 0 {
			return ErrGameStarted
		}

		roster, err := readRoster(ctx, tx, gameID)
		if err != nil {
			return err
		}
		g, err = roll(roster)
		if err != nil {
			return err
		}
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("error encoding game %s - %w", gameID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rediskeys.LobbyStartedKey(gameID), 1, 0)
			pipe.Set(ctx, rediskeys.LobbyGameState(gameID), data, 0)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// LoadGame returns the stored game, or ErrGameNotStarted.
func (s *RedisRosterStore) LoadGame(ctx context.Context, gameID uuidstring.ID) (*game.Game, error) {
	return loadGame(ctx, s.rdb, gameID)
}

func loadGame(ctx context.Context, c gameReader, gameID uuidstring.ID) (*game.Game, error) {
	data, err := c.Get(ctx, rediskeys.LobbyGameState(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotStarted
	}
	if err != nil {
		return nil, fmt.Errorf("error reading game %s - %w", gameID, err)
	}
	var g game.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("error decoding game %s - %w", gameID, err)
	}
	return &g, nil
}

// UpdateGame applies fn to the stored game and writes the result back. A
// concurrent update makes fn run again on the newer game.
func (s *RedisRosterStore) UpdateGame(ctx context.Context, gameID uuidstring.ID, fn func(g *game.Game) error) (*game.Game, error) {
	var g *game.Game
	err := s.watch(ctx, gameID, func(tx *redis.Tx) error {
		var err error
		g, err = loadGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("error encoding game %s - %w", gameID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rediskeys.LobbyGameState(gameID), data, 0)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func playerNames(players []game.Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.Name)
	}
	return out
}

func playerIDs(players []game.Player) []string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, p.UserID.String())
	}
	return out
}

func inRoster(players []game.Player, id uuidstring.ID) bool {
	return slices.ContainsFunc(players, func(p game.Player) bool { return p.UserID == id })
}
