package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
)

type RequestType string

const (
	JoinRequest      RequestType = "join"
	LeaveRequest     RequestType = "leave"
	StartGameRequest RequestType = "start_game"
	GameStateRequest RequestType = "gamestate"
	DeclareRequest   RequestType = "declare"
)

var (
	ErrMissingType     = errors.New("message is missing a type")
	ErrMissingPlayerID = errors.New("message is missing a player id")
)

// Envelope is a client request as it travels from the gateway to a service.
// PlayerID is stamped by the gateway from the authenticated connection and
// is never trusted from the client frame.
type Envelope struct {
	Type     RequestType     `json:"type"`
	PlayerID uuidstring.ID   `json:"player_id"`
	GameID   uuidstring.ID   `json:"game_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type JoinPayload struct {
	Name string `json:"name"`
}

func NewEnvelopeOf[T any](t RequestType, playerID, gameID uuidstring.ID, payload T) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:     t,
		PlayerID: playerID,
		GameID:   gameID,
		Payload:  data,
	}, nil
}

func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("invalid message envelope - %w", err)
	}
	if e.Type == "" {
		return e, ErrMissingType
	}
	if e.PlayerID == "" {
		return e, ErrMissingPlayerID
	}
	return e, nil
}

func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var msg T
	if len(payload) == 0 {
		return &msg, nil
	}
	err := json.Unmarshal(payload, &msg)
	return &msg, err
}
