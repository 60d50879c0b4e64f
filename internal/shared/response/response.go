// Package response builds the messages the server sends to THavalon clients.
//
// Every response carries the same envelope (type, success, error_message)
// followed by the keys of its variant. Serialize is the only way a response
// becomes wire data; it never fails and never mutates the response.
package response

import (
	"encoding/json"
	"fmt"
)

type Type string

const (
	Join            Type = "join"
	Leave           Type = "leave"
	GameStateType   Type = "gamestate"
	ErrorType       Type = "error"
	GameStartedType Type = "game_started"
)

const (
	KeyType         = "type"
	KeySuccess      = "success"
	KeyErrorMessage = "error_message"
)

var baseKeys = []string{KeyType, KeySuccess, KeyErrorMessage}

// Envelope holds the fields shared by every response. ErrorMessage is only
// meaningful when Success is false; nothing enforces that.
type Envelope struct {
	Type         Type
	Success      bool
	ErrorMessage string
}

func (e *Envelope) Succeed() {
	e.Success = true
	e.ErrorMessage = ""
}

func (e *Envelope) Fail(msg string) {
	e.Success = false
	e.ErrorMessage = msg
}

// Response is implemented only by the variants in this package.
type Response interface {
	Base() Envelope
	Discriminator() string
	sealed()
}

// Serialize returns a fresh map holding the envelope keys plus every key
// declared by the variant. Absent optional fields are present with a nil
// value.
func Serialize(r Response) map[string]any {
	env := r.Base()
	m := map[string]any{
		KeyType:         string(env.Type),
		KeySuccess:      env.Success,
		KeyErrorMessage: env.ErrorMessage,
	}

	switch v := r.(type) {
	case *JoinLeaveGame:
		return v.appendFields(m)
	case *GameState:
		return v.appendFields(m)
	case *Notice:
		return m
	default:
		panic(fmt.Sprintf("response: unhandled variant %T", r))
	}
}

// Encode serializes r and marshals the result to JSON.
func Encode(r Response) ([]byte, error) {
	return json.Marshal(Serialize(r))
}

// Keys lists the wire keys r serializes to, envelope keys first.
func Keys(r Response) []string {
	keys := append([]string{}, baseKeys...)
	switch r.(type) {
	case *JoinLeaveGame:
		return append(keys, joinLeaveKeys...)
	case *GameState:
		return append(keys, gameStateKeys...)
	case *Notice:
		return keys
	default:
		panic(fmt.Sprintf("response: unhandled variant %T", r))
	}
}

// Notice is a response with no fields beyond the envelope, used for plain
// acknowledgements and error replies.
type Notice struct {
	Envelope
}

func NewNotice(t Type, success bool, errorMessage string) *Notice {
	return &Notice{
		Envelope: Envelope{Type: t, Success: success, ErrorMessage: errorMessage},
	}
}

func NewError(errorMessage string) *Notice {
	return NewNotice(ErrorType, false, errorMessage)
}

func (n *Notice) Base() Envelope {
	return n.Envelope
}

func (n *Notice) Discriminator() string {
	return string(n.Envelope.Type)
}

func (n *Notice) sealed() {}
