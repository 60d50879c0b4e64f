package message

import (
	"errors"
	"testing"

	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
)

func TestUnmarshalEnvelope(t *testing.T) {
	t.Run("join request round trips with its payload", func(t *testing.T) {
		playerID := uuidstring.NewID()
		gameID := uuidstring.NewID()
		env, err := NewEnvelopeOf(JoinRequest, playerID, gameID, JoinPayload{Name: "Alice"})
		if err != nil {
			t.Fatalf("did not expect error building envelope - %v", err)
		}

		data := []byte(`{"type":"join","player_id":"` + playerID.String() + `","game_id":"` + gameID.String() + `","payload":` + string(env.Payload) + `}`)
		got, err := UnmarshalEnvelope(data)
		if err != nil {
			t.Fatalf("did not expect error - %v", err)
		}
		if got.Type != JoinRequest || got.PlayerID != playerID || got.GameID != gameID {
			t.Errorf("unexpected envelope %+v", got)
		}
		p, err := DecodePayload[JoinPayload](got.Payload)
		if err != nil {
			t.Fatalf("did not expect error decoding payload - %v", err)
		}
		if p.Name != "Alice" {
			t.Errorf("expected name Alice got %s", p.Name)
		}
	})

	t.Run("missing type is rejected", func(t *testing.T) {
		_, err := UnmarshalEnvelope([]byte(`{"player_id":"abc"}`))
		if !errors.Is(err, ErrMissingType) {
			t.Errorf("expected ErrMissingType got %v", err)
		}
	})

	t.Run("missing player id is rejected", func(t *testing.T) {
		_, err := UnmarshalEnvelope([]byte(`{"type":"leave"}`))
		if !errors.Is(err, ErrMissingPlayerID) {
			t.Errorf("expected ErrMissingPlayerID got %v", err)
		}
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		if _, err := UnmarshalEnvelope([]byte(`{`)); err == nil {
			t.Errorf("expected an error for invalid json")
		}
	})

	t.Run("empty payload decodes to zero value", func(t *testing.T) {
		p, err := DecodePayload[JoinPayload](nil)
		if err != nil || p.Name != "" {
			t.Errorf("expected zero payload and no error got %+v, %v", p, err)
		}
	})
}
