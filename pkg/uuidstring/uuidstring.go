package uuidstring

import (
	"github.com/google/uuid"
)

// ID is a UUID kept in its canonical string form so it can be used directly
// as a map key, a Redis key segment and a JSON value.
type ID string

func NewID() ID {
	return ID(uuid.New().String())
}

// Parse validates s and returns it in canonical form.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ID(u.String()), nil
}

func (id ID) UUID() (uuid.UUID, error) {
	if id == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(string(id))
}

func (id ID) String() string {
	return string(id)
}

func (id ID) MarshalBinary() (data []byte, err error) {
	return []byte(id), nil
}
