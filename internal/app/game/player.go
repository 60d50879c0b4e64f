package game

import "github.com/bkohler93/thavalon-backend/pkg/uuidstring"

type Player struct {
	UserID uuidstring.ID `json:"user_id"`
	Name   string        `json:"name"`
}

type Team string

const (
	Good Team = "Good"
	Evil Team = "Evil"
)

type Role struct {
	Name string `json:"name"`
	Team Team   `json:"team"`
}

var (
	Merlin    = Role{"Merlin", Good}
	Percival  = Role{"Percival", Good}
	Tristan   = Role{"Tristan", Good}
	Iseult    = Role{"Iseult", Good}
	Lancelot  = Role{"Lancelot", Good}
	Arthur    = Role{"Arthur", Good}
	Guinevere = Role{"Guinevere", Good}
	Nimue     = Role{"Nimue", Good}

	Mordred     = Role{"Mordred", Evil}
	Morgana     = Role{"Morgana", Evil}
	Maelegant   = Role{"Maelegant", Evil}
	Agravaine   = Role{"Agravaine", Evil}
	Colgrevance = Role{"Colgrevance", Evil}
)

var (
	goodRoles = []Role{Merlin, Percival, Tristan, Iseult, Lancelot, Arthur, Guinevere, Nimue}
	evilRoles = []Role{Mordred, Morgana, Maelegant, Agravaine, Colgrevance}
)

// evilCount is the number of Evil players per game size.
var evilCount = map[int]int{5: 2, 6: 2, 7: 3, 8: 3, 9: 3, 10: 4}

// missionSizes is the team size of each of the five missions per game size.
var missionSizes = map[int][]int{
	5:  {2, 3, 2, 3, 3},
	6:  {2, 3, 4, 3, 4},
	7:  {2, 3, 3, 4, 4},
	8:  {3, 4, 4, 5, 5},
	9:  {3, 4, 4, 5, 5},
	10: {3, 4, 4, 5, 5},
}

const (
	MinPlayers = 5
	MaxPlayers = 10
)
