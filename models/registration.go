package models

import "time"

type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleReferee     Role = "referee"
	RolePlayer      Role = "player"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCoordinator, RoleReferee, RolePlayer:
		return true
	}
	return false
}

// Registration is created on the first successful registration call and is
// immutable afterwards except for the Active flag. Owned by the registry.
type Registration struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	GameTypes    []string  `json:"game_types"`
	Endpoint     string    `json:"endpoint"`
	Token        string    `json:"-"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}
