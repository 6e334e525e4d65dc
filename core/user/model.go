package user

import (
	"time"

	"github.com/sksmith/harvest-ledger/core/ledger"
)

type CreateUserRequest struct {
	Username          string      `json:"username,omitempty"`
	OwnerID           string      `json:"ownerId,omitempty"`
	Role              ledger.Role `json:"role,omitempty"`
	PlainTextPassword string      `json:"-"`
}

type User struct {
	Username       string
	HashedPassword string
	OwnerID        string
	Role           ledger.Role
	Created        time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == ledger.RoleAdmin
}

// Actor is the identity the user acts under when calling the ledger service.
func (u User) Actor() ledger.ActorContext {
	return ledger.ActorContext{
		ActorID: u.Username,
		OwnerID: u.OwnerID,
		Role:    u.Role,
	}
}
