package domain

import (
	"time"

	"github.com/google/uuid"
)

type FollowStatus string

const (
	FollowPending  FollowStatus = "pending"
	FollowAccepted FollowStatus = "accepted"
	FollowDenied   FollowStatus = "denied"
)

// Follow is a directed edge: Actor follows (or asked to follow) Object.
type Follow struct {
	Id        uuid.UUID
	ActorId   uuid.UUID
	ObjectId  uuid.UUID
	Status    FollowStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Friend is derived from two accepted follows between the same pair.
// User1 is the author whose FQID sorts first.
type Friend struct {
	Id        uuid.UUID
	User1Id   uuid.UUID
	User2Id   uuid.UUID
	CreatedAt time.Time
}

// FollowRequest is a pending follow together with the author who asked.
type FollowRequest struct {
	Follow Follow
	Actor  Author
}
