package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Node is a federation participant. Exactly one node per deployment is local.
type Node struct {
	Id       uuid.UUID
	BaseURL  string // normalized, always ends with "/"
	IsLocal  bool
	IsActive bool

	// Credentials a peer presents when calling us.
	Username     string
	PasswordHash string

	// Credentials we present when calling the peer.
	OutboundUsername string
	OutboundPassword string

	CreatedAt time.Time
}

func (n *Node) IsRemote() bool {
	return !n.IsLocal
}

func (n *Node) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tBaseURL: %s \n\tLocal: %t \n\tActive: %t", n.Id, n.BaseURL, n.IsLocal, n.IsActive)
}
