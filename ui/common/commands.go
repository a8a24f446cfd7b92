package common

import (
	"context"
	"time"
)

type SessionState uint

const (
	NodeListView SessionState = iota
	AddNodeView
)

// NodeAddedMsg tells the node list to reload after the form registered a node.
type NodeAddedMsg struct{}

const commandTimeout = 10 * time.Second

// CommandContext bounds the store calls made from tea commands.
func CommandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}
