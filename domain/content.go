package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "PUBLIC"
	VisibilityUnlisted Visibility = "UNLISTED"
	VisibilityFriends  Visibility = "FRIENDS"
	VisibilityDeleted  Visibility = "DELETED"
)

// ParseVisibility accepts wire values case-insensitively.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToUpper(strings.TrimSpace(s))); v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityFriends, VisibilityDeleted:
		return v, nil
	}
	return "", ErrInvalidVisibility
}

type Post struct {
	Id          uuid.UUID
	Serial      string
	AuthorId    uuid.UUID
	Title       string
	Content     string
	ContentType string
	Visibility  Visibility
	FQID        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Comment struct {
	Id          uuid.UUID
	AuthorId    uuid.UUID
	PostFQID    string
	Content     string
	ContentType string
	FQID        string
	CreatedAt   time.Time
}

type Like struct {
	Id         uuid.UUID
	AuthorId   uuid.UUID
	ObjectFQID string
	FQID       string
	CreatedAt  time.Time
}

// InboxItem records an inbound activity addressed to a local author.
type InboxItem struct {
	Id         uuid.UUID
	AuthorId   uuid.UUID
	Kind       string
	ActorFQID  string
	ObjectFQID string
	CreatedAt  time.Time
}

// DeliveryResult is the outcome of one relay attempt. Delivery is best effort,
// so failures are reported here instead of being returned as errors.
type DeliveryResult struct {
	InboxURL   string
	Delivered  bool
	Skipped    bool
	StatusCode int
	Err        error
}
