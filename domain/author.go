package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Author is either a local account or the shadow of an author hosted on a remote node.
type Author struct {
	Id           uuid.UUID
	Serial       string
	NodeId       uuid.UUID
	Username     string
	DisplayName  string
	Github       string
	ProfileImage string
	Page         string
	FQID         string // computed once on creation, never recomputed
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Author) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tSerial: %s \n\tUsername: %s \n\tFQID: %s", a.Id, a.Serial, a.Username, a.FQID)
}

// CanonicalPair orders two authors by FQID so that a friend pair has a single
// representation regardless of which side created it.
func CanonicalPair(a, b *Author) (*Author, *Author) {
	if b.FQID < a.FQID {
		return b, a
	}
	return a, b
}
