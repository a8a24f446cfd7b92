// Package visibility decides who may see a piece of content.
package visibility

import (
	"github.com/deemkeen/nodelink/domain"
	"github.com/google/uuid"
)

// FriendSet holds the ids of a viewer's friends.
type FriendSet map[uuid.UUID]struct{}

func NewFriendSet(ids ...uuid.UUID) FriendSet {
	s := make(FriendSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s FriendSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Item is the part of a post or comment the resolver looks at. OwnerId is
// the author whose friends may see FRIENDS content; for a post it is the
// post's author, for a comment the author of the post commented on.
type Item struct {
	AuthorId   uuid.UUID
	OwnerId    uuid.UUID
	Visibility domain.Visibility
}

func PostItem(p *domain.Post) Item {
	return Item{AuthorId: p.AuthorId, OwnerId: p.AuthorId, Visibility: p.Visibility}
}

// CommentItem returns the item for a comment, which inherits the audience of
// the post it belongs to.
func CommentItem(c *domain.Comment, post *domain.Post) Item {
	return Item{AuthorId: c.AuthorId, OwnerId: post.AuthorId, Visibility: post.Visibility}
}

// CanView reports whether viewer may see item. friends must be the friend set
// of viewer. A nil viewer is anonymous and sees public content only.
func CanView(viewer *domain.Author, item Item, friends FriendSet) bool {
	if item.Visibility == domain.VisibilityDeleted {
		return false
	}
	if viewer == nil {
		return item.Visibility == domain.VisibilityPublic
	}
	if viewer.Id == item.AuthorId || viewer.Id == item.OwnerId {
		return true
	}

	switch item.Visibility {
	case domain.VisibilityPublic, domain.VisibilityUnlisted:
		return true
	case domain.VisibilityFriends:
		return friends.Has(item.OwnerId)
	}
	return false
}

// FilterPosts returns the posts viewer may see, in their original order.
func FilterPosts(viewer *domain.Author, posts []domain.Post, friends FriendSet) []domain.Post {
	visible := make([]domain.Post, 0, len(posts))
	for i := range posts {
		if CanView(viewer, PostItem(&posts[i]), friends) {
			visible = append(visible, posts[i])
		}
	}
	return visible
}
