package graph

import (
	"context"
	"errors"

	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/visibility"
)

// Follow returns the edge actor -> object in any state.
func (e *Engine) Follow(ctx context.Context, actor, object *domain.Author) (*domain.Follow, error) {
	return e.db.ReadFollow(ctx, actor.Id, object.Id)
}

// IsFollower reports whether follower has an accepted follow on object.
func (e *Engine) IsFollower(ctx context.Context, object, follower *domain.Author) (bool, error) {
	f, err := e.db.ReadFollow(ctx, follower.Id, object.Id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Status == domain.FollowAccepted, nil
}

// Followers returns the accepted followers of a.
func (e *Engine) Followers(ctx context.Context, a *domain.Author) ([]domain.Author, error) {
	return e.db.ReadFollowers(ctx, a.Id, domain.FollowAccepted)
}

// RemoteFollowers returns accepted followers hosted on active remote nodes.
func (e *Engine) RemoteFollowers(ctx context.Context, a *domain.Author) ([]domain.Author, error) {
	return e.db.ReadRemoteFollowers(ctx, a.Id)
}

// Following returns the authors a follows with an accepted edge.
func (e *Engine) Following(ctx context.Context, a *domain.Author) ([]domain.Author, error) {
	return e.db.ReadFollowing(ctx, a.Id, domain.FollowAccepted)
}

func (e *Engine) PendingRequests(ctx context.Context, a *domain.Author) ([]domain.FollowRequest, error) {
	return e.db.ReadFollowRequests(ctx, a.Id)
}

func (e *Engine) Friends(ctx context.Context, a *domain.Author) ([]domain.Author, error) {
	return e.db.ReadFriends(ctx, a.Id)
}

func (e *Engine) RemoteFriends(ctx context.Context, a *domain.Author) ([]domain.Author, error) {
	return e.db.ReadRemoteFriends(ctx, a.Id)
}

// FriendSet loads a's friends once for list-scale visibility checks.
// A nil author has no friends.
func (e *Engine) FriendSet(ctx context.Context, a *domain.Author) (visibility.FriendSet, error) {
	if a == nil {
		return visibility.FriendSet{}, nil
	}
	ids, err := e.db.ReadFriendIds(ctx, a.Id)
	if err != nil {
		return nil, err
	}
	return visibility.NewFriendSet(ids...), nil
}

func (e *Engine) AreFriends(ctx context.Context, a, b *domain.Author) (bool, error) {
	user1, user2 := domain.CanonicalPair(a, b)
	_, err := e.db.ReadFriend(ctx, user1.Id, user2.Id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
