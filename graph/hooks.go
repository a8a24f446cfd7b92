package graph

import (
	"context"

	"github.com/deemkeen/nodelink/domain"
)

type FollowHook func(ctx context.Context, f domain.Follow)
type FriendHook func(ctx context.Context, f domain.Friend)

// Hooks are invoked synchronously, in registration order, after the
// transaction that caused them has committed. A rolled back transition
// fires nothing.
type Hooks struct {
	OnFollowRequested []FollowHook
	OnFollowAccepted  []FollowHook
	OnFollowDenied    []FollowHook
	OnFollowRemoved   []FollowHook
	OnFriendCreated   []FriendHook
	OnFriendRemoved   []FriendHook
}

// changes collects the transitions of one transaction attempt.
type changes struct {
	requested     []domain.Follow
	accepted      []domain.Follow
	denied        []domain.Follow
	removed       []domain.Follow
	friendCreated []domain.Friend
	friendRemoved []domain.Friend
}

func (h *Hooks) fire(ctx context.Context, c *changes) {
	fireFollow(ctx, h.OnFollowRequested, c.requested)
	fireFollow(ctx, h.OnFollowAccepted, c.accepted)
	fireFollow(ctx, h.OnFollowDenied, c.denied)
	fireFollow(ctx, h.OnFollowRemoved, c.removed)
	fireFriend(ctx, h.OnFriendCreated, c.friendCreated)
	fireFriend(ctx, h.OnFriendRemoved, c.friendRemoved)
}

func fireFollow(ctx context.Context, hooks []FollowHook, follows []domain.Follow) {
	for _, f := range follows {
		for _, hook := range hooks {
			hook(ctx, f)
		}
	}
}

func fireFriend(ctx context.Context, hooks []FriendHook, friends []domain.Friend) {
	for _, f := range friends {
		for _, hook := range hooks {
			hook(ctx, f)
		}
	}
}
