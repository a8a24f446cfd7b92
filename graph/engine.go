// Package graph owns the follow and friend state machines.
//
// A follow is a directed edge with the lifecycle
//
//	none -> pending -> accepted | denied
//	denied -> pending
//	accepted -> none
//
// A friend edge is derived: it exists exactly while both directed follows
// between a pair are accepted. Every read-modify-write runs in one immediate
// sqlite transaction, so transitions on the same pair are serialized.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/util"
	"github.com/google/uuid"
)

// Relayer delivers follow requests to remote inboxes. Implementations report
// failures in the result and never block the local transition.
type Relayer interface {
	SendFollow(ctx context.Context, actor, object *domain.Author) *domain.DeliveryResult
}

type Engine struct {
	db    *db.DB
	relay Relayer
	log   *log.Logger

	Hooks Hooks
}

// New returns an engine. relay may be nil, in which case nothing is sent.
func New(store *db.DB, relay Relayer) *Engine {
	return &Engine{db: store, relay: relay, log: util.Logger().WithPrefix("Graph")}
}

// mutate runs f in a transaction and fires the collected hooks after commit.
func (e *Engine) mutate(ctx context.Context, f func(tx *db.Tx, c *changes) error) error {
	var c *changes
	err := e.db.InTx(ctx, func(tx *db.Tx) error {
		c = &changes{}
		return f(tx, c)
	})
	if err != nil {
		return err
	}
	e.Hooks.fire(ctx, c)
	return nil
}

// RequestFollow records that actor wants to follow object and, when object
// lives on an active remote node, relays the request. Delivery failures are
// logged and never undo the pending edge.
func (e *Engine) RequestFollow(ctx context.Context, actor, object *domain.Author) (*domain.Follow, error) {
	follow, err := e.toPending(ctx, actor, object)
	if err != nil {
		return nil, err
	}
	if follow.Status == domain.FollowPending && e.relay != nil {
		if res := e.relay.SendFollow(ctx, actor, object); res != nil && res.Err != nil {
			e.log.Warn("follow request not delivered", "actor", actor.FQID, "object", object.FQID, "err", res.Err)
		}
	}
	return follow, nil
}

// ReceiveFollow applies a follow request that arrived through an inbox.
func (e *Engine) ReceiveFollow(ctx context.Context, actor, object *domain.Author) (*domain.Follow, error) {
	return e.toPending(ctx, actor, object)
}

func (e *Engine) toPending(ctx context.Context, actor, object *domain.Author) (*domain.Follow, error) {
	if actor.Id == object.Id {
		return nil, domain.ErrSelfFollow
	}

	var follow *domain.Follow
	err := e.mutate(ctx, func(tx *db.Tx, c *changes) error {
		existing, err := tx.ReadFollow(ctx, actor.Id, object.Id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			follow = &domain.Follow{ActorId: actor.Id, ObjectId: object.Id, Status: domain.FollowPending}
			if err := tx.CreateFollow(ctx, follow); err != nil {
				return err
			}
			c.requested = append(c.requested, *follow)
			return nil
		case err != nil:
			return err
		}

		follow = existing
		if existing.Status == domain.FollowDenied {
			if err := tx.UpdateFollowStatus(ctx, existing, domain.FollowPending); err != nil {
				return err
			}
			c.requested = append(c.requested, *existing)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("follow %s -> %s: %w", actor.FQID, object.FQID, err)
	}
	return follow, nil
}

// AcceptFollow accepts a pending request addressed to by.
func (e *Engine) AcceptFollow(ctx context.Context, requestID uuid.UUID, by *domain.Author) (*domain.Follow, error) {
	return e.decide(ctx, requestID, by, domain.FollowAccepted)
}

// DenyFollow denies a pending request addressed to by.
func (e *Engine) DenyFollow(ctx context.Context, requestID uuid.UUID, by *domain.Author) (*domain.Follow, error) {
	return e.decide(ctx, requestID, by, domain.FollowDenied)
}

func (e *Engine) decide(ctx context.Context, requestID uuid.UUID, by *domain.Author, status domain.FollowStatus) (*domain.Follow, error) {
	var follow *domain.Follow
	err := e.mutate(ctx, func(tx *db.Tx, c *changes) error {
		f, err := tx.ReadFollowById(ctx, requestID)
		if err != nil {
			return err
		}
		if f.ObjectId != by.Id || f.Status != domain.FollowPending {
			return domain.ErrFollowNotFound
		}
		if err := tx.UpdateFollowStatus(ctx, f, status); err != nil {
			return err
		}
		follow = f

		if status == domain.FollowDenied {
			c.denied = append(c.denied, *f)
			return nil
		}
		c.accepted = append(c.accepted, *f)
		return deriveFriend(ctx, tx, f, c)
	})
	if err != nil {
		return nil, err
	}
	return follow, nil
}

// AddFollower makes follower an accepted follower of object without a
// request round trip. An existing accepted edge is a conflict.
func (e *Engine) AddFollower(ctx context.Context, object, follower *domain.Author) (*domain.Follow, error) {
	if object.Id == follower.Id {
		return nil, domain.ErrSelfFollow
	}

	var follow *domain.Follow
	err := e.mutate(ctx, func(tx *db.Tx, c *changes) error {
		f, err := tx.ReadFollow(ctx, follower.Id, object.Id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			f = &domain.Follow{ActorId: follower.Id, ObjectId: object.Id, Status: domain.FollowAccepted}
			if err := tx.CreateFollow(ctx, f); err != nil {
				return err
			}
		case err != nil:
			return err
		case f.Status == domain.FollowAccepted:
			return domain.ErrAlreadyFollower
		default:
			if err := tx.UpdateFollowStatus(ctx, f, domain.FollowAccepted); err != nil {
				return err
			}
		}
		follow = f
		c.accepted = append(c.accepted, *f)
		return deriveFriend(ctx, tx, f, c)
	})
	if err != nil {
		return nil, err
	}
	return follow, nil
}

// ConfirmFollow marks actor -> object accepted after the remote side reported
// acceptance. A missing edge is not recreated.
func (e *Engine) ConfirmFollow(ctx context.Context, actor, object *domain.Author) (*domain.Follow, error) {
	var follow *domain.Follow
	err := e.mutate(ctx, func(tx *db.Tx, c *changes) error {
		f, err := tx.ReadFollow(ctx, actor.Id, object.Id)
		if err != nil {
			return err
		}
		follow = f
		if f.Status == domain.FollowAccepted {
			return nil
		}
		if err := tx.UpdateFollowStatus(ctx, f, domain.FollowAccepted); err != nil {
			return err
		}
		c.accepted = append(c.accepted, *f)
		return deriveFriend(ctx, tx, f, c)
	})
	if err != nil {
		return nil, err
	}
	return follow, nil
}

// deriveFriend creates the friend edge when f and its reciprocal are both
// accepted. It runs on every transition into accepted.
func deriveFriend(ctx context.Context, tx *db.Tx, f *domain.Follow, c *changes) error {
	reciprocal, err := tx.ReadFollow(ctx, f.ObjectId, f.ActorId)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if reciprocal.Status != domain.FollowAccepted {
		return nil
	}

	user1, user2, err := canonical(ctx, tx, f.ActorId, f.ObjectId)
	if err != nil {
		return err
	}
	friend := &domain.Friend{User1Id: user1, User2Id: user2}
	created, err := tx.CreateFriend(ctx, friend)
	if err != nil {
		return err
	}
	if created {
		c.friendCreated = append(c.friendCreated, *friend)
	}
	return nil
}

// canonical orders two author ids by their FQIDs.
func canonical(ctx context.Context, tx *db.Tx, a, b uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	authorA, err := tx.ReadAuthorById(ctx, a)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	authorB, err := tx.ReadAuthorById(ctx, b)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	first, second := domain.CanonicalPair(authorA, authorB)
	return first.Id, second.Id, nil
}

// Unfollow deletes actor -> object and any friend edge of the pair in one
// transaction. The reverse follow is kept.
func (e *Engine) Unfollow(ctx context.Context, actor, object *domain.Author) error {
	return e.mutate(ctx, func(tx *db.Tx, c *changes) error {
		f, err := tx.ReadFollow(ctx, actor.Id, object.Id)
		if err != nil {
			return err
		}
		if err := tx.DeleteFollow(ctx, f.Id); err != nil {
			return err
		}
		c.removed = append(c.removed, *f)
		return dropFriend(ctx, tx, actor, object, c)
	})
}

// RemoveFollower is Unfollow seen from the followed author.
func (e *Engine) RemoveFollower(ctx context.Context, object, follower *domain.Author) error {
	return e.Unfollow(ctx, follower, object)
}

// Unfriend deletes the friend edge and the a -> b follow. The b -> a follow
// is intentionally left in place.
func (e *Engine) Unfriend(ctx context.Context, a, b *domain.Author) error {
	return e.mutate(ctx, func(tx *db.Tx, c *changes) error {
		user1, user2 := domain.CanonicalPair(a, b)
		friend, err := tx.ReadFriend(ctx, user1.Id, user2.Id)
		if err != nil {
			return err
		}
		if _, err := tx.DeleteFriend(ctx, user1.Id, user2.Id); err != nil {
			return err
		}
		c.friendRemoved = append(c.friendRemoved, *friend)

		f, err := tx.ReadFollow(ctx, a.Id, b.Id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteFollow(ctx, f.Id); err != nil {
			return err
		}
		c.removed = append(c.removed, *f)
		return nil
	})
}

func dropFriend(ctx context.Context, tx *db.Tx, a, b *domain.Author, c *changes) error {
	user1, user2 := domain.CanonicalPair(a, b)
	friend, err := tx.ReadFriend(ctx, user1.Id, user2.Id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.DeleteFriend(ctx, user1.Id, user2.Id); err != nil {
		return err
	}
	c.friendRemoved = append(c.friendRemoved, *friend)
	return nil
}
