package graph

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/domain"
	"github.com/google/uuid"
)

type fakeRelay struct {
	mu    sync.Mutex
	sent  []string
	fails bool
}

func (r *fakeRelay) SendFollow(ctx context.Context, actor, object *domain.Author) *domain.DeliveryResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, actor.FQID+" -> "+object.FQID)
	if r.fails {
		return &domain.DeliveryResult{InboxURL: object.FQID + "/inbox", Err: errors.New("connection refused")}
	}
	return &domain.DeliveryResult{InboxURL: object.FQID + "/inbox", Delivered: true, StatusCode: 201}
}

type fixture struct {
	store  *db.DB
	engine *Engine
	relay  *fakeRelay
	local  *domain.Node
	remote *domain.Node
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	return newFixture(t, store)
}

// setupFileFixture uses a WAL database file so transactions run on separate
// connections and really contend for the write lock.
func setupFileFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("Failed to open database file: %v", err)
	}
	return newFixture(t, store)
}

func newFixture(t *testing.T, store *db.DB) *fixture {
	t.Helper()
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	local := &domain.Node{BaseURL: "http://n1/api/", IsLocal: true, IsActive: true, Username: "n1", PasswordHash: "x"}
	remote := &domain.Node{BaseURL: "http://n2/api/", IsActive: true, Username: "n2", PasswordHash: "x"}
	for _, n := range []*domain.Node{local, remote} {
		if err := store.CreateNode(ctx, n); err != nil {
			t.Fatalf("CreateNode failed: %v", err)
		}
	}

	relay := &fakeRelay{}
	return &fixture{store: store, engine: New(store, relay), relay: relay, local: local, remote: remote}
}

func (f *fixture) author(t *testing.T, node *domain.Node, serial string) *domain.Author {
	t.Helper()
	a := &domain.Author{Serial: serial, NodeId: node.Id, Username: serial + "@" + node.Username, FQID: node.BaseURL + "authors/" + serial}
	if err := f.store.CreateAuthor(context.Background(), a); err != nil {
		t.Fatalf("CreateAuthor failed: %v", err)
	}
	return a
}

// befriend drives both directions to accepted through requests and accepts.
func (f *fixture) befriend(t *testing.T, a, b *domain.Author) {
	t.Helper()
	ctx := context.Background()
	ab, err := f.engine.RequestFollow(ctx, a, b)
	if err != nil {
		t.Fatalf("RequestFollow failed: %v", err)
	}
	if _, err := f.engine.AcceptFollow(ctx, ab.Id, b); err != nil {
		t.Fatalf("AcceptFollow failed: %v", err)
	}
	ba, err := f.engine.RequestFollow(ctx, b, a)
	if err != nil {
		t.Fatalf("RequestFollow failed: %v", err)
	}
	if _, err := f.engine.AcceptFollow(ctx, ba.Id, a); err != nil {
		t.Fatalf("AcceptFollow failed: %v", err)
	}
}

func (f *fixture) countFriends(t *testing.T) int {
	t.Helper()
	n, err := f.store.CountFriends(context.Background())
	if err != nil {
		t.Fatalf("CountFriends failed: %v", err)
	}
	return n
}

func TestRequestFollowIsIdempotent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")

	first, err := f.engine.RequestFollow(ctx, a, b)
	if err != nil {
		t.Fatalf("RequestFollow failed: %v", err)
	}
	second, err := f.engine.RequestFollow(ctx, a, b)
	if err != nil {
		t.Fatalf("second RequestFollow failed: %v", err)
	}

	if first.Id != second.Id {
		t.Errorf("Expected the same edge, got %s and %s", first.Id, second.Id)
	}
	if second.Status != domain.FollowPending {
		t.Errorf("Expected pending, got %s", second.Status)
	}
	n, _ := f.store.CountFollows(ctx, a.Id, b.Id)
	if n != 1 {
		t.Errorf("Expected exactly one edge, got %d", n)
	}
}

func TestRequestFollowAfterAcceptIsNoop(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")

	req, _ := f.engine.RequestFollow(ctx, a, b)
	if _, err := f.engine.AcceptFollow(ctx, req.Id, b); err != nil {
		t.Fatalf("AcceptFollow failed: %v", err)
	}

	again, err := f.engine.RequestFollow(ctx, a, b)
	if err != nil {
		t.Fatalf("RequestFollow failed: %v", err)
	}
	if again.Status != domain.FollowAccepted {
		t.Errorf("Accepted edge must stay accepted, got %s", again.Status)
	}
}

func TestSelfFollowRejected(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")

	_, err := f.engine.RequestFollow(ctx, a, a)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	if _, err := f.engine.AddFollower(ctx, a, a); !errors.Is(err, domain.ErrSelfFollow) {
		t.Errorf("Expected ErrSelfFollow from AddFollower, got %v", err)
	}

	n, _ := f.store.CountFollows(ctx, a.Id, a.Id)
	if n != 0 {
		t.Errorf("No edge may be created, got %d", n)
	}
	if len(f.relay.sent) != 0 {
		t.Errorf("Nothing may be relayed, got %v", f.relay.sent)
	}
}

func TestDeniedRequestCanBeResent(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")

	req, _ := f.engine.RequestFollow(ctx, a, b)
	if _, err := f.engine.DenyFollow(ctx, req.Id, b); err != nil {
		t.Fatalf("DenyFollow failed: %v", err)
	}

	again, err := f.engine.RequestFollow(ctx, a, b)
	if err != nil {
		t.Fatalf("RequestFollow failed: %v", err)
	}
	if again.Id != req.Id || again.Status != domain.FollowPending {
		t.Errorf("Expected edge %s back to pending, got %s %s", req.Id, again.Id, again.Status)
	}
	if !again.UpdatedAt.After(req.UpdatedAt) && !again.UpdatedAt.Equal(req.UpdatedAt) {
		t.Errorf("Timestamp must be refreshed")
	}
}

func TestAcceptRequiresPendingAddressedToAcceptor(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")
	c := f.author(t, f.local, "c")

	req, _ := f.engine.RequestFollow(ctx, a, b)

	if _, err := f.engine.AcceptFollow(ctx, req.Id, c); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Third party accept: expected ErrNotFound, got %v", err)
	}
	if _, err := f.engine.AcceptFollow(ctx, uuid.New(), b); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Unknown request: expected ErrNotFound, got %v", err)
	}
	if _, err := f.engine.AcceptFollow(ctx, req.Id, b); err != nil {
		t.Fatalf("AcceptFollow failed: %v", err)
	}
	if _, err := f.engine.DenyFollow(ctx, req.Id, b); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Deny after accept: expected ErrNotFound, got %v", err)
	}
}

func TestAcceptWithoutReciprocalCreatesNoFriend(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")

	req, _ := f.engine.RequestFollow(ctx, a, b)
	accepted, err := f.engine.AcceptFollow(ctx, req.Id, b)
	if err != nil {
		t.Fatalf("AcceptFollow failed: %v", err)
	}
	if accepted.Status != domain.FollowAccepted {
		t.Errorf("Expected accepted, got %s", accepted.Status)
	}
	if n := f.countFriends(t); n != 0 {
		t.Errorf("Expected no friend edge, got %d", n)
	}
}

func TestMutualFollowCreatesCanonicalFriend(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	// zed sorts after amy, and is created first so ids do not hint the order
	zed := f.author(t, f.local, "zed")
	amy := f.author(t, f.local, "amy")

	f.befriend(t, zed, amy)

	if n := f.countFriends(t); n != 1 {
		t.Fatalf("Expected one friend edge, got %d", n)
	}
	friend, err := f.store.ReadFriend(ctx, amy.Id, zed.Id)
	if err != nil {
		t.Fatalf("Expected friend (amy, zed): %v", err)
	}
	if friend.User1Id != amy.Id {
		t.Errorf("user1 must be the author whose fqid sorts first")
	}

	ok, err := f.engine.AreFriends(ctx, zed, amy)
	if err != nil || !ok {
		t.Errorf("AreFriends = %t, %v", ok, err)
	}
}

func TestFriendDerivedOnEveryAcceptedTransition(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	alice := f.author(t, f.local, "alice")
	r42 := f.author(t, f.remote, "42")

	// 42 follows alice via the followers endpoint
	if _, err := f.engine.AddFollower(ctx, alice, r42); err != nil {
		t.Fatalf("AddFollower failed: %v", err)
	}
	// alice's request to 42 is confirmed later by the sync job
	if _, err := f.engine.RequestFollow(ctx, alice, r42); err != nil {
		t.Fatalf("RequestFollow failed: %v", err)
	}
	if n := f.countFriends(t); n != 0 {
		t.Fatalf("Pending edge must not create a friend, got %d", n)
	}
	if _, err := f.engine.ConfirmFollow(ctx, alice, r42); err != nil {
		t.Fatalf("ConfirmFollow failed: %v", err)
	}
	if n := f.countFriends(t); n != 1 {
		t.Errorf("Expected a friend edge after confirmation, got %d", n)
	}

	// a second confirmation changes nothing
	if _, err := f.engine.ConfirmFollow(ctx, alice, r42); err != nil {
		t.Fatalf("second ConfirmFollow failed: %v", err)
	}
	if n := f.countFriends(t); n != 1 {
		t.Errorf("Expected still one friend edge, got %d", n)
	}
}

func TestConfirmFollowDoesNotRecreateEdge(t *testing.T) {
	f := setupFixture(t)
	a := f.author(t, f.local, "a")
	r := f.author(t, f.remote, "r")

	if _, err := f.engine.ConfirmFollow(context.Background(), a, r); !errors.Is(err, domain.ErrFollowNotFound) {
		t.Errorf("Expected ErrFollowNotFound, got %v", err)
	}
}

func TestUnfollowCascadesFriend(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")
	f.befriend(t, a, b)

	if err := f.engine.Unfollow(ctx, a, b); err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}

	if n := f.countFriends(t); n != 0 {
		t.Errorf("Friend edge must be removed, got %d", n)
	}
	if _, err := f.store.ReadFollow(ctx, a.Id, b.Id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("a -> b must be deleted, got %v", err)
	}
	ba, err := f.store.ReadFollow(ctx, b.Id, a.Id)
	if err != nil {
		t.Fatalf("b -> a must persist: %v", err)
	}
	if ba.Status != domain.FollowAccepted {
		t.Errorf("b -> a must stay accepted, got %s", ba.Status)
	}

	if err := f.engine.Unfollow(ctx, a, b); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Second unfollow: expected ErrNotFound, got %v", err)
	}
}

func TestRemoveFollowerCascadesFriend(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")
	f.befriend(t, a, b)

	if err := f.engine.RemoveFollower(ctx, b, a); err != nil {
		t.Fatalf("RemoveFollower failed: %v", err)
	}
	if n := f.countFriends(t); n != 0 {
		t.Errorf("Friend edge must be removed, got %d", n)
	}
	if ok, _ := f.engine.IsFollower(ctx, b, a); ok {
		t.Error("a must no longer follow b")
	}
}

func TestUnfriendIsAsymmetric(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")
	c := f.author(t, f.local, "c")
	f.befriend(t, a, b)

	if err := f.engine.Unfriend(ctx, a, c); !errors.Is(err, domain.ErrFriendNotFound) {
		t.Errorf("Expected ErrFriendNotFound for non-friends, got %v", err)
	}

	if err := f.engine.Unfriend(ctx, a, b); err != nil {
		t.Fatalf("Unfriend failed: %v", err)
	}
	if n := f.countFriends(t); n != 0 {
		t.Errorf("Friend edge must be removed, got %d", n)
	}
	if ok, _ := f.engine.IsFollower(ctx, b, a); ok {
		t.Error("a -> b must be deleted")
	}
	if ok, _ := f.engine.IsFollower(ctx, a, b); !ok {
		t.Error("b -> a must be kept")
	}
}

func TestAddFollowerConflict(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	alice := f.author(t, f.local, "alice")
	r42 := f.author(t, f.remote, "42")

	follow, err := f.engine.AddFollower(ctx, alice, r42)
	if err != nil {
		t.Fatalf("AddFollower failed: %v", err)
	}
	if follow.Status != domain.FollowAccepted || follow.ActorId != r42.Id || follow.ObjectId != alice.Id {
		t.Errorf("Unexpected edge %+v", follow)
	}

	if _, err := f.engine.AddFollower(ctx, alice, r42); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	n, _ := f.store.CountFollows(ctx, r42.Id, alice.Id)
	if n != 1 {
		t.Errorf("Expected one edge, got %d", n)
	}
}

func TestAddFollowerPromotesPending(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	alice := f.author(t, f.local, "alice")
	r42 := f.author(t, f.remote, "42")

	req, err := f.engine.ReceiveFollow(ctx, r42, alice)
	if err != nil {
		t.Fatalf("ReceiveFollow failed: %v", err)
	}
	got, err := f.engine.AddFollower(ctx, alice, r42)
	if err != nil {
		t.Fatalf("AddFollower failed: %v", err)
	}
	if got.Id != req.Id || got.Status != domain.FollowAccepted {
		t.Errorf("Expected edge %s accepted, got %+v", req.Id, got)
	}
}

func TestRemoteFollowRelayFailureKeepsPendingEdge(t *testing.T) {
	f := setupFixture(t)
	f.relay.fails = true
	ctx := context.Background()
	alice := f.author(t, f.local, "alice")
	r42 := f.author(t, f.remote, "42")

	follow, err := f.engine.RequestFollow(ctx, alice, r42)
	if err != nil {
		t.Fatalf("Relay failure must not surface, got %v", err)
	}
	if len(f.relay.sent) != 1 {
		t.Fatalf("Expected one relay attempt, got %d", len(f.relay.sent))
	}

	stored, err := f.store.ReadFollow(ctx, alice.Id, r42.Id)
	if err != nil {
		t.Fatalf("Pending edge must exist: %v", err)
	}
	if stored.Id != follow.Id || stored.Status != domain.FollowPending {
		t.Errorf("Expected pending edge %s, got %+v", follow.Id, stored)
	}
}

func TestHooksFireAfterCommit(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")

	var events []string
	follow := func(name string) FollowHook {
		return func(ctx context.Context, _ domain.Follow) { events = append(events, name) }
	}
	friend := func(name string) FriendHook {
		return func(ctx context.Context, _ domain.Friend) { events = append(events, name) }
	}
	f.engine.Hooks.OnFollowRequested = append(f.engine.Hooks.OnFollowRequested, follow("requested"))
	f.engine.Hooks.OnFollowAccepted = append(f.engine.Hooks.OnFollowAccepted, follow("accepted"))
	f.engine.Hooks.OnFollowRemoved = append(f.engine.Hooks.OnFollowRemoved, follow("removed"))
	f.engine.Hooks.OnFriendCreated = append(f.engine.Hooks.OnFriendCreated, friend("friend+"))
	f.engine.Hooks.OnFriendRemoved = append(f.engine.Hooks.OnFriendRemoved, friend("friend-"))
	// the hook reads committed state through the pool
	f.engine.Hooks.OnFriendCreated = append(f.engine.Hooks.OnFriendCreated, func(ctx context.Context, fr domain.Friend) {
		if _, err := f.store.ReadFriend(ctx, fr.User1Id, fr.User2Id); err != nil {
			t.Errorf("friend not visible from hook: %v", err)
		}
	})

	f.befriend(t, a, b)
	if err := f.engine.Unfollow(ctx, a, b); err != nil {
		t.Fatalf("Unfollow failed: %v", err)
	}
	// a failed transition fires nothing
	f.engine.AcceptFollow(ctx, uuid.New(), a)

	want := []string{"requested", "accepted", "requested", "accepted", "friend+", "removed", "friend-"}
	if len(events) != len(want) {
		t.Fatalf("Expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], events[i])
		}
	}
}

func TestConcurrentTransitionsSerialize(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	a := f.author(t, f.local, "a")
	b := f.author(t, f.local, "b")
	req, _ := f.engine.RequestFollow(ctx, a, b)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = f.engine.AcceptFollow(ctx, req.Id, b)
	}()
	go func() {
		defer wg.Done()
		_, results[1] = f.engine.DenyFollow(ctx, req.Id, b)
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("Exactly one of accept/deny must win, got %d", succeeded)
	}
}

// race runs both functions at once and returns their errors in order.
func race(first, second func() error) (error, error) {
	var wg sync.WaitGroup
	var err1, err2 error
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		err1 = first()
	}()
	go func() {
		defer wg.Done()
		<-start
		err2 = second()
	}()
	close(start)
	wg.Wait()
	return err1, err2
}

func (f *fixture) isFriend(t *testing.T, a, b *domain.Author) bool {
	t.Helper()
	ok, err := f.engine.AreFriends(context.Background(), a, b)
	if err != nil {
		t.Fatalf("AreFriends failed: %v", err)
	}
	return ok
}

func TestConcurrentAcceptAndDenyOnFile(t *testing.T) {
	f := setupFileFixture(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		a := f.author(t, f.local, fmt.Sprintf("a%d", i))
		b := f.author(t, f.local, fmt.Sprintf("b%d", i))
		// b already follows a, so an accepted a -> b makes them friends
		if _, err := f.engine.AddFollower(ctx, a, b); err != nil {
			t.Fatalf("AddFollower failed: %v", err)
		}
		req, err := f.engine.RequestFollow(ctx, a, b)
		if err != nil {
			t.Fatalf("RequestFollow failed: %v", err)
		}

		acceptErr, denyErr := race(
			func() error { _, err := f.engine.AcceptFollow(ctx, req.Id, b); return err },
			func() error { _, err := f.engine.DenyFollow(ctx, req.Id, b); return err },
		)
		for _, err := range []error{acceptErr, denyErr} {
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("round %d: unexpected error %v", i, err)
			}
		}
		if (acceptErr == nil) == (denyErr == nil) {
			t.Fatalf("round %d: exactly one of accept/deny must win, got %v and %v", i, acceptErr, denyErr)
		}

		stored, err := f.store.ReadFollow(ctx, a.Id, b.Id)
		if err != nil {
			t.Fatalf("ReadFollow failed: %v", err)
		}
		want := domain.FollowDenied
		if acceptErr == nil {
			want = domain.FollowAccepted
		}
		if stored.Status != want {
			t.Errorf("round %d: expected %s, got %s", i, want, stored.Status)
		}
		if friends := f.isFriend(t, a, b); friends != (want == domain.FollowAccepted) {
			t.Errorf("round %d: friend edge %t does not match status %s", i, friends, stored.Status)
		}
	}
}

func TestConcurrentAcceptAndUnfollowOnFile(t *testing.T) {
	f := setupFileFixture(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		a := f.author(t, f.local, fmt.Sprintf("a%d", i))
		b := f.author(t, f.local, fmt.Sprintf("b%d", i))
		if _, err := f.engine.AddFollower(ctx, a, b); err != nil {
			t.Fatalf("AddFollower failed: %v", err)
		}
		req, err := f.engine.RequestFollow(ctx, a, b)
		if err != nil {
			t.Fatalf("RequestFollow failed: %v", err)
		}

		acceptErr, unfollowErr := race(
			func() error { _, err := f.engine.AcceptFollow(ctx, req.Id, b); return err },
			func() error { return f.engine.Unfollow(ctx, a, b) },
		)
		// unfollow deletes the edge in any state; accept loses if it runs second
		if unfollowErr != nil {
			t.Fatalf("round %d: Unfollow failed: %v", i, unfollowErr)
		}
		if acceptErr != nil && !errors.Is(acceptErr, domain.ErrNotFound) {
			t.Fatalf("round %d: unexpected accept error %v", i, acceptErr)
		}

		if _, err := f.store.ReadFollow(ctx, a.Id, b.Id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("round %d: expected a -> b to be gone, got %v", i, err)
		}
		if f.isFriend(t, a, b) {
			t.Errorf("round %d: friend edge survived the unfollow", i)
		}
		back, err := f.store.ReadFollow(ctx, b.Id, a.Id)
		if err != nil || back.Status != domain.FollowAccepted {
			t.Errorf("round %d: reverse follow must stay accepted, got %v, %v", i, back, err)
		}
	}
}
