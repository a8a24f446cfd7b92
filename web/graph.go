package web

import (
	"net/http"

	"github.com/deemkeen/nodelink/activitypub"
	"github.com/deemkeen/nodelink/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type followJSON struct {
	Type   string                   `json:"type"`
	ID     uuid.UUID                `json:"id"`
	Status domain.FollowStatus      `json:"status"`
	Actor  activitypub.AuthorObject `json:"actor"`
	Object activitypub.AuthorObject `json:"object"`
}

func newFollowJSON(f *domain.Follow, actor, object *domain.Author) followJSON {
	return followJSON{
		Type:   activitypub.TypeFollow,
		ID:     f.Id,
		Status: f.Status,
		Actor:  activitypub.NewAuthorObject(actor),
		Object: activitypub.NewAuthorObject(object),
	}
}

type followRequest struct {
	Object string `json:"object" binding:"required"`
}

// follower resolves the *fqid parameter of a followers route. Writes are
// allowed for the local node, and for a remote node acting on its own authors.
func (s *Server) follower(c *gin.Context, write, create bool) (*domain.Author, bool) {
	ctx := c.Request.Context()
	id := fqidParam(c)

	if write {
		host, err := s.registry.ByFQID(ctx, id)
		if err != nil {
			abortWithError(c, err)
			return nil, false
		}
		if caller := callerNode(c); !caller.IsLocal && caller.Id != host.Id {
			abortWithError(c, errForbidden)
			return nil, false
		}
	}

	lookup := s.registry.AuthorByFQID
	if create {
		lookup = s.registry.ResolveAuthor
	}
	a, err := lookup(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return a, true
}

// peer resolves the *fqid parameter of a local-only route.
func (s *Server) peer(c *gin.Context) (*domain.Author, bool) {
	a, err := s.registry.AuthorByFQID(c.Request.Context(), fqidParam(c))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return a, true
}

func (s *Server) handleListFollowers(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	followers, err := s.graph.Followers(c.Request.Context(), owner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, authorList(followers))
}

func (s *Server) handleGetFollower(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	follower, ok := s.follower(c, false, false)
	if !ok {
		return
	}
	is, err := s.graph.IsFollower(c.Request.Context(), owner, follower)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !is {
		abortWithError(c, domain.ErrFollowNotFound)
		return
	}
	c.JSON(http.StatusOK, activitypub.NewAuthorObject(follower))
}

func (s *Server) handlePutFollower(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	follower, ok := s.follower(c, true, true)
	if !ok {
		return
	}
	f, err := s.graph.AddFollower(c.Request.Context(), owner, follower)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFollowJSON(f, follower, owner))
}

func (s *Server) handleDeleteFollower(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	follower, ok := s.follower(c, true, false)
	if !ok {
		return
	}
	if err := s.graph.RemoveFollower(c.Request.Context(), owner, follower); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListFollowRequests(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	requests, err := s.graph.PendingRequests(c.Request.Context(), owner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	items := make([]followJSON, 0, len(requests))
	for i := range requests {
		items = append(items, newFollowJSON(&requests[i].Follow, &requests[i].Actor, owner))
	}
	c.JSON(http.StatusOK, gin.H{"type": "follow-requests", "items": items})
}

func (s *Server) handleAcceptFollowRequest(c *gin.Context) {
	s.decideFollowRequest(c, true)
}

func (s *Server) handleDenyFollowRequest(c *gin.Context) {
	s.decideFollowRequest(c, false)
}

func (s *Server) decideFollowRequest(c *gin.Context, accept bool) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, domain.ErrFollowNotFound)
		return
	}

	ctx := c.Request.Context()
	var f *domain.Follow
	if accept {
		f, err = s.graph.AcceptFollow(ctx, id, owner)
	} else {
		f, err = s.graph.DenyFollow(ctx, id, owner)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}

	actor, err := s.db.ReadAuthorById(ctx, f.ActorId)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFollowJSON(f, actor, owner))
}

func (s *Server) handleListFollowing(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	following, err := s.graph.Following(c.Request.Context(), owner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, authorList(following))
}

func (s *Server) handleFollow(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.ErrValidation)
		return
	}

	ctx := c.Request.Context()
	object, err := s.registry.ResolveAuthor(ctx, req.Object)
	if err != nil {
		abortWithError(c, err)
		return
	}
	f, err := s.graph.RequestFollow(ctx, owner, object)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFollowJSON(f, owner, object))
}

func (s *Server) handleUnfollow(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	object, ok := s.peer(c)
	if !ok {
		return
	}
	if err := s.graph.Unfollow(c.Request.Context(), owner, object); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListFriends(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	friends, err := s.graph.Friends(c.Request.Context(), owner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, authorList(friends))
}

func (s *Server) handleGetFriend(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	friend, ok := s.peer(c)
	if !ok {
		return
	}
	are, err := s.graph.AreFriends(c.Request.Context(), owner, friend)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !are {
		abortWithError(c, domain.ErrFriendNotFound)
		return
	}
	c.JSON(http.StatusOK, activitypub.NewAuthorObject(friend))
}

func (s *Server) handleUnfriend(c *gin.Context) {
	owner, ok := s.owner(c)
	if !ok {
		return
	}
	friend, ok := s.peer(c)
	if !ok {
		return
	}
	if err := s.graph.Unfriend(c.Request.Context(), owner, friend); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
