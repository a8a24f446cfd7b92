// Package content stores posts, comments and likes and pushes locally
// created content to the remote authors allowed to see it.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/fqid"
	"github.com/deemkeen/nodelink/graph"
	"github.com/deemkeen/nodelink/util"
	"github.com/deemkeen/nodelink/visibility"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultContentType = "text/plain"
	fanOutLimit        = 8
)

// Relayer pushes content to a remote author's inbox.
type Relayer interface {
	SendPost(ctx context.Context, author *domain.Author, post *domain.Post, target *domain.Author) *domain.DeliveryResult
	SendLike(ctx context.Context, author *domain.Author, like *domain.Like, target *domain.Author) *domain.DeliveryResult
	SendComment(ctx context.Context, author *domain.Author, comment *domain.Comment, target *domain.Author) *domain.DeliveryResult
}

type Service struct {
	db    *db.DB
	graph *graph.Engine
	relay Relayer
	log   *log.Logger
}

type NewPost struct {
	Title       string
	Content     string
	ContentType string
	Visibility  domain.Visibility
}

func New(store *db.DB, engine *graph.Engine, relay Relayer) *Service {
	return &Service{db: store, graph: engine, relay: relay, log: util.Logger().WithPrefix("Content")}
}

// localNodeOf returns the local node, failing when a is not one of its authors.
func (s *Service) localNodeOf(ctx context.Context, a *domain.Author) (*domain.Node, error) {
	local, err := s.db.ReadLocalNode(ctx)
	if err != nil {
		return nil, fmt.Errorf("read local node: %w", err)
	}
	if a.NodeId != local.Id {
		return nil, fmt.Errorf("%w: %s is not a local author", domain.ErrValidation, a.FQID)
	}
	return local, nil
}

// CreatePost stores a post by a local author and sends it to the remote
// authors allowed to see it.
func (s *Service) CreatePost(ctx context.Context, author *domain.Author, in NewPost) (*domain.Post, error) {
	local, err := s.localNodeOf(ctx, author)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: post needs a title or content", domain.ErrValidation)
	}
	if in.Visibility == "" {
		in.Visibility = domain.VisibilityPublic
	}
	if in.Visibility == domain.VisibilityDeleted {
		return nil, fmt.Errorf("%w: cannot create a deleted post", domain.ErrInvalidVisibility)
	}
	if in.ContentType == "" {
		in.ContentType = defaultContentType
	}

	serial := uuid.NewString()
	post := &domain.Post{
		Serial:      serial,
		AuthorId:    author.Id,
		Title:       in.Title,
		Content:     in.Content,
		ContentType: in.ContentType,
		Visibility:  in.Visibility,
		FQID:        fqid.Post(local.BaseURL, author.Serial, serial),
	}
	if err := s.db.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.fanOut(ctx, author, post)
	return post, nil
}

// Recipients returns the remote authors a post is pushed to.
func (s *Service) Recipients(ctx context.Context, author *domain.Author, post *domain.Post) ([]domain.Author, error) {
	switch post.Visibility {
	case domain.VisibilityPublic:
		return s.graph.RemoteFollowers(ctx, author)
	case domain.VisibilityFriends:
		return s.graph.RemoteFriends(ctx, author)
	}
	return nil, nil
}

// fanOut delivers post to every recipient. Each target is independent: a
// failed delivery is logged and the others proceed.
func (s *Service) fanOut(ctx context.Context, author *domain.Author, post *domain.Post) []*domain.DeliveryResult {
	if s.relay == nil {
		return nil
	}
	targets, err := s.Recipients(ctx, author, post)
	if err != nil {
		s.log.Error("could not resolve recipients", "post", post.FQID, "err", err)
		return nil
	}

	results := make([]*domain.DeliveryResult, len(targets))
	var g errgroup.Group
	g.SetLimit(fanOutLimit)
	for i := range targets {
		g.Go(func() error {
			results[i] = s.relay.SendPost(ctx, author, post, &targets[i])
			if res := results[i]; res != nil && res.Err != nil {
				s.log.Warn("post not delivered", "post", post.FQID, "target", targets[i].FQID, "err", res.Err)
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// DeletePost marks a local post as deleted. The row is kept.
func (s *Service) DeletePost(ctx context.Context, author *domain.Author, serial string) (*domain.Post, error) {
	post, err := s.db.ReadPostBySerial(ctx, author.Id, serial)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdatePostVisibility(ctx, post, domain.VisibilityDeleted); err != nil {
		return nil, err
	}
	return post, nil
}

// Like records that a local author likes objectFQID. Liking the same object
// twice returns the first like.
func (s *Service) Like(ctx context.Context, author *domain.Author, objectFQID string) (*domain.Like, error) {
	local, err := s.localNodeOf(ctx, author)
	if err != nil {
		return nil, err
	}
	target, err := s.targetOf(ctx, local, author, objectFQID)
	if err != nil {
		return nil, err
	}

	like := &domain.Like{
		Id:         uuid.New(),
		AuthorId:   author.Id,
		ObjectFQID: objectFQID,
		FQID:       fqid.Like(local.BaseURL, author.Serial, uuid.NewString()),
	}
	stored, err := s.db.CreateLike(ctx, like)
	if err != nil {
		return nil, err
	}
	if stored.Id == like.Id && target.NodeId != local.Id && s.relay != nil {
		if res := s.relay.SendLike(ctx, author, stored, target); res != nil && res.Err != nil {
			s.log.Warn("like not delivered", "like", stored.FQID, "err", res.Err)
		}
	}
	return stored, nil
}

// Comment records a local author's comment on postFQID.
func (s *Service) Comment(ctx context.Context, author *domain.Author, postFQID, body, contentType string) (*domain.Comment, error) {
	local, err := s.localNodeOf(ctx, author)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: empty comment", domain.ErrValidation)
	}
	target, err := s.targetOf(ctx, local, author, postFQID)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	comment := &domain.Comment{
		AuthorId:    author.Id,
		PostFQID:    postFQID,
		Content:     body,
		ContentType: contentType,
		FQID:        fqid.Comment(local.BaseURL, author.Serial, uuid.NewString()),
	}
	if err := s.db.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	if target.NodeId != local.Id && s.relay != nil {
		if res := s.relay.SendComment(ctx, author, comment, target); res != nil && res.Err != nil {
			s.log.Warn("comment not delivered", "comment", comment.FQID, "err", res.Err)
		}
	}
	return comment, nil
}

// targetOf resolves the author owning objectFQID. Objects of local authors
// must exist and be visible to viewer.
func (s *Service) targetOf(ctx context.Context, local *domain.Node, viewer *domain.Author, objectFQID string) (*domain.Author, error) {
	ref, err := fqid.Parse(objectFQID)
	if err != nil {
		return nil, err
	}
	if ref.AuthorFQID == objectFQID {
		return nil, fmt.Errorf("%w: %s names an author, not an object", domain.ErrValidation, objectFQID)
	}
	target, err := s.db.ReadAuthorByFQID(ctx, ref.AuthorFQID)
	if err != nil {
		return nil, err
	}
	if target.NodeId == local.Id {
		if err := s.requireVisibleObject(ctx, viewer, objectFQID); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// visiblePost loads a stored post viewer may see. Posts hidden from viewer
// are reported as missing.
func (s *Service) visiblePost(ctx context.Context, viewer *domain.Author, postFQID string) (*domain.Post, error) {
	post, err := s.db.ReadPostByFQID(ctx, postFQID)
	if err != nil {
		return nil, err
	}
	if err := s.requireVisible(ctx, viewer, visibility.PostItem(post), postFQID); err != nil {
		return nil, err
	}
	return post, nil
}

// requireVisibleObject checks that objectFQID is a stored post or comment
// viewer may see.
func (s *Service) requireVisibleObject(ctx context.Context, viewer *domain.Author, objectFQID string) error {
	_, err := s.visiblePost(ctx, viewer, objectFQID)
	if !errors.Is(err, domain.ErrPostNotFound) || s.postExists(ctx, objectFQID) {
		return err
	}
	comment, err := s.db.ReadCommentByFQID(ctx, objectFQID)
	if err != nil {
		return fmt.Errorf("object %s: %w", objectFQID, domain.ErrNotFound)
	}
	post, err := s.db.ReadPostByFQID(ctx, comment.PostFQID)
	if err != nil {
		return fmt.Errorf("object %s: %w", objectFQID, domain.ErrNotFound)
	}
	return s.requireVisible(ctx, viewer, visibility.CommentItem(comment, post), objectFQID)
}

func (s *Service) postExists(ctx context.Context, postFQID string) bool {
	_, err := s.db.ReadPostByFQID(ctx, postFQID)
	return err == nil
}

func (s *Service) requireVisible(ctx context.Context, viewer *domain.Author, item visibility.Item, id string) error {
	friends, err := s.graph.FriendSet(ctx, viewer)
	if err != nil {
		return err
	}
	if !visibility.CanView(viewer, item, friends) {
		return fmt.Errorf("%s: %w", id, domain.ErrPostNotFound)
	}
	return nil
}

// VisiblePosts lists owner's posts that viewer may see. viewer may be nil.
func (s *Service) VisiblePosts(ctx context.Context, viewer, owner *domain.Author) ([]domain.Post, error) {
	posts, err := s.db.ReadPostsByAuthor(ctx, owner.Id)
	if err != nil {
		return nil, err
	}
	friends, err := s.graph.FriendSet(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return visibility.FilterPosts(viewer, posts, friends), nil
}

// VisibleComments lists the comments on post that viewer may see.
func (s *Service) VisibleComments(ctx context.Context, viewer *domain.Author, post *domain.Post) ([]domain.Comment, error) {
	comments, err := s.db.ReadCommentsByPost(ctx, post.FQID)
	if err != nil {
		return nil, err
	}
	friends, err := s.graph.FriendSet(ctx, viewer)
	if err != nil {
		return nil, err
	}
	visible := make([]domain.Comment, 0, len(comments))
	for i := range comments {
		if visibility.CanView(viewer, visibility.CommentItem(&comments[i], post), friends) {
			visible = append(visible, comments[i])
		}
	}
	return visible, nil
}

func (s *Service) Likes(ctx context.Context, objectFQID string) ([]domain.Like, error) {
	return s.db.ReadLikesByObject(ctx, objectFQID)
}

// Post returns one of owner's posts if viewer may see it.
func (s *Service) Post(ctx context.Context, viewer, owner *domain.Author, serial string) (*domain.Post, error) {
	post, err := s.db.ReadPostBySerial(ctx, owner.Id, serial)
	if err != nil {
		return nil, err
	}
	friends, err := s.graph.FriendSet(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if !visibility.CanView(viewer, visibility.PostItem(post), friends) {
		return nil, domain.ErrPostNotFound
	}
	return post, nil
}
