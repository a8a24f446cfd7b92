package activitypub

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodelink/content"
	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/graph"
	"github.com/deemkeen/nodelink/metrics"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/util"
)

// Ingestor applies activities posted to a local author's inbox.
type Ingestor struct {
	db       *db.DB
	registry *registry.Registry
	graph    *graph.Engine
	content  *content.Service
	log      *log.Logger
}

func NewIngestor(store *db.DB, reg *registry.Registry, engine *graph.Engine, svc *content.Service) *Ingestor {
	return &Ingestor{
		db:       store,
		registry: reg,
		graph:    engine,
		content:  svc,
		log:      util.Logger().WithPrefix("Inbox"),
	}
}

// Ingest handles body posted by sender to the inbox of the local author with
// the given serial. Every author the payload speaks for must be hosted by
// sender; anything else is treated as a spoof and fails authentication.
func (in *Ingestor) Ingest(ctx context.Context, sender *domain.Node, serial string, body []byte) error {
	kind := "unknown"
	err := in.ingest(ctx, sender, serial, body, &kind)
	outcome := metrics.OutcomeAccepted
	if err != nil {
		outcome = metrics.OutcomeRejected
		in.log.Warn("activity rejected", "type", kind, "node", sender.BaseURL, "author", serial, "err", err)
	}
	metrics.InboxActivities.WithLabelValues(kind, outcome).Inc()
	return err
}

func (in *Ingestor) ingest(ctx context.Context, sender *domain.Node, serial string, body []byte, kind *string) error {
	owner, err := in.registry.LocalAuthor(ctx, serial)
	if err != nil {
		return err
	}

	activity, err := DecodeActivity(body)
	if err != nil {
		return err
	}
	*kind = activity.Kind()
	in.log.Info("received activity", "type", activity.Kind(), "node", sender.BaseURL, "author", owner.FQID)

	var actorFQID, objectFQID string
	switch a := activity.(type) {
	case *FollowActivity:
		actorFQID, objectFQID = a.Actor.ID, a.Object.ID
		err = in.follow(ctx, sender, owner, a)
	case *PostActivity:
		actorFQID, objectFQID = a.Author.ID, a.ID
		err = in.post(ctx, sender, a)
	case *LikeActivity:
		actorFQID, objectFQID = a.Author.ID, a.Object
		err = in.like(ctx, sender, a)
	case *CommentActivity:
		actorFQID, objectFQID = a.Author.ID, a.Post
		err = in.comment(ctx, sender, a)
	default:
		err = fmt.Errorf("%w: %T", domain.ErrUnsupportedType, activity)
	}
	if err != nil {
		return err
	}

	item := &domain.InboxItem{AuthorId: owner.Id, Kind: activity.Kind(), ActorFQID: actorFQID, ObjectFQID: objectFQID}
	if err := in.db.CreateInboxItem(ctx, item); err != nil {
		in.log.Error("failed to record inbox item", "author", owner.FQID, "err", err)
	}
	return nil
}

// author resolves the remote author o on behalf of sender, creating or
// refreshing its shadow record.
func (in *Ingestor) author(ctx context.Context, sender *domain.Node, o AuthorObject) (*domain.Author, error) {
	a, err := in.registry.UpsertShadow(ctx, sender, o.Profile())
	if err != nil {
		return nil, fmt.Errorf("author %s: %w", o.ID, err)
	}
	return a, nil
}

func (in *Ingestor) follow(ctx context.Context, sender *domain.Node, owner *domain.Author, a *FollowActivity) error {
	if strings.TrimRight(a.Object.ID, "/") != owner.FQID {
		return fmt.Errorf("%w: follow object %s is not %s", domain.ErrValidation, a.Object.ID, owner.FQID)
	}
	actor, err := in.author(ctx, sender, a.Actor)
	if err != nil {
		return err
	}
	_, err = in.graph.ReceiveFollow(ctx, actor, owner)
	return err
}

func (in *Ingestor) post(ctx context.Context, sender *domain.Node, a *PostActivity) error {
	visibility, err := domain.ParseVisibility(a.Visibility)
	if err != nil {
		return err
	}
	author, err := in.author(ctx, sender, a.Author)
	if err != nil {
		return err
	}
	_, err = in.content.IngestPost(ctx, author, &domain.Post{
		Title:       a.Title,
		Content:     a.Content,
		ContentType: a.ContentType,
		Visibility:  visibility,
		FQID:        a.ID,
	})
	return err
}

func (in *Ingestor) like(ctx context.Context, sender *domain.Node, a *LikeActivity) error {
	author, err := in.author(ctx, sender, a.Author)
	if err != nil {
		return err
	}
	_, err = in.content.IngestLike(ctx, author, a.Object, a.ID)
	return err
}

func (in *Ingestor) comment(ctx context.Context, sender *domain.Node, a *CommentActivity) error {
	author, err := in.author(ctx, sender, a.Author)
	if err != nil {
		return err
	}
	_, err = in.content.IngestComment(ctx, author, a.Post, a.ID, a.Content, a.ContentType)
	return err
}
