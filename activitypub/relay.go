package activitypub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/fqid"
	"github.com/deemkeen/nodelink/metrics"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/util"
)

// HeaderOriginNode carries the sender's base URL on every federation request.
const HeaderOriginNode = "X-Origin-Node"

const DefaultTimeout = 10 * time.Second

// Relay pushes activities to remote inboxes. It never retries and never
// returns an error to its caller; the outcome is in the DeliveryResult.
type Relay struct {
	registry *registry.Registry
	client   *http.Client
	log      *log.Logger
}

func NewRelay(reg *registry.Registry, timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Relay{
		registry: reg,
		client:   &http.Client{Timeout: timeout},
		log:      util.Logger().WithPrefix("Relay"),
	}
}

// Deliver sends activity to target's inbox using the credentials stored for
// target's node. Targets on the local node or on inactive nodes are skipped.
func (r *Relay) Deliver(ctx context.Context, activity Activity, target *domain.Author) *domain.DeliveryResult {
	res := r.deliver(ctx, activity, target)
	metrics.RelayDeliveries.WithLabelValues(activity.Kind(), metrics.DeliveryOutcome(res)).Inc()
	return res
}

func (r *Relay) deliver(ctx context.Context, activity Activity, target *domain.Author) *domain.DeliveryResult {
	res := &domain.DeliveryResult{InboxURL: fqid.Inbox(target.FQID)}

	node, err := r.registry.NodeOf(ctx, target)
	if err != nil {
		res.Err = fmt.Errorf("resolve node of %s: %w", target.FQID, err)
		return res
	}
	if !node.IsRemote() || !node.IsActive {
		res.Skipped = true
		return res
	}
	local, err := r.registry.Local(ctx)
	if err != nil {
		res.Err = fmt.Errorf("resolve local node: %w", err)
		return res
	}

	body, err := json.Marshal(activity)
	if err != nil {
		res.Err = fmt.Errorf("failed to marshal activity: %w", err)
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, res.InboxURL, bytes.NewReader(body))
	if err != nil {
		res.Err = fmt.Errorf("failed to create request: %w", err)
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", util.UserAgent())
	req.Header.Set(HeaderOriginNode, local.BaseURL)
	req.SetBasicAuth(node.OutboundUsername, node.OutboundPassword)

	resp, err := r.client.Do(req)
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", domain.ErrTransport, err)
		r.log.Warn("delivery failed", "type", activity.Kind(), "inbox", res.InboxURL, "err", err)
		return res
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Err = fmt.Errorf("%w: remote inbox returned status %d", domain.ErrTransport, resp.StatusCode)
		r.log.Warn("delivery rejected", "type", activity.Kind(), "inbox", res.InboxURL, "status", resp.StatusCode)
		return res
	}

	res.Delivered = true
	r.log.Debug("delivered", "type", activity.Kind(), "inbox", res.InboxURL, "status", resp.StatusCode)
	return res
}

func (r *Relay) SendFollow(ctx context.Context, actor, object *domain.Author) *domain.DeliveryResult {
	return r.Deliver(ctx, NewFollowActivity(actor, object), object)
}

func (r *Relay) SendPost(ctx context.Context, author *domain.Author, post *domain.Post, target *domain.Author) *domain.DeliveryResult {
	return r.Deliver(ctx, NewPostActivity(author, post), target)
}

func (r *Relay) SendLike(ctx context.Context, author *domain.Author, like *domain.Like, target *domain.Author) *domain.DeliveryResult {
	return r.Deliver(ctx, NewLikeActivity(author, like), target)
}

func (r *Relay) SendComment(ctx context.Context, author *domain.Author, comment *domain.Comment, target *domain.Author) *domain.DeliveryResult {
	return r.Deliver(ctx, NewCommentActivity(author, comment), target)
}
