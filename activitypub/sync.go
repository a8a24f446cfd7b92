package activitypub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/graph"
	"github.com/deemkeen/nodelink/metrics"
	"github.com/deemkeen/nodelink/registry"
	"github.com/deemkeen/nodelink/util"
	"golang.org/x/sync/errgroup"
)

const maxAuthorListBytes = 4 << 20

// Syncer pulls the author list of every active remote node and keeps the
// local shadow records current.
type Syncer struct {
	db          *db.DB
	registry    *registry.Registry
	graph       *graph.Engine
	client      *http.Client
	concurrency int
	log         *log.Logger
}

func NewSyncer(store *db.DB, reg *registry.Registry, engine *graph.Engine, timeout time.Duration, concurrency int) *Syncer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Syncer{
		db:          store,
		registry:    reg,
		graph:       engine,
		client:      &http.Client{Timeout: timeout},
		concurrency: concurrency,
		log:         util.Logger().WithPrefix("Sync"),
	}
}

// SyncReport summarizes one run.
type SyncReport struct {
	Nodes     int
	Failed    int
	Authors   int
	Confirmed int
}

// Run syncs every active remote node. A node that fails is logged and skipped;
// only failing to list the nodes is returned as an error.
func (s *Syncer) Run(ctx context.Context) (*SyncReport, error) {
	nodes, err := s.registry.ActiveRemotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote nodes: %w", err)
	}

	report := &SyncReport{Nodes: len(nodes)}
	results := make([]nodeResult, len(nodes))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range nodes {
		g.Go(func() error {
			results[i] = s.syncNode(ctx, &nodes[i])
			return nil
		})
	}
	g.Wait()

	for i, r := range results {
		if r.err != nil {
			report.Failed++
			metrics.SyncNodes.WithLabelValues(metrics.OutcomeFailed).Inc()
			s.log.Warn("node sync failed", "node", nodes[i].BaseURL, "err", r.err)
			continue
		}
		metrics.SyncNodes.WithLabelValues(metrics.OutcomeOK).Inc()
		report.Authors += r.authors
		report.Confirmed += r.confirmed
	}
	s.log.Info("sync finished", "nodes", report.Nodes, "failed", report.Failed, "authors", report.Authors, "confirmed", report.Confirmed)
	return report, nil
}

type nodeResult struct {
	authors   int
	confirmed int
	err       error
}

// syncNode upserts the authors of one node and confirms pending follows
// that node has accepted.
func (s *Syncer) syncNode(ctx context.Context, node *domain.Node) nodeResult {
	var res nodeResult

	items, err := s.fetchAuthors(ctx, node)
	if err != nil {
		res.err = err
		return res
	}
	for _, item := range items {
		if err := validate.Struct(item); err != nil {
			s.log.Warn("skipping invalid author", "node", node.BaseURL, "id", item.ID, "err", err)
			continue
		}
		if _, err := s.registry.UpsertShadow(ctx, node, item.Profile()); err != nil {
			s.log.Warn("skipping author", "node", node.BaseURL, "id", item.ID, "err", err)
			continue
		}
		res.authors++
	}
	metrics.SyncAuthors.Add(float64(res.authors))

	res.confirmed = s.confirmPending(ctx, node)
	return res
}

func (s *Syncer) get(ctx context.Context, node *domain.Node, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", util.UserAgent())
	if local, err := s.registry.Local(ctx); err == nil {
		req.Header.Set(HeaderOriginNode, local.BaseURL)
	}
	req.SetBasicAuth(node.OutboundUsername, node.OutboundPassword)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return resp, nil
}

func (s *Syncer) fetchAuthors(ctx context.Context, node *domain.Node) ([]AuthorObject, error) {
	resp, err := s.get(ctx, node, node.BaseURL+"authors/")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: author list returned status %d", domain.ErrTransport, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthorListBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read author list: %v", domain.ErrTransport, err)
	}
	return DecodeAuthorList(body)
}

// confirmPending asks node whether it lists our pending followers as accepted.
func (s *Syncer) confirmPending(ctx context.Context, node *domain.Node) int {
	follows, err := s.db.ReadPendingFollowsToNode(ctx, node.Id)
	if err != nil {
		s.log.Error("failed to read pending follows", "node", node.BaseURL, "err", err)
		return 0
	}

	confirmed := 0
	for _, f := range follows {
		actor, err := s.db.ReadAuthorById(ctx, f.ActorId)
		if err != nil {
			continue
		}
		object, err := s.db.ReadAuthorById(ctx, f.ObjectId)
		if err != nil {
			continue
		}

		resp, err := s.get(ctx, node, object.FQID+"/followers/"+url.PathEscape(actor.FQID))
		if err != nil {
			s.log.Debug("follow check failed", "actor", actor.FQID, "object", object.FQID, "err", err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			continue
		}

		if _, err := s.graph.ConfirmFollow(ctx, actor, object); err != nil {
			s.log.Warn("failed to confirm follow", "actor", actor.FQID, "object", object.FQID, "err", err)
			continue
		}
		confirmed++
	}
	return confirmed
}

// StartSyncWorker runs the syncer every interval until ctx is cancelled.
func StartSyncWorker(ctx context.Context, syncer *Syncer, interval time.Duration) {
	syncer.log.Info("starting remote author sync worker", "interval", interval)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				syncer.log.Info("sync worker stopped")
				return
			case <-ticker.C:
				if _, err := syncer.Run(ctx); err != nil {
					syncer.log.Error("sync run failed", "err", err)
				}
			}
		}
	}()
}
