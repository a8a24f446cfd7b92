package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodelink/db"
	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/fqid"
	"github.com/deemkeen/nodelink/util"
	"github.com/google/uuid"
)

// Registry tracks the local node, the remote peers and the authors they own.
type Registry struct {
	db  *db.DB
	log *log.Logger
}

// NewNode is what an operator supplies to register a remote peer.
type NewNode struct {
	BaseURL          string
	Username         string // the peer authenticates to us with these
	Password         string
	OutboundUsername string // we authenticate to the peer with these
	OutboundPassword string
}

func New(store *db.DB) *Registry {
	return &Registry{db: store, log: util.Logger().WithPrefix("Registry")}
}

var (
	dummyHash     string
	dummyHashOnce sync.Once
)

// compareDummy spends the same bcrypt work as a real check so an unknown
// username cannot be told apart by timing.
func compareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = util.HashPassword(uuid.NewString())
	})
	util.CheckPassword(dummyHash, password)
}

// EnsureLocal creates the single local node or refreshes its address and credentials.
func (r *Registry) EnsureLocal(ctx context.Context, baseURL, username, password string) (*domain.Node, error) {
	if baseURL == "" || username == "" || password == "" {
		return nil, fmt.Errorf("%w: local node needs a base url, username and password", domain.ErrValidation)
	}
	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var node *domain.Node
	err = r.db.InTx(ctx, func(tx *db.Tx) error {
		existing, err := tx.ReadLocalNode(ctx)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			node = &domain.Node{
				BaseURL:      fqid.NormalizeBaseURL(baseURL),
				IsLocal:      true,
				IsActive:     true,
				Username:     username,
				PasswordHash: hash,
			}
			return tx.CreateNode(ctx, node)
		case err != nil:
			return err
		}
		existing.BaseURL = fqid.NormalizeBaseURL(baseURL)
		existing.Username = username
		existing.PasswordHash = hash
		node = existing
		return tx.UpdateLocalNode(ctx, existing)
	})
	if err != nil {
		return nil, fmt.Errorf("ensure local node: %w", err)
	}
	r.log.Info("local node ready", "baseUrl", node.BaseURL)
	return node, nil
}

// Register adds a remote node. It starts active.
func (r *Registry) Register(ctx context.Context, n NewNode) (*domain.Node, error) {
	if n.BaseURL == "" || n.Username == "" || n.Password == "" {
		return nil, fmt.Errorf("%w: node needs a base url, username and password", domain.ErrValidation)
	}
	if _, err := fqid.Parse(fqid.Author(fqid.NormalizeBaseURL(n.BaseURL), "x")); err != nil {
		return nil, fmt.Errorf("%w: base url %q", domain.ErrValidation, n.BaseURL)
	}
	hash, err := util.HashPassword(n.Password)
	if err != nil {
		return nil, err
	}
	node := &domain.Node{
		BaseURL:          fqid.NormalizeBaseURL(n.BaseURL),
		IsActive:         true,
		Username:         n.Username,
		PasswordHash:     hash,
		OutboundUsername: n.OutboundUsername,
		OutboundPassword: n.OutboundPassword,
	}
	if err := r.db.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	r.log.Info("registered node", "baseUrl", node.BaseURL)
	return node, nil
}

// Authenticate checks node Basic Auth credentials. Every failure yields the
// same ErrAuthentication so callers cannot enumerate usernames.
func (r *Registry) Authenticate(ctx context.Context, username, password string) (*domain.Node, error) {
	node, err := r.db.ReadNodeByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Error("node lookup failed", "err", err)
		}
		compareDummy(password)
		return nil, domain.ErrAuthentication
	}
	if !util.CheckPassword(node.PasswordHash, password) {
		return nil, domain.ErrAuthentication
	}
	if !node.IsActive {
		return nil, domain.ErrAuthentication
	}
	return node, nil
}

func (r *Registry) Local(ctx context.Context) (*domain.Node, error) {
	return r.db.ReadLocalNode(ctx)
}

func (r *Registry) ByID(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	return r.db.ReadNodeById(ctx, id)
}

func (r *Registry) ByBaseURL(ctx context.Context, baseURL string) (*domain.Node, error) {
	return r.db.ReadNodeByBaseURL(ctx, fqid.NormalizeBaseURL(baseURL))
}

// ByFQID resolves the node hosting the entity named by id.
func (r *Registry) ByFQID(ctx context.Context, id string) (*domain.Node, error) {
	ref, err := fqid.Parse(id)
	if err != nil {
		return nil, err
	}
	return r.ByBaseURL(ctx, ref.BaseURL)
}

func (r *Registry) ActiveRemotes(ctx context.Context) ([]domain.Node, error) {
	return r.db.ReadActiveRemoteNodes(ctx)
}

func (r *Registry) List(ctx context.Context) ([]domain.Node, error) {
	return r.db.ReadNodes(ctx)
}

// SetActive toggles a remote node. The local node cannot be deactivated.
func (r *Registry) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	node, err := r.db.ReadNodeById(ctx, id)
	if err != nil {
		return err
	}
	if node.IsLocal && !active {
		return fmt.Errorf("%w: the local node cannot be deactivated", domain.ErrValidation)
	}
	if err := r.db.UpdateNodeActive(ctx, id, active); err != nil {
		return err
	}
	r.log.Info("node state changed", "baseUrl", node.BaseURL, "active", active)
	return nil
}

// SetOutbound stores the credentials we present to a remote node.
func (r *Registry) SetOutbound(ctx context.Context, id uuid.UUID, username, password string) error {
	node, err := r.db.ReadNodeById(ctx, id)
	if err != nil {
		return err
	}
	if node.IsLocal {
		return fmt.Errorf("%w: the local node has no outbound credentials", domain.ErrValidation)
	}
	if username == "" || password == "" {
		return fmt.Errorf("%w: outbound username and password are required", domain.ErrValidation)
	}
	if err := r.db.UpdateNodeOutbound(ctx, id, username, password); err != nil {
		return err
	}
	r.log.Info("outbound credentials updated", "baseUrl", node.BaseURL)
	return nil
}
