package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/fqid"
)

// CreateLocalAuthor adds an author to the local node. The username doubles as serial.
func (r *Registry) CreateLocalAuthor(ctx context.Context, username, displayName, github string) (*domain.Author, error) {
	if !fqid.ValidLocalUsername(username) {
		return nil, fmt.Errorf("%w: invalid username %q", domain.ErrValidation, username)
	}
	local, err := r.db.ReadLocalNode(ctx)
	if err != nil {
		return nil, fmt.Errorf("read local node: %w", err)
	}
	a := &domain.Author{
		Serial:      username,
		NodeId:      local.Id,
		Username:    username,
		DisplayName: displayName,
		Github:      github,
		FQID:        fqid.Author(local.BaseURL, username),
	}
	if err := r.db.CreateAuthor(ctx, a); err != nil {
		return nil, err
	}
	r.log.Info("created local author", "fqid", a.FQID)
	return a, nil
}

func (r *Registry) LocalAuthors(ctx context.Context) ([]domain.Author, error) {
	return r.db.ReadLocalAuthors(ctx)
}

func (r *Registry) LocalAuthor(ctx context.Context, serial string) (*domain.Author, error) {
	return r.db.ReadLocalAuthorBySerial(ctx, serial)
}

// ProfileUpdate carries optional profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	DisplayName  *string
	Github       *string
	ProfileImage *string
	Page         *string
}

// UpdateLocalAuthor edits the profile of a local author.
func (r *Registry) UpdateLocalAuthor(ctx context.Context, serial string, u ProfileUpdate) (*domain.Author, error) {
	a, err := r.db.ReadLocalAuthorBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	if u.DisplayName != nil {
		a.DisplayName = *u.DisplayName
	}
	if u.Github != nil {
		a.Github = *u.Github
	}
	if u.ProfileImage != nil {
		a.ProfileImage = *u.ProfileImage
	}
	if u.Page != nil {
		a.Page = *u.Page
	}
	if err := r.db.UpdateAuthorProfile(ctx, a); err != nil {
		return nil, err
	}
	r.log.Info("updated local author", "fqid", a.FQID)
	return a, nil
}

// AuthorsOf lists the authors known for a node.
func (r *Registry) AuthorsOf(ctx context.Context, node *domain.Node) ([]domain.Author, error) {
	return r.db.ReadAuthorsByNode(ctx, node.Id)
}

func (r *Registry) AuthorByFQID(ctx context.Context, id string) (*domain.Author, error) {
	return r.db.ReadAuthorByFQID(ctx, id)
}

// NodeOf returns the node owning a.
func (r *Registry) NodeOf(ctx context.Context, a *domain.Author) (*domain.Node, error) {
	return r.db.ReadNodeById(ctx, a.NodeId)
}

// UpsertShadow records or refreshes a remote author owned by node. The author's
// FQID must live under the node's base URL. Serial and username are derived
// from the FQID; profile fields are taken from profile.
func (r *Registry) UpsertShadow(ctx context.Context, node *domain.Node, profile *domain.Author) (*domain.Author, error) {
	ref, err := fqid.Parse(profile.FQID)
	if err != nil {
		return nil, err
	}
	if ref.BaseURL != node.BaseURL {
		return nil, fmt.Errorf("%w: author %s is not hosted by %s", domain.ErrAuthentication, profile.FQID, node.BaseURL)
	}
	if node.IsLocal {
		// our own authors are never shadowed
		return r.db.ReadAuthorByFQID(ctx, ref.AuthorFQID)
	}
	shadow := &domain.Author{
		Serial:       ref.AuthorSerial,
		NodeId:       node.Id,
		Username:     fqid.RemoteUsername(node.BaseURL, ref.AuthorSerial),
		DisplayName:  profile.DisplayName,
		Github:       profile.Github,
		ProfileImage: profile.ProfileImage,
		Page:         profile.Page,
		FQID:         ref.AuthorFQID,
	}
	existing, err := r.db.ReadAuthorByFQID(ctx, ref.AuthorFQID)
	switch {
	case err == nil:
		shadow.Username = existing.Username
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	a, err := r.db.UpsertRemoteAuthor(ctx, shadow)
	if errors.Is(err, domain.ErrIntegrity) && existing == nil {
		// another node already owns the short name
		shadow.Username = fqid.QualifiedRemoteUsername(node.BaseURL, ref.AuthorSerial)
		a, err = r.db.UpsertRemoteAuthor(ctx, shadow)
	}
	return a, err
}

// ResolveAuthor returns the author named by id. An author of a registered
// remote node that has not been seen yet gets a bare shadow record; the next
// sync fills in its profile.
func (r *Registry) ResolveAuthor(ctx context.Context, id string) (*domain.Author, error) {
	ref, err := fqid.Parse(id)
	if err != nil {
		return nil, err
	}
	a, err := r.db.ReadAuthorByFQID(ctx, ref.AuthorFQID)
	if !errors.Is(err, domain.ErrNotFound) {
		return a, err
	}
	node, err := r.ByBaseURL(ctx, ref.BaseURL)
	if err != nil {
		return nil, err
	}
	return r.UpsertShadow(ctx, node, &domain.Author{FQID: ref.AuthorFQID})
}
