package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/fqid"
	"github.com/google/uuid"
)

// ownedBy checks that id is an object nested under author's FQID.
func ownedBy(author *domain.Author, id, kind string) error {
	ref, err := fqid.Parse(id)
	if err != nil {
		return err
	}
	if ref.AuthorFQID != author.FQID || !strings.HasPrefix(id, author.FQID+"/"+kind+"/") {
		return fmt.Errorf("%w: %s is not a %s of %s", domain.ErrValidation, id, kind, author.FQID)
	}
	return nil
}

// IngestPost stores a post received from author's node.
func (s *Service) IngestPost(ctx context.Context, author *domain.Author, p *domain.Post) (*domain.Post, error) {
	if err := ownedBy(author, p.FQID, "posts"); err != nil {
		return nil, err
	}
	if p.ContentType == "" {
		p.ContentType = defaultContentType
	}
	p.AuthorId = author.Id
	p.Serial = fqid.Serial(p.FQID)
	return s.db.UpsertPost(ctx, p)
}

// IngestLike stores a remote like of a local post or comment author may see. likeFQID may be
// empty, in which case one is assigned under the author's FQID.
func (s *Service) IngestLike(ctx context.Context, author *domain.Author, objectFQID, likeFQID string) (*domain.Like, error) {
	if err := s.requireHostedHere(ctx, objectFQID); err != nil {
		return nil, err
	}
	if err := s.requireVisibleObject(ctx, author, objectFQID); err != nil {
		return nil, err
	}
	if likeFQID == "" {
		likeFQID = author.FQID + "/liked/" + uuid.NewString()
	} else if err := ownedBy(author, likeFQID, "liked"); err != nil {
		return nil, err
	}
	return s.db.CreateLike(ctx, &domain.Like{AuthorId: author.Id, ObjectFQID: objectFQID, FQID: likeFQID})
}

// IngestComment stores a remote comment on a local post author may see.
func (s *Service) IngestComment(ctx context.Context, author *domain.Author, postFQID, commentFQID, body, contentType string) (*domain.Comment, error) {
	if err := s.requireHostedHere(ctx, postFQID); err != nil {
		return nil, err
	}
	if _, err := s.visiblePost(ctx, author, postFQID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: empty comment", domain.ErrValidation)
	}
	if commentFQID == "" {
		commentFQID = author.FQID + "/commented/" + uuid.NewString()
	} else if err := ownedBy(author, commentFQID, "commented"); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	c := &domain.Comment{
		AuthorId:    author.Id,
		PostFQID:    postFQID,
		Content:     body,
		ContentType: contentType,
		FQID:        commentFQID,
	}
	if err := s.db.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// requireHostedHere fails with ErrNotFound unless id belongs to the local node.
func (s *Service) requireHostedHere(ctx context.Context, id string) error {
	ref, err := fqid.Parse(id)
	if err != nil {
		return err
	}
	local, err := s.db.ReadLocalNode(ctx)
	if err != nil {
		return fmt.Errorf("read local node: %w", err)
	}
	if ref.BaseURL != local.BaseURL {
		return fmt.Errorf("object %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
