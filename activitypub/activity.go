package activitypub

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deemkeen/nodelink/domain"
	"github.com/deemkeen/nodelink/fqid"
	"github.com/go-playground/validator/v10"
)

const (
	TypeAuthor  = "author"
	TypeAuthors = "authors"
	TypeFollow  = "follow"
	TypePost    = "post"
	TypeLike    = "like"
	TypeComment = "comment"
)

var validate = validator.New()

// Activity is one of the inbox payload variants.
type Activity interface {
	Kind() string
	// Authors lists every author the payload speaks for.
	Authors() []AuthorObject
}

// AuthorObject is the wire representation of an author.
type AuthorObject struct {
	Type         string `json:"type,omitempty"`
	ID           string `json:"id" validate:"required,url"`
	Host         string `json:"host,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	Github       string `json:"github,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	Page         string `json:"page,omitempty"`
}

type FollowActivity struct {
	Type    string       `json:"type"`
	Summary string       `json:"summary,omitempty"`
	Actor   AuthorObject `json:"actor"`
	Object  AuthorObject `json:"object"`
}

type PostActivity struct {
	Type        string       `json:"type"`
	ID          string       `json:"id" validate:"required,url"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	ContentType string       `json:"contentType,omitempty"`
	Visibility  string       `json:"visibility" validate:"required"`
	Author      AuthorObject `json:"author"`
}

type LikeActivity struct {
	Type   string       `json:"type"`
	ID     string       `json:"id,omitempty" validate:"omitempty,url"`
	Author AuthorObject `json:"author"`
	Object string       `json:"object" validate:"required,url"`
}

type CommentActivity struct {
	Type        string       `json:"type"`
	ID          string       `json:"id,omitempty" validate:"omitempty,url"`
	Author      AuthorObject `json:"author"`
	Content     string       `json:"content" validate:"required"`
	ContentType string       `json:"contentType,omitempty"`
	Post        string       `json:"post" validate:"required,url"`
}

// AuthorList is the response of GET <base>authors/.
type AuthorList struct {
	Type  string         `json:"type"`
	Items []AuthorObject `json:"items"`
}

func (a *FollowActivity) Kind() string  { return TypeFollow }
func (a *PostActivity) Kind() string    { return TypePost }
func (a *LikeActivity) Kind() string    { return TypeLike }
func (a *CommentActivity) Kind() string { return TypeComment }

func (a *FollowActivity) Authors() []AuthorObject  { return []AuthorObject{a.Actor, a.Object} }
func (a *PostActivity) Authors() []AuthorObject    { return []AuthorObject{a.Author} }
func (a *LikeActivity) Authors() []AuthorObject    { return []AuthorObject{a.Author} }
func (a *CommentActivity) Authors() []AuthorObject { return []AuthorObject{a.Author} }

// DecodeActivity reads the type tag of body and decodes it into exactly one
// variant. Tags are matched case-insensitively.
func DecodeActivity(body []byte) (Activity, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", domain.ErrValidation, err)
	}

	var activity Activity
	switch strings.ToLower(strings.TrimSpace(envelope.Type)) {
	case TypeFollow:
		activity = &FollowActivity{}
	case TypePost:
		activity = &PostActivity{}
	case TypeLike:
		activity = &LikeActivity{}
	case TypeComment:
		activity = &CommentActivity{}
	case "":
		return nil, fmt.Errorf("%w: missing type", domain.ErrValidation)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, envelope.Type)
	}

	if err := json.Unmarshal(body, activity); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", domain.ErrValidation, envelope.Type, err)
	}
	if err := validate.Struct(activity); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", domain.ErrValidation, envelope.Type, err)
	}
	return activity, nil
}

// DecodeAuthorList accepts {"type":"authors","items":[...]} or a bare array.
func DecodeAuthorList(body []byte) ([]AuthorObject, error) {
	trimmed := strings.TrimSpace(string(body))
	var items []AuthorObject
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: author list: %v", domain.ErrValidation, err)
		}
		return items, nil
	}

	var list AuthorList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: author list: %v", domain.ErrValidation, err)
	}
	return list.Items, nil
}

// NewAuthorObject renders a for the wire. The host is derived from its FQID.
func NewAuthorObject(a *domain.Author) AuthorObject {
	host := ""
	if ref, err := fqid.Parse(a.FQID); err == nil {
		host = ref.BaseURL
	}
	return AuthorObject{
		Type:         TypeAuthor,
		ID:           a.FQID,
		Host:         host,
		DisplayName:  a.DisplayName,
		Github:       a.Github,
		ProfileImage: a.ProfileImage,
		Page:         a.Page,
	}
}

// Profile converts a wire author into the profile fields of a domain author.
func (o AuthorObject) Profile() *domain.Author {
	return &domain.Author{
		FQID:         strings.TrimRight(strings.TrimSpace(o.ID), "/"),
		DisplayName:  o.DisplayName,
		Github:       o.Github,
		ProfileImage: o.ProfileImage,
		Page:         o.Page,
	}
}

func NewFollowActivity(actor, object *domain.Author) *FollowActivity {
	return &FollowActivity{
		Type:    TypeFollow,
		Summary: fmt.Sprintf("%s wants to follow %s", displayName(actor), displayName(object)),
		Actor:   NewAuthorObject(actor),
		Object:  NewAuthorObject(object),
	}
}

func NewPostActivity(author *domain.Author, p *domain.Post) *PostActivity {
	return &PostActivity{
		Type:        TypePost,
		ID:          p.FQID,
		Title:       p.Title,
		Content:     p.Content,
		ContentType: p.ContentType,
		Visibility:  string(p.Visibility),
		Author:      NewAuthorObject(author),
	}
}

func NewLikeActivity(author *domain.Author, l *domain.Like) *LikeActivity {
	return &LikeActivity{Type: TypeLike, ID: l.FQID, Author: NewAuthorObject(author), Object: l.ObjectFQID}
}

func NewCommentActivity(author *domain.Author, c *domain.Comment) *CommentActivity {
	return &CommentActivity{
		Type:        TypeComment,
		ID:          c.FQID,
		Author:      NewAuthorObject(author),
		Content:     c.Content,
		ContentType: c.ContentType,
		Post:        c.PostFQID,
	}
}

func displayName(a *domain.Author) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}
