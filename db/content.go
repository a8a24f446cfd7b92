package db

import (
	"context"
	"fmt"

	"github.com/deemkeen/nodelink/domain"
	"github.com/google/uuid"
)

const (
	postColumns   = `id, serial, author_id, title, content, content_type, visibility, fqid, created_at, updated_at`
	sqlSelectPost = `SELECT ` + postColumns + ` FROM posts`
	sqlInsertPost = `INSERT INTO posts(` + postColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	// An inbound post may only overwrite a row owned by the same author.
	sqlUpsertPost = sqlInsertPost + `
		ON CONFLICT(fqid) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_type = excluded.content_type,
			visibility = excluded.visibility,
			updated_at = excluded.updated_at
		WHERE posts.author_id = excluded.author_id`
	sqlUpdatePostVisibility = `UPDATE posts SET visibility = ?, updated_at = ? WHERE id = ?`

	commentColumns   = `id, author_id, post_fqid, content, content_type, fqid, created_at`
	sqlSelectComment = `SELECT ` + commentColumns + ` FROM comments`
	sqlInsertComment = `INSERT INTO comments(` + commentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(fqid) DO NOTHING`

	likeColumns   = `id, author_id, object_fqid, fqid, created_at`
	sqlSelectLike = `SELECT ` + likeColumns + ` FROM likes`
	sqlInsertLike = `INSERT INTO likes(` + likeColumns + `) VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`

	inboxColumns   = `id, author_id, kind, actor_fqid, object_fqid, created_at`
	sqlInsertInbox = `INSERT INTO inbox_items(` + inboxColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	sqlSelectInbox = `SELECT ` + inboxColumns + ` FROM inbox_items WHERE author_id = ? ORDER BY created_at DESC LIMIT ?`
)

func scanPost(row interface{ Scan(...any) error }) (*domain.Post, error) {
	var p domain.Post
	var visibility string
	err := row.Scan(&p.Id, &p.Serial, &p.AuthorId, &p.Title, &p.Content, &p.ContentType, &visibility,
		&p.FQID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Visibility = domain.Visibility(visibility)
	return &p, nil
}

func readPost(ctx context.Context, q queryer, where string, args ...any) (*domain.Post, error) {
	p, err := scanPost(q.QueryRowContext(ctx, sqlSelectPost+" WHERE "+where, args...))
	if err != nil {
		return nil, notFound(err, domain.ErrPostNotFound)
	}
	return p, nil
}

func postArgs(p *domain.Post) []any {
	return []any{p.Id, p.Serial, p.AuthorId, p.Title, p.Content, p.ContentType, string(p.Visibility),
		p.FQID, p.CreatedAt, p.UpdatedAt}
}

func stampPost(p *domain.Post) {
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	t := now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t
	}
	p.UpdatedAt = t
}

func (db *DB) CreatePost(ctx context.Context, p *domain.Post) error {
	stampPost(p)
	if _, err := db.db.ExecContext(ctx, sqlInsertPost, postArgs(p)...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: post %s already exists", domain.ErrConflict, p.FQID)
		}
		return err
	}
	return nil
}

// UpsertPost stores an inbound post keyed by fqid and returns the stored row.
// A post already owned by a different author is left untouched and reported
// as an integrity violation.
func (db *DB) UpsertPost(ctx context.Context, p *domain.Post) (*domain.Post, error) {
	var stored *domain.Post
	err := db.InTx(ctx, func(tx *Tx) error {
		stampPost(p)
		if _, err := tx.tx.ExecContext(ctx, sqlUpsertPost, postArgs(p)...); err != nil {
			return err
		}
		var err error
		stored, err = readPost(ctx, tx.tx, "fqid = ?", p.FQID)
		if err != nil {
			return err
		}
		if stored.AuthorId != p.AuthorId {
			return fmt.Errorf("%w: post %s belongs to another author", domain.ErrIntegrity, p.FQID)
		}
		return nil
	})
	return stored, err
}

func (db *DB) ReadPostByFQID(ctx context.Context, fqid string) (*domain.Post, error) {
	return readPost(ctx, db.db, "fqid = ?", fqid)
}

func (db *DB) ReadPostBySerial(ctx context.Context, authorId uuid.UUID, serial string) (*domain.Post, error) {
	return readPost(ctx, db.db, "author_id = ? AND serial = ?", authorId, serial)
}

// ReadPostsByAuthor returns the author's posts, newest first, DELETED included.
func (db *DB) ReadPostsByAuthor(ctx context.Context, authorId uuid.UUID) ([]domain.Post, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectPost+" WHERE author_id = ? ORDER BY created_at DESC", authorId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func (db *DB) UpdatePostVisibility(ctx context.Context, p *domain.Post, visibility domain.Visibility) error {
	p.Visibility = visibility
	p.UpdatedAt = now()
	res, err := db.db.ExecContext(ctx, sqlUpdatePostVisibility, string(visibility), p.UpdatedAt, p.Id)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrPostNotFound)
}

func scanComment(row interface{ Scan(...any) error }) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.Id, &c.AuthorId, &c.PostFQID, &c.Content, &c.ContentType, &c.FQID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateComment stores a comment; redelivery of the same fqid is ignored.
func (db *DB) CreateComment(ctx context.Context, c *domain.Comment) error {
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	_, err := db.db.ExecContext(ctx, sqlInsertComment, c.Id, c.AuthorId, c.PostFQID, c.Content, c.ContentType, c.FQID, c.CreatedAt)
	return err
}

func (db *DB) ReadCommentByFQID(ctx context.Context, fqid string) (*domain.Comment, error) {
	c, err := scanComment(db.db.QueryRowContext(ctx, sqlSelectComment+" WHERE fqid = ?", fqid))
	if err != nil {
		return nil, notFound(err, fmt.Errorf("comment %w", domain.ErrNotFound))
	}
	return c, nil
}

func (db *DB) ReadCommentsByPost(ctx context.Context, postFQID string) ([]domain.Comment, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectComment+" WHERE post_fqid = ? ORDER BY created_at", postFQID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func scanLike(row interface{ Scan(...any) error }) (*domain.Like, error) {
	var l domain.Like
	if err := row.Scan(&l.Id, &l.AuthorId, &l.ObjectFQID, &l.FQID, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLike stores a like and returns the stored row. A second like of the
// same object by the same author returns the first one.
func (db *DB) CreateLike(ctx context.Context, l *domain.Like) (*domain.Like, error) {
	var stored *domain.Like
	err := db.InTx(ctx, func(tx *Tx) error {
		if l.Id == uuid.Nil {
			l.Id = uuid.New()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now()
		}
		if _, err := tx.tx.ExecContext(ctx, sqlInsertLike, l.Id, l.AuthorId, l.ObjectFQID, l.FQID, l.CreatedAt); err != nil {
			return err
		}
		var err error
		stored, err = scanLike(tx.tx.QueryRowContext(ctx, sqlSelectLike+" WHERE author_id = ? AND object_fqid = ?", l.AuthorId, l.ObjectFQID))
		if err != nil {
			// the fqid was taken by a like on another object
			return notFound(err, fmt.Errorf("%w: like %s already used", domain.ErrConflict, l.FQID))
		}
		return nil
	})
	return stored, err
}

func (db *DB) ReadLikesByObject(ctx context.Context, objectFQID string) ([]domain.Like, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectLike+" WHERE object_fqid = ? ORDER BY created_at", objectFQID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var likes []domain.Like
	for rows.Next() {
		l, err := scanLike(rows)
		if err != nil {
			return nil, err
		}
		likes = append(likes, *l)
	}
	return likes, rows.Err()
}

func (db *DB) CreateInboxItem(ctx context.Context, item *domain.InboxItem) error {
	if item.Id == uuid.Nil {
		item.Id = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now()
	}
	_, err := db.db.ExecContext(ctx, sqlInsertInbox, item.Id, item.AuthorId, item.Kind, item.ActorFQID, item.ObjectFQID, item.CreatedAt)
	return err
}

func (db *DB) ReadInboxItems(ctx context.Context, authorId uuid.UUID, limit int) ([]domain.InboxItem, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectInbox, authorId, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.InboxItem
	for rows.Next() {
		var i domain.InboxItem
		if err := rows.Scan(&i.Id, &i.AuthorId, &i.Kind, &i.ActorFQID, &i.ObjectFQID, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
