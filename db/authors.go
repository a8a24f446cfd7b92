package db

import (
	"context"
	"fmt"

	"github.com/deemkeen/nodelink/domain"
	"github.com/google/uuid"
)

const (
	authorColumns   = `id, serial, node_id, username, display_name, github, profile_image, page, fqid, created_at, updated_at`
	sqlInsertAuthor = `INSERT INTO authors(` + authorColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectAuthor = `SELECT ` + authorColumns + ` FROM authors`
	// Remote authors are keyed by fqid. Identity columns stay as first seen and
	// an empty profile field never overwrites a known one.
	sqlUpsertRemoteAuthor = `INSERT INTO authors(` + authorColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fqid) DO UPDATE SET
			display_name = COALESCE(NULLIF(excluded.display_name, ''), authors.display_name),
			github = COALESCE(NULLIF(excluded.github, ''), authors.github),
			profile_image = COALESCE(NULLIF(excluded.profile_image, ''), authors.profile_image),
			page = COALESCE(NULLIF(excluded.page, ''), authors.page),
			updated_at = excluded.updated_at`
	sqlUpdateAuthorProfile = `UPDATE authors SET display_name = ?, github = ?, profile_image = ?, page = ?, updated_at = ? WHERE id = ?`
)

func scanAuthor(row interface{ Scan(...any) error }) (*domain.Author, error) {
	var a domain.Author
	err := row.Scan(&a.Id, &a.Serial, &a.NodeId, &a.Username, &a.DisplayName, &a.Github,
		&a.ProfileImage, &a.Page, &a.FQID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func readAuthor(ctx context.Context, q queryer, where string, args ...any) (*domain.Author, error) {
	a, err := scanAuthor(q.QueryRowContext(ctx, sqlSelectAuthor+" WHERE "+where, args...))
	if err != nil {
		return nil, notFound(err, domain.ErrAuthorNotFound)
	}
	return a, nil
}

func readAuthors(ctx context.Context, q queryer, query string, args ...any) ([]domain.Author, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []domain.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, err
		}
		authors = append(authors, *a)
	}
	return authors, rows.Err()
}

func authorArgs(a *domain.Author) []any {
	return []any{a.Id, a.Serial, a.NodeId, a.Username, a.DisplayName, a.Github,
		a.ProfileImage, a.Page, a.FQID, a.CreatedAt, a.UpdatedAt}
}

func stampAuthor(a *domain.Author) {
	if a.Id == uuid.Nil {
		a.Id = uuid.New()
	}
	t := now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = t
	}
	a.UpdatedAt = t
}

// CreateAuthor inserts a new author. FQID must already be computed.
func (db *DB) CreateAuthor(ctx context.Context, a *domain.Author) error {
	stampAuthor(a)
	if _, err := db.db.ExecContext(ctx, sqlInsertAuthor, authorArgs(a)...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: author %s already exists", domain.ErrConflict, a.Username)
		}
		return err
	}
	return nil
}

// UpsertRemoteAuthor inserts or refreshes a remote author and returns the stored row.
func (db *DB) UpsertRemoteAuthor(ctx context.Context, a *domain.Author) (*domain.Author, error) {
	var stored *domain.Author
	err := db.InTx(ctx, func(tx *Tx) error {
		var err error
		stored, err = tx.UpsertRemoteAuthor(ctx, a)
		return err
	})
	return stored, err
}

func (tx *Tx) UpsertRemoteAuthor(ctx context.Context, a *domain.Author) (*domain.Author, error) {
	stampAuthor(a)
	if _, err := tx.tx.ExecContext(ctx, sqlUpsertRemoteAuthor, authorArgs(a)...); err != nil {
		if isUniqueViolation(err) {
			// fqid is handled by the upsert, so this is a username or (node, serial) clash
			return nil, fmt.Errorf("%w: remote author %s clashes with an existing author", domain.ErrIntegrity, a.FQID)
		}
		return nil, err
	}
	return readAuthor(ctx, tx.tx, "fqid = ?", a.FQID)
}

func (db *DB) UpdateAuthorProfile(ctx context.Context, a *domain.Author) error {
	a.UpdatedAt = now()
	res, err := db.db.ExecContext(ctx, sqlUpdateAuthorProfile, a.DisplayName, a.Github, a.ProfileImage, a.Page, a.UpdatedAt, a.Id)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrAuthorNotFound)
}

func (db *DB) ReadAuthorById(ctx context.Context, id uuid.UUID) (*domain.Author, error) {
	return readAuthor(ctx, db.db, "id = ?", id)
}

func (tx *Tx) ReadAuthorById(ctx context.Context, id uuid.UUID) (*domain.Author, error) {
	return readAuthor(ctx, tx.tx, "id = ?", id)
}

func (db *DB) ReadAuthorByFQID(ctx context.Context, fqid string) (*domain.Author, error) {
	return readAuthor(ctx, db.db, "fqid = ?", fqid)
}

func (tx *Tx) ReadAuthorByFQID(ctx context.Context, fqid string) (*domain.Author, error) {
	return readAuthor(ctx, tx.tx, "fqid = ?", fqid)
}

// ReadLocalAuthorBySerial resolves the :serial path segment of the local API.
func (db *DB) ReadLocalAuthorBySerial(ctx context.Context, serial string) (*domain.Author, error) {
	return readAuthor(ctx, db.db, "serial = ? AND node_id = (SELECT id FROM nodes WHERE is_local = 1)", serial)
}

func (db *DB) ReadAuthorsByNode(ctx context.Context, nodeId uuid.UUID) ([]domain.Author, error) {
	return readAuthors(ctx, db.db, sqlSelectAuthor+" WHERE node_id = ? ORDER BY username", nodeId)
}

func (db *DB) ReadLocalAuthors(ctx context.Context) ([]domain.Author, error) {
	return readAuthors(ctx, db.db, sqlSelectAuthor+" WHERE node_id = (SELECT id FROM nodes WHERE is_local = 1) ORDER BY username")
}
