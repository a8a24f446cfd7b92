package db

import (
	"context"
	"fmt"

	"github.com/deemkeen/nodelink/domain"
	"github.com/google/uuid"
)

const (
	nodeColumns           = `id, base_url, is_local, is_active, username, password_hash, outbound_username, outbound_password, created_at`
	sqlInsertNode         = `INSERT INTO nodes(` + nodeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectNodes        = `SELECT ` + nodeColumns + ` FROM nodes`
	sqlUpdateLocalNode    = `UPDATE nodes SET base_url = ?, username = ?, password_hash = ? WHERE id = ?`
	sqlUpdateNodeActive   = `UPDATE nodes SET is_active = ? WHERE id = ?`
	sqlUpdateNodeOutbound = `UPDATE nodes SET outbound_username = ?, outbound_password = ? WHERE id = ?`
)

func scanNode(row interface{ Scan(...any) error }) (*domain.Node, error) {
	var n domain.Node
	err := row.Scan(&n.Id, &n.BaseURL, &n.IsLocal, &n.IsActive, &n.Username, &n.PasswordHash,
		&n.OutboundUsername, &n.OutboundPassword, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func readNode(ctx context.Context, q queryer, where string, arg any) (*domain.Node, error) {
	n, err := scanNode(q.QueryRowContext(ctx, sqlSelectNodes+" WHERE "+where, arg))
	if err != nil {
		return nil, notFound(err, domain.ErrNodeNotFound)
	}
	return n, nil
}

func readNodes(ctx context.Context, q queryer, query string, args ...any) ([]domain.Node, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []domain.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

func createNode(ctx context.Context, q queryer, n *domain.Node) error {
	if n.Id == uuid.Nil {
		n.Id = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	_, err := q.ExecContext(ctx, sqlInsertNode, n.Id, n.BaseURL, n.IsLocal, n.IsActive, n.Username,
		n.PasswordHash, n.OutboundUsername, n.OutboundPassword, n.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: node %s already registered", domain.ErrConflict, n.BaseURL)
		}
		return err
	}
	return nil
}

func (db *DB) CreateNode(ctx context.Context, n *domain.Node) error {
	return createNode(ctx, db.db, n)
}

func (tx *Tx) CreateNode(ctx context.Context, n *domain.Node) error {
	return createNode(ctx, tx.tx, n)
}

func (tx *Tx) ReadLocalNode(ctx context.Context) (*domain.Node, error) {
	return readNode(ctx, tx.tx, "is_local = ?", true)
}

// UpdateLocalNode rewrites the address and inbound credentials of the local node.
func (tx *Tx) UpdateLocalNode(ctx context.Context, n *domain.Node) error {
	_, err := tx.tx.ExecContext(ctx, sqlUpdateLocalNode, n.BaseURL, n.Username, n.PasswordHash, n.Id)
	return err
}

func (db *DB) ReadNodeById(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	return readNode(ctx, db.db, "id = ?", id)
}

func (db *DB) ReadNodeByUsername(ctx context.Context, username string) (*domain.Node, error) {
	return readNode(ctx, db.db, "username = ?", username)
}

func (db *DB) ReadNodeByBaseURL(ctx context.Context, baseURL string) (*domain.Node, error) {
	return readNode(ctx, db.db, "base_url = ?", baseURL)
}

func (db *DB) ReadLocalNode(ctx context.Context) (*domain.Node, error) {
	return readNode(ctx, db.db, "is_local = ?", true)
}

func (db *DB) ReadNodes(ctx context.Context) ([]domain.Node, error) {
	return readNodes(ctx, db.db, sqlSelectNodes+" ORDER BY is_local DESC, base_url")
}

func (db *DB) ReadActiveRemoteNodes(ctx context.Context) ([]domain.Node, error) {
	return readNodes(ctx, db.db, sqlSelectNodes+" WHERE is_local = 0 AND is_active = 1 ORDER BY base_url")
}

func (db *DB) UpdateNodeActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := db.db.ExecContext(ctx, sqlUpdateNodeActive, active, id)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrNodeNotFound)
}

func (db *DB) UpdateNodeOutbound(ctx context.Context, id uuid.UUID, username, password string) error {
	res, err := db.db.ExecContext(ctx, sqlUpdateNodeOutbound, username, password, id)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrNodeNotFound)
}
