package db

import (
	"context"

	"github.com/deemkeen/nodelink/domain"
	"github.com/google/uuid"
)

const (
	followColumns         = `id, actor_id, object_id, status, created_at, updated_at`
	sqlSelectFollow       = `SELECT ` + followColumns + ` FROM follows`
	sqlInsertFollow       = `INSERT INTO follows(` + followColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	sqlUpdateFollowStatus = `UPDATE follows SET status = ?, updated_at = ? WHERE id = ?`
	sqlDeleteFollow       = `DELETE FROM follows WHERE id = ?`

	friendColumns   = `id, user1_id, user2_id, created_at`
	sqlSelectFriend = `SELECT ` + friendColumns + ` FROM friends`
	sqlInsertFriend = `INSERT INTO friends(` + friendColumns + `) VALUES (?, ?, ?, ?) ON CONFLICT(user1_id, user2_id) DO NOTHING`
	sqlDeleteFriend = `DELETE FROM friends WHERE user1_id = ? AND user2_id = ?`

	sqlSelectFollowerAuthors = `SELECT a.id, a.serial, a.node_id, a.username, a.display_name, a.github, a.profile_image, a.page, a.fqid, a.created_at, a.updated_at
		FROM follows f INNER JOIN authors a ON a.id = f.actor_id`
	sqlSelectFollowedAuthors = `SELECT a.id, a.serial, a.node_id, a.username, a.display_name, a.github, a.profile_image, a.page, a.fqid, a.created_at, a.updated_at
		FROM follows f INNER JOIN authors a ON a.id = f.object_id`
	sqlSelectFriendAuthors = `SELECT a.id, a.serial, a.node_id, a.username, a.display_name, a.github, a.profile_image, a.page, a.fqid, a.created_at, a.updated_at
		FROM friends fr INNER JOIN authors a ON a.id = CASE WHEN fr.user1_id = ? THEN fr.user2_id ELSE fr.user1_id END
		WHERE (fr.user1_id = ? OR fr.user2_id = ?)`
	sqlSelectFriendIds = `SELECT CASE WHEN user1_id = ? THEN user2_id ELSE user1_id END FROM friends WHERE user1_id = ? OR user2_id = ?`

	sqlRemoteActiveNode = `a.node_id IN (SELECT id FROM nodes WHERE is_local = 0 AND is_active = 1)`
)

func scanFollow(row interface{ Scan(...any) error }) (*domain.Follow, error) {
	var f domain.Follow
	var status string
	if err := row.Scan(&f.Id, &f.ActorId, &f.ObjectId, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Status = domain.FollowStatus(status)
	return &f, nil
}

func readFollow(ctx context.Context, q queryer, where string, args ...any) (*domain.Follow, error) {
	f, err := scanFollow(q.QueryRowContext(ctx, sqlSelectFollow+" WHERE "+where, args...))
	if err != nil {
		return nil, notFound(err, domain.ErrFollowNotFound)
	}
	return f, nil
}

func (tx *Tx) ReadFollow(ctx context.Context, actorId, objectId uuid.UUID) (*domain.Follow, error) {
	return readFollow(ctx, tx.tx, "actor_id = ? AND object_id = ?", actorId, objectId)
}

func (tx *Tx) ReadFollowById(ctx context.Context, id uuid.UUID) (*domain.Follow, error) {
	return readFollow(ctx, tx.tx, "id = ?", id)
}

func (db *DB) ReadFollow(ctx context.Context, actorId, objectId uuid.UUID) (*domain.Follow, error) {
	return readFollow(ctx, db.db, "actor_id = ? AND object_id = ?", actorId, objectId)
}

func (tx *Tx) CreateFollow(ctx context.Context, f *domain.Follow) error {
	if f.Id == uuid.Nil {
		f.Id = uuid.New()
	}
	t := now()
	f.CreatedAt, f.UpdatedAt = t, t
	_, err := tx.tx.ExecContext(ctx, sqlInsertFollow, f.Id, f.ActorId, f.ObjectId, string(f.Status), f.CreatedAt, f.UpdatedAt)
	return err
}

func (tx *Tx) UpdateFollowStatus(ctx context.Context, f *domain.Follow, status domain.FollowStatus) error {
	f.Status = status
	f.UpdatedAt = now()
	res, err := tx.tx.ExecContext(ctx, sqlUpdateFollowStatus, string(status), f.UpdatedAt, f.Id)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrFollowNotFound)
}

func (tx *Tx) DeleteFollow(ctx context.Context, id uuid.UUID) error {
	res, err := tx.tx.ExecContext(ctx, sqlDeleteFollow, id)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrFollowNotFound)
}

func scanFriend(row interface{ Scan(...any) error }) (*domain.Friend, error) {
	var f domain.Friend
	if err := row.Scan(&f.Id, &f.User1Id, &f.User2Id, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFriend inserts a canonical friend pair. An existing pair is not an
// error; created reports whether a new row was written.
func (tx *Tx) CreateFriend(ctx context.Context, f *domain.Friend) (bool, error) {
	if f.Id == uuid.Nil {
		f.Id = uuid.New()
	}
	f.CreatedAt = now()
	res, err := tx.tx.ExecContext(ctx, sqlInsertFriend, f.Id, f.User1Id, f.User2Id, f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (tx *Tx) ReadFriend(ctx context.Context, user1Id, user2Id uuid.UUID) (*domain.Friend, error) {
	f, err := scanFriend(tx.tx.QueryRowContext(ctx, sqlSelectFriend+" WHERE user1_id = ? AND user2_id = ?", user1Id, user2Id))
	if err != nil {
		return nil, notFound(err, domain.ErrFriendNotFound)
	}
	return f, nil
}

// DeleteFriend removes the canonical pair and reports whether a row existed.
func (tx *Tx) DeleteFriend(ctx context.Context, user1Id, user2Id uuid.UUID) (bool, error) {
	res, err := tx.tx.ExecContext(ctx, sqlDeleteFriend, user1Id, user2Id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) ReadFriend(ctx context.Context, user1Id, user2Id uuid.UUID) (*domain.Friend, error) {
	f, err := scanFriend(db.db.QueryRowContext(ctx, sqlSelectFriend+" WHERE user1_id = ? AND user2_id = ?", user1Id, user2Id))
	if err != nil {
		return nil, notFound(err, domain.ErrFriendNotFound)
	}
	return f, nil
}

func (db *DB) CountFriends(ctx context.Context) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM friends").Scan(&n)
	return n, err
}

func (db *DB) CountFollows(ctx context.Context, actorId, objectId uuid.UUID) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM follows WHERE actor_id = ? AND object_id = ?", actorId, objectId).Scan(&n)
	return n, err
}

// ReadFollowers returns the authors following objectId with the given status.
func (db *DB) ReadFollowers(ctx context.Context, objectId uuid.UUID, status domain.FollowStatus) ([]domain.Author, error) {
	return readAuthors(ctx, db.db, sqlSelectFollowerAuthors+" WHERE f.object_id = ? AND f.status = ? ORDER BY f.created_at", objectId, string(status))
}

// ReadRemoteFollowers returns accepted followers hosted on active remote nodes.
func (db *DB) ReadRemoteFollowers(ctx context.Context, objectId uuid.UUID) ([]domain.Author, error) {
	return readAuthors(ctx, db.db, sqlSelectFollowerAuthors+" WHERE f.object_id = ? AND f.status = ? AND "+sqlRemoteActiveNode,
		objectId, string(domain.FollowAccepted))
}

// ReadFollowing returns the authors actorId follows with the given status.
func (db *DB) ReadFollowing(ctx context.Context, actorId uuid.UUID, status domain.FollowStatus) ([]domain.Author, error) {
	return readAuthors(ctx, db.db, sqlSelectFollowedAuthors+" WHERE f.actor_id = ? AND f.status = ? ORDER BY f.created_at", actorId, string(status))
}

func (db *DB) ReadFollowRequests(ctx context.Context, objectId uuid.UUID) ([]domain.FollowRequest, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT f.id, f.actor_id, f.object_id, f.status, f.created_at, f.updated_at,
		a.id, a.serial, a.node_id, a.username, a.display_name, a.github, a.profile_image, a.page, a.fqid, a.created_at, a.updated_at
		FROM follows f INNER JOIN authors a ON a.id = f.actor_id
		WHERE f.object_id = ? AND f.status = ? ORDER BY f.created_at`, objectId, string(domain.FollowPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.FollowRequest
	for rows.Next() {
		var r domain.FollowRequest
		var status string
		err := rows.Scan(&r.Follow.Id, &r.Follow.ActorId, &r.Follow.ObjectId, &status, &r.Follow.CreatedAt, &r.Follow.UpdatedAt,
			&r.Actor.Id, &r.Actor.Serial, &r.Actor.NodeId, &r.Actor.Username, &r.Actor.DisplayName, &r.Actor.Github,
			&r.Actor.ProfileImage, &r.Actor.Page, &r.Actor.FQID, &r.Actor.CreatedAt, &r.Actor.UpdatedAt)
		if err != nil {
			return nil, err
		}
		r.Follow.Status = domain.FollowStatus(status)
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// ReadPendingFollowsToNode returns pending follows from local authors to authors on nodeId.
func (db *DB) ReadPendingFollowsToNode(ctx context.Context, nodeId uuid.UUID) ([]domain.Follow, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT f.id, f.actor_id, f.object_id, f.status, f.created_at, f.updated_at
		FROM follows f
		INNER JOIN authors obj ON obj.id = f.object_id
		INNER JOIN authors act ON act.id = f.actor_id
		WHERE f.status = ? AND obj.node_id = ? AND act.node_id = (SELECT id FROM nodes WHERE is_local = 1)`,
		string(domain.FollowPending), nodeId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var follows []domain.Follow
	for rows.Next() {
		f, err := scanFollow(rows)
		if err != nil {
			return nil, err
		}
		follows = append(follows, *f)
	}
	return follows, rows.Err()
}

func (db *DB) ReadFriends(ctx context.Context, authorId uuid.UUID) ([]domain.Author, error) {
	return readAuthors(ctx, db.db, sqlSelectFriendAuthors+" ORDER BY a.username", authorId, authorId, authorId)
}

// ReadRemoteFriends returns friends hosted on active remote nodes.
func (db *DB) ReadRemoteFriends(ctx context.Context, authorId uuid.UUID) ([]domain.Author, error) {
	return readAuthors(ctx, db.db, sqlSelectFriendAuthors+" AND "+sqlRemoteActiveNode, authorId, authorId, authorId)
}

func (db *DB) ReadFriendIds(ctx context.Context, authorId uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectFriendIds, authorId, authorId, authorId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
