package db

import (
	"context"
	"database/sql"
)

const (
	sqlCreateNodesTable = `CREATE TABLE IF NOT EXISTS nodes (
		id TEXT NOT NULL PRIMARY KEY,
		base_url TEXT UNIQUE NOT NULL,
		is_local INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		outbound_username TEXT NOT NULL DEFAULT '',
		outbound_password TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	// At most one row may carry is_local = 1.
	sqlCreateNodesIndices = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_single_local ON nodes(is_local) WHERE is_local = 1;
	`

	sqlCreateAuthorsTable = `CREATE TABLE IF NOT EXISTS authors (
		id TEXT NOT NULL PRIMARY KEY,
		serial TEXT NOT NULL,
		node_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		username TEXT UNIQUE NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		github TEXT NOT NULL DEFAULT '',
		profile_image TEXT NOT NULL DEFAULT '',
		page TEXT NOT NULL DEFAULT '',
		fqid TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(node_id, serial)
	)`
	sqlCreateAuthorsIndices = `
		CREATE INDEX IF NOT EXISTS idx_authors_node_id ON authors(node_id);
	`

	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		object_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'denied')),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(actor_id, object_id),
		CHECK (actor_id <> object_id)
	)`
	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_object_id ON follows(object_id, status);
		CREATE INDEX IF NOT EXISTS idx_follows_actor_id ON follows(actor_id, status);
	`

	sqlCreateFriendsTable = `CREATE TABLE IF NOT EXISTS friends (
		id TEXT NOT NULL PRIMARY KEY,
		user1_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		user2_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user1_id, user2_id),
		CHECK (user1_id <> user2_id)
	)`
	sqlCreateFriendsIndices = `
		CREATE INDEX IF NOT EXISTS idx_friends_user2_id ON friends(user2_id);
	`

	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		serial TEXT NOT NULL,
		author_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text/plain',
		visibility TEXT NOT NULL DEFAULT 'PUBLIC',
		fqid TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	sqlCreatePostsIndices = `
		CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id, created_at DESC);
	`

	sqlCreateCommentsTable = `CREATE TABLE IF NOT EXISTS comments (
		id TEXT NOT NULL PRIMARY KEY,
		author_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		post_fqid TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text/plain',
		fqid TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	sqlCreateCommentsIndices = `
		CREATE INDEX IF NOT EXISTS idx_comments_post_fqid ON comments(post_fqid);
	`

	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes (
		id TEXT NOT NULL PRIMARY KEY,
		author_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		object_fqid TEXT NOT NULL,
		fqid TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(author_id, object_fqid)
	)`
	sqlCreateLikesIndices = `
		CREATE INDEX IF NOT EXISTS idx_likes_object_fqid ON likes(object_fqid);
	`

	sqlCreateInboxTable = `CREATE TABLE IF NOT EXISTS inbox_items (
		id TEXT NOT NULL PRIMARY KEY,
		author_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		actor_fqid TEXT NOT NULL DEFAULT '',
		object_fqid TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	sqlCreateInboxIndices = `
		CREATE INDEX IF NOT EXISTS idx_inbox_items_author_id ON inbox_items(author_id, created_at DESC);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(context.Background(), func(tx *sql.Tx) error {
		tables := []struct {
			name    string
			create  string
			indices string
		}{
			{"nodes", sqlCreateNodesTable, sqlCreateNodesIndices},
			{"authors", sqlCreateAuthorsTable, sqlCreateAuthorsIndices},
			{"follows", sqlCreateFollowsTable, sqlCreateFollowsIndices},
			{"friends", sqlCreateFriendsTable, sqlCreateFriendsIndices},
			{"posts", sqlCreatePostsTable, sqlCreatePostsIndices},
			{"comments", sqlCreateCommentsTable, sqlCreateCommentsIndices},
			{"likes", sqlCreateLikesTable, sqlCreateLikesIndices},
			{"inbox_items", sqlCreateInboxTable, sqlCreateInboxIndices},
		}

		for _, t := range tables {
			if err := db.createTableIfNotExists(tx, t.create, t.name); err != nil {
				return err
			}
			if _, err := tx.Exec(t.indices); err != nil {
				db.log.Warn("failed to create indices", "table", t.name, "err", err)
			}
		}
		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	if _, err := tx.Exec(createSQL); err != nil {
		db.log.Error("error creating table", "table", tableName, "err", err)
		return err
	}
	db.log.Debug("table created or already exists", "table", tableName)
	return nil
}
