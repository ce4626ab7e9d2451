package database

import (
	"database/sql"
)

const selectPost = `SELECT id, post_id, title, body, community, engagement_score, comment_count,
	link_url, link_expanded, created_at, collected_at FROM posts`

// InsertPost inserts a post. Returns the row ID on success, 0 if the
// post_id was already present.
func (db *DB) InsertPost(p *Post) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO posts (post_id, title, body, community, engagement_score, comment_count, link_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PostID, p.Title, p.Body, p.Community, p.EngagementScore, p.CommentCount, p.LinkURL, p.CreatedAt,
	)
	if err != nil {
		// Duplicate post_id constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetPostByPostID returns a single post by its external identifier.
func (db *DB) GetPostByPostID(postID string) (*Post, error) {
	row := db.conn.QueryRow(selectPost+` WHERE post_id = ?`, postID)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetAllPosts returns every ingested post, newest first.
func (db *DB) GetAllPosts() ([]Post, error) {
	rows, err := db.conn.Query(selectPost + ` ORDER BY collected_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

// GetPostsNeedingExpansion returns link posts whose target page has not
// yet been fetched and whose body carries little or no text of its own.
func (db *DB) GetPostsNeedingExpansion() ([]Post, error) {
	rows, err := db.conn.Query(selectPost + `
		WHERE link_url IS NOT NULL AND link_url != ''
		AND link_expanded = 0
		AND (body IS NULL OR length(body) < 200)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

// UpdatePostBody replaces a post's body with expanded content and marks
// the link as fetched.
func (db *DB) UpdatePostBody(id int64, body *string) error {
	_, err := db.conn.Exec(`UPDATE posts SET body = ?, link_expanded = 1 WHERE id = ?`, body, id)
	return err
}

// MarkPostExpandAttempted records a failed expansion so the post is not
// retried on every run.
func (db *DB) MarkPostExpandAttempted(id int64) error {
	_, err := db.conn.Exec(`UPDATE posts SET link_expanded = 1 WHERE id = ?`, id)
	return err
}

func scanPosts(rows *sql.Rows) ([]Post, error) {
	var posts []Post
	for rows.Next() {
		var p Post
		var expanded int
		if err := rows.Scan(&p.ID, &p.PostID, &p.Title, &p.Body, &p.Community,
			&p.EngagementScore, &p.CommentCount, &p.LinkURL, &expanded, &p.CreatedAt, &p.CollectedAt); err != nil {
			return nil, err
		}
		p.LinkExpanded = expanded != 0
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func scanPost(row *sql.Row) (*Post, error) {
	var p Post
	var expanded int
	if err := row.Scan(&p.ID, &p.PostID, &p.Title, &p.Body, &p.Community,
		&p.EngagementScore, &p.CommentCount, &p.LinkURL, &expanded, &p.CreatedAt, &p.CollectedAt); err != nil {
		return nil, err
	}
	p.LinkExpanded = expanded != 0
	return &p, nil
}
