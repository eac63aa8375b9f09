package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/friendloop/backend/internal/db"
	"github.com/friendloop/backend/internal/friends"
	"github.com/friendloop/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, display_name, password_hash, avatar_url, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, user.ID, user.Email, user.DisplayName, user.Password, user.AvatarURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, display_name, password_hash, avatar_url, created_at, updated_at
        FROM users
        WHERE email = $1
    `, email)

	return scanUser(row, "select user by email")
}

// FindByID fetches a user by their identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, display_name, password_hash, avatar_url, created_at, updated_at
        FROM users
        WHERE id = $1
    `, id)

	return scanUser(row, "select user by id")
}

// Update modifies an existing user record.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2, display_name = $3, password_hash = $4, avatar_url = $5, updated_at = $6
        WHERE id = $1
    `, user.ID, user.Email, user.DisplayName, user.Password, user.AvatarURL, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateAvatar records a new avatar location for the user.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string, now time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET avatar_url = $2, updated_at = $3
        WHERE id = $1
    `, userID, avatarURL, now)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row, op string) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.Password, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

const edgeColumns = `id, user_low, user_high, status, requested_by, accepted_at, created_at, updated_at`

// PostgresEdgeRepository provides PostgreSQL-backed persistence for
// friendship edges. The unique constraint on (user_low, user_high) is
// the only synchronization primitive: every write is a single
// conditional statement and the repository never takes client-side
// locks or multi-row transactions.
type PostgresEdgeRepository struct {
	pool db.Pool
}

// NewPostgresEdgeRepository constructs an edge repository backed by PostgreSQL.
func NewPostgresEdgeRepository(pool db.Pool) *PostgresEdgeRepository {
	return &PostgresEdgeRepository{pool: pool}
}

// Upsert creates the pair's pending edge or reopens the existing one in
// a single atomic statement. The DO UPDATE arm carries a
// party-membership predicate, so a conflict against a row the requester
// cannot act on produces zero returned rows, surfaced as
// friends.ErrNotFound for the caller to treat as ambiguous.
func (r *PostgresEdgeRepository) Upsert(ctx context.Context, candidate models.FriendEdge) (models.FriendEdge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendEdge{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO friend_edges (`+edgeColumns+`)
        VALUES ($1, $2, $3, 'pending', $4, NULL, $5, $5)
        ON CONFLICT (user_low, user_high) DO UPDATE
        SET status = 'pending',
            requested_by = EXCLUDED.requested_by,
            accepted_at = NULL,
            updated_at = EXCLUDED.updated_at
        WHERE friend_edges.user_low = EXCLUDED.requested_by
           OR friend_edges.user_high = EXCLUDED.requested_by
        RETURNING `+edgeColumns+`
    `, candidate.ID, candidate.UserLow, candidate.UserHigh, candidate.RequestedBy, candidate.UpdatedAt)

	return scanEdge(row, "upsert friend edge")
}

// Insert stores the edge exactly as given. Any existing edge for the
// pair fails the write with friends.ErrEdgeExists.
func (r *PostgresEdgeRepository) Insert(ctx context.Context, edge models.FriendEdge) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var acceptedAt sql.NullTime
	if edge.AcceptedAt != nil {
		acceptedAt = sql.NullTime{Valid: true, Time: edge.AcceptedAt.UTC()}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO friend_edges (`+edgeColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, edge.ID, edge.UserLow, edge.UserHigh, edge.Status, edge.RequestedBy, acceptedAt, edge.CreatedAt, edge.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return friends.ErrEdgeExists
			case "23503":
				return friends.ErrNotFound
			}
		}
		return fmt.Errorf("insert friend edge: %w", err)
	}

	return nil
}

// Accept flips a pending edge to accepted. The predicate rejects the
// requester accepting their own request and any non-participant.
func (r *PostgresEdgeRepository) Accept(ctx context.Context, low, high, actor string, now time.Time) (models.FriendEdge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendEdge{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE friend_edges
        SET status = 'accepted', accepted_at = $4, updated_at = $4
        WHERE user_low = $1 AND user_high = $2
          AND status = 'pending'
          AND requested_by <> $3
          AND $3 IN (user_low, user_high)
        RETURNING `+edgeColumns+`
    `, low, high, actor, now)

	return scanEdge(row, "accept friend edge")
}

// Decline flips a pending edge to declined for either participant.
func (r *PostgresEdgeRepository) Decline(ctx context.Context, low, high, actor string, now time.Time) (models.FriendEdge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendEdge{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE friend_edges
        SET status = 'declined', updated_at = $4
        WHERE user_low = $1 AND user_high = $2
          AND status = 'pending'
          AND $3 IN (user_low, user_high)
        RETURNING `+edgeColumns+`
    `, low, high, actor, now)

	return scanEdge(row, "decline friend edge")
}

// Delete removes an accepted edge entirely; the pair becomes eligible
// for a fresh request cycle.
func (r *PostgresEdgeRepository) Delete(ctx context.Context, low, high, actor string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM friend_edges
        WHERE user_low = $1 AND user_high = $2
          AND status = 'accepted'
          AND $3 IN (user_low, user_high)
    `, low, high, actor)
	if err != nil {
		return fmt.Errorf("delete friend edge: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return friends.ErrNotFound
	}

	return nil
}

// Get loads the pair's edge as seen by the viewer.
func (r *PostgresEdgeRepository) Get(ctx context.Context, low, high, viewer string) (models.FriendEdge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendEdge{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+edgeColumns+`
        FROM friend_edges
        WHERE user_low = $1 AND user_high = $2
          AND $3 IN (user_low, user_high)
    `, low, high, viewer)

	return scanEdge(row, "select friend edge")
}

// ListByStatus returns every edge with the given status in which the
// user participates, most recently touched first.
func (r *PostgresEdgeRepository) ListByStatus(ctx context.Context, userID string, status models.EdgeStatus) ([]models.FriendEdge, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+edgeColumns+`
        FROM friend_edges
        WHERE status = $2 AND $1 IN (user_low, user_high)
        ORDER BY updated_at DESC
    `, userID, status)
	if err != nil {
		return nil, fmt.Errorf("query friend edges: %w", err)
	}
	defer rows.Close()

	var edges []models.FriendEdge
	for rows.Next() {
		edge, err := scanEdge(rows, "scan friend edge")
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend edges: %w", err)
	}

	return edges, nil
}

const friendJoin = `
        FROM friend_edges e
        JOIN users u ON u.id = CASE WHEN e.user_low = $1 THEN e.user_high ELSE e.user_low END
`

// ListFriends resolves the user's accepted edges to the opposite
// participants, newest friendships first.
func (r *PostgresEdgeRepository) ListFriends(ctx context.Context, userID string) ([]friends.Friend, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+friendSelectColumns+friendJoin+`
        WHERE e.status = 'accepted' AND $1 IN (e.user_low, e.user_high)
        ORDER BY e.accepted_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer rows.Close()

	return collectFriends(rows)
}

// SearchFriends narrows accepted edges by display name. The predicate
// ORs the match across both joined sides of the pair, so rows where
// only the subject's own name matches come back too; the service layer
// prunes those against the resolved other participant.
func (r *PostgresEdgeRepository) SearchFriends(ctx context.Context, userID, query string) ([]friends.Friend, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+friendSelectColumns+friendJoin+`
        JOIN users ul ON ul.id = e.user_low
        JOIN users uh ON uh.id = e.user_high
        WHERE e.status = 'accepted' AND $1 IN (e.user_low, e.user_high)
          AND (ul.display_name ILIKE '%' || $2 || '%' OR uh.display_name ILIKE '%' || $2 || '%')
        ORDER BY e.accepted_at DESC
    `, userID, query)
	if err != nil {
		return nil, fmt.Errorf("search friends: %w", err)
	}
	defer rows.Close()

	return collectFriends(rows)
}

const friendSelectColumns = `
        e.id, e.user_low, e.user_high, e.status, e.requested_by, e.accepted_at, e.created_at, e.updated_at,
        u.id, u.email, u.display_name, u.password_hash, u.avatar_url, u.created_at, u.updated_at
`

func collectFriends(rows pgx.Rows) ([]friends.Friend, error) {
	var out []friends.Friend
	for rows.Next() {
		var (
			f          friends.Friend
			acceptedAt sql.NullTime
		)
		if err := rows.Scan(
			&f.Edge.ID, &f.Edge.UserLow, &f.Edge.UserHigh, &f.Edge.Status, &f.Edge.RequestedBy, &acceptedAt, &f.Edge.CreatedAt, &f.Edge.UpdatedAt,
			&f.User.ID, &f.User.Email, &f.User.DisplayName, &f.User.Password, &f.User.AvatarURL, &f.User.CreatedAt, &f.User.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan friend row: %w", err)
		}
		if acceptedAt.Valid {
			t := acceptedAt.Time.UTC()
			f.Edge.AcceptedAt = &t
		}
		out = append(out, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend rows: %w", err)
	}

	return out, nil
}

func scanEdge(row pgx.Row, op string) (models.FriendEdge, error) {
	var (
		edge       models.FriendEdge
		acceptedAt sql.NullTime
	)
	if err := row.Scan(&edge.ID, &edge.UserLow, &edge.UserHigh, &edge.Status, &edge.RequestedBy, &acceptedAt, &edge.CreatedAt, &edge.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FriendEdge{}, friends.ErrNotFound
		}
		return models.FriendEdge{}, fmt.Errorf("%s: %w", op, err)
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time.UTC()
		edge.AcceptedAt = &t
	}
	return edge, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ friends.EdgeStore = (*PostgresEdgeRepository)(nil)
