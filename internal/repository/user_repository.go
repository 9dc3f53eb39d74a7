package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/polyshare/polyshare-api/internal/models"
)

// UserRepository provides database access for user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address. Emails are stored lowercase.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, username, role, karma_points, university_id, created_at, updated_at FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, username, role, karma_points, university_id, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindProfileByID returns a user joined with the university name.
func (r *UserRepository) FindProfileByID(ctx context.Context, id string) (*models.UserProfile, error) {
	const query = `SELECT u.id, u.email, u.password_hash, u.username, u.role, u.karma_points, u.university_id, u.created_at, u.updated_at,
        un.name AS university_name
        FROM users u
        LEFT JOIN universities un ON un.id = u.university_id
        WHERE u.id = $1 LIMIT 1`
	var profile models.UserProfile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user profile: %w", err)
	}
	return &profile, nil
}

// ExistsByEmail checks if an account with the given email already exists.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT 1 FROM users WHERE email = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, strings.ToLower(email)); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// Create inserts a new user account.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(user.Email)
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, username, role, karma_points, university_id, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :username, :role, :karma_points, :university_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// KarmaPoints returns the current karma balance for a user.
func (r *UserRepository) KarmaPoints(ctx context.Context, id string) (int, error) {
	const query = `SELECT karma_points FROM users WHERE id = $1 LIMIT 1`
	var karma int
	if err := r.db.GetContext(ctx, &karma, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("read karma points: %w", err)
	}
	return karma, nil
}

// KarmaStandings returns users ordered by karma for report exports.
func (r *UserRepository) KarmaStandings(ctx context.Context, limit int) ([]models.KarmaStanding, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT u.username, u.email, u.karma_points, COUNT(d.id) AS document_count
        FROM users u
        LEFT JOIN documents d ON d.uploaded_by = u.id
        GROUP BY u.id, u.username, u.email, u.karma_points
        ORDER BY u.karma_points DESC, u.username ASC
        LIMIT %d`, limit)
	var standings []models.KarmaStanding
	if err := r.db.SelectContext(ctx, &standings, query); err != nil {
		return nil, fmt.Errorf("list karma standings: %w", err)
	}
	return standings, nil
}
