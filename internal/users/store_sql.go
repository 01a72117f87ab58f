package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type User struct {
	ID                    string          `json:"id"`
	Email                 string          `json:"email"`
	IsAdmin               bool            `json:"is_admin"`
	Demographics          json.RawMessage `json:"demographics,omitempty"`
	DemographicsCompleted bool            `json:"demographics_completed"`
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// Create registers a new user with a bcrypt-hashed password. ErrEmailTaken
// on the email uniqueness constraint.
func (s *SQLStore) Create(ctx context.Context, email, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return User{}, err
	}
	u := User{ID: uuid.NewString(), Email: strings.ToLower(strings.TrimSpace(email))}
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, is_admin, created_at, updated_at)
		 VALUES ($1,$2,$3,FALSE,$4,$5)`,
		u.ID, u.Email, string(hash), now, now)
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *SQLStore) GetByEmail(ctx context.Context, email string) (User, error) {
	u, _, err := s.getByEmail(ctx, email)
	return u, err
}

// CheckPassword verifies credentials and returns the user on success.
func (s *SQLStore) CheckPassword(ctx context.Context, email, password string) (User, error) {
	u, hash, err := s.getByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrNotFound
	}
	return u, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *SQLStore) ChangePassword(ctx context.Context, email, current, next string) error {
	if _, err := s.CheckPassword(ctx, email, current); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), 12)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET password_hash=$1, updated_at=$2 WHERE email=$3`,
		string(hash), time.Now().Unix(), strings.ToLower(strings.TrimSpace(email)))
	return err
}

// SaveDemographics upserts the demographic payload onto the user row and
// marks the capture step complete.
func (s *SQLStore) SaveDemographics(ctx context.Context, userID string, payload json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET demographics_json=$1, demographics_completed=TRUE, updated_at=$2 WHERE id=$3`,
		string(payload), time.Now().Unix(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) getByEmail(ctx context.Context, email string) (User, string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, is_admin, demographics_json, demographics_completed
		   FROM users WHERE email=$1`, strings.ToLower(strings.TrimSpace(email)))
	var (
		u     User
		hash  string
		demog sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &hash, &u.IsAdmin, &demog, &u.DemographicsCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, "", ErrNotFound
		}
		return User{}, "", err
	}
	if demog.Valid {
		u.Demographics = json.RawMessage(demog.String)
	}
	return u, hash, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
