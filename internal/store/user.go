package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
)

const userCols = "id, oidc_issuer, oidc_subject, email, name, picture, created_at"

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface {
	Scan(dest ...any) error
}) (*model.User, error) {
	var u model.User
	var id string
	var email, name, picture sql.NullString
	var createdAt string

	if err := scanner.Scan(&id, &u.OIDCIssuer, &u.OIDCSubject, &email, &name, &picture, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	if email.Valid {
		u.Email = &email.String
	}
	if name.Valid {
		u.Name = &name.String
	}
	if picture.Valid {
		u.Picture = &picture.String
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &u, nil
}

// GetOrCreate looks up a user by (issuer, subject), creating one on first
// login. This is the only mutation point in the OIDC identity contract;
// everything else about the session lives in the external middleware.
func (s *UserStore) GetOrCreate(u *model.User) (*model.User, error) {
	existing, err := s.byIssuerSubject(u.OIDCIssuer, u.OIDCSubject)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var email, name, picture any
	if u.Email != nil {
		email = *u.Email
	}
	if u.Name != nil {
		name = *u.Name
	}
	if u.Picture != nil {
		picture = *u.Picture
	}

	_, err = s.db.Exec(`INSERT INTO users (`+userCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.OIDCIssuer, u.OIDCSubject, email, name, picture, formatTime(u.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) byIssuerSubject(issuer, subject string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE oidc_issuer = ? AND oidc_subject = ?`, issuer, subject)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by issuer/subject: %w", err)
	}
	return u, nil
}

func (s *UserStore) Get(id uuid.UUID) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id.String())
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
