package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"amparo.org/internal/ids"
)

var _ UserStore = (*PGUserStore)(nil)

// PGUserStore implements UserStore using PostgreSQL.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	var companyID any
	if u.CompanyID != "" {
		companyID = u.CompanyID
	}
	res, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, role, company_id, password_temporary)
		 values($1, lower($2), $3, $4, $5, $6)
		 on conflict (email) do nothing`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), companyID, u.PasswordTemporary,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PGUserStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, role, coalesce(company_id, ''), password_temporary, created_at, updated_at
		 from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, role, coalesce(company_id, ''), password_temporary, created_at, updated_at
		 from users where email=lower($1)`, strings.TrimSpace(email))
	return scanUser(row)
}

func (s *PGUserStore) UpdatePassword(ctx context.Context, userID, passwordHash string, temporary bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, password_temporary=$3, updated_at=now() where id=$1`,
		userID, passwordHash, temporary,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CompanyID, &u.PasswordTemporary, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}
