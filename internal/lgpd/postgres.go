package lgpd

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"amparo.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateCompany(ctx context.Context, c *Company) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	// Single-tenant: the partial unique index on (active) rejects a second
	// row; "on conflict do nothing" turns that into ErrCompanyExists.
	res, err := s.db.ExecContext(ctx,
		`insert into companies(id, name, public_key, active)
		 values($1, $2, $3, true)
		 on conflict (active) where active do nothing`,
		c.ID, c.Name, c.PublicKey,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCompanyExists
	}
	return nil
}

func (s *PGStore) ActiveCompany(ctx context.Context) (*Company, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, public_key, created_at from companies where active limit 1`)
	var c Company
	if err := row.Scan(&c.ID, &c.Name, &c.PublicKey, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompanyNotConfigured
		}
		return nil, err
	}
	return &c, nil
}

func (s *PGStore) CreateRequest(ctx context.Context, r *Request) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into lgpd_requests(id, user_id, type, status, reason, description, cpf_hash, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.UserID, string(r.Type), string(r.Status), r.Reason, r.Description, r.CPFHash, r.CreatedAt,
	)
	return err
}

func (s *PGStore) SavePayload(ctx context.Context, requestID, blob string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into encrypted_payloads(request_id, encrypted_blob) values($1,$2)`,
		requestID, blob,
	)
	return err
}

func (s *PGStore) UpdateStatus(ctx context.Context, requestID string, status Status, completedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update lgpd_requests set status=$2, completed_at=$3 where id=$1`,
		requestID, string(status), completedAt,
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

func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, user_id, type, status, reason, description, cpf_hash, created_at, completed_at
		 from lgpd_requests where user_id=$1 order by created_at desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Request
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

func (s *PGStore) ListAll(ctx context.Context) ([]TriageItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.id, r.user_id, r.type, r.status, r.reason, r.description, r.cpf_hash, r.created_at, r.completed_at,
		        coalesce(p.encrypted_blob, '')
		 from lgpd_requests r
		 left join encrypted_payloads p on p.request_id = r.id
		 order by r.created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TriageItem
	for rows.Next() {
		var (
			item TriageItem
			typ  string
			st   string
		)
		err := rows.Scan(&item.ID, &item.UserID, &typ, &st, &item.Reason, &item.Description,
			&item.CPFHash, &item.CreatedAt, &item.CompletedAt, &item.EncryptedBlob)
		if err != nil {
			return nil, err
		}
		item.Type = RequestType(typ)
		item.Status = Status(st)
		result = append(result, item)
	}
	return result, rows.Err()
}

func (s *PGStore) GetRequest(ctx context.Context, requestID string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, type, status, reason, description, cpf_hash, created_at, completed_at
		 from lgpd_requests where id=$1`, requestID)
	r, err := scanRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func scanRequest(scan func(dest ...any) error) (*Request, error) {
	var (
		r   Request
		typ string
		st  string
	)
	err := scan(&r.ID, &r.UserID, &typ, &st, &r.Reason, &r.Description, &r.CPFHash, &r.CreatedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	r.Type = RequestType(typ)
	r.Status = Status(st)
	return &r, nil
}
