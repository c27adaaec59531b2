package lgpd

import (
	"context"
	"errors"
	"time"
)

var (
	ErrValidation           = errors.New("lgpd: invalid input")
	ErrNotFound             = errors.New("lgpd: not found")
	ErrCompanyExists        = errors.New("lgpd: company already configured")
	ErrCompanyNotConfigured = errors.New("lgpd: company setup required")
	ErrCreateFailed         = errors.New("lgpd: request creation failed")
)

// Store describes the persistence the orchestrator relies on. Single-row
// create/update operations are atomic; the orchestrator itself imposes the
// metadata-before-blob ordering.
type Store interface {
	// CreateCompany inserts the single company record; ErrCompanyExists
	// when one is already configured.
	CreateCompany(ctx context.Context, c *Company) error
	// ActiveCompany returns the configured company or
	// ErrCompanyNotConfigured.
	ActiveCompany(ctx context.Context) (*Company, error)

	// CreateRequest inserts the metadata record. It must be durable before
	// the sealed blob is attempted.
	CreateRequest(ctx context.Context, r *Request) error
	// SavePayload inserts the sealed blob, 1:1 with its request.
	SavePayload(ctx context.Context, requestID, blob string) error
	// UpdateStatus transitions a request; ErrNotFound when absent.
	UpdateStatus(ctx context.Context, requestID string, status Status, completedAt *time.Time) error

	// ListByUser returns metadata for the caller's own requests.
	ListByUser(ctx context.Context, userID string) ([]Request, error)
	// ListAll returns every request with its sealed blob for triage.
	ListAll(ctx context.Context) ([]TriageItem, error)
	// GetRequest returns a single metadata record.
	GetRequest(ctx context.Context, requestID string) (*Request, error)
}
