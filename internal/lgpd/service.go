package lgpd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"amparo.org/internal/auth"
	"amparo.org/internal/ids"
	"amparo.org/internal/obs"
	"amparo.org/internal/sealed"
)

// SealFunc seals a payload to a recipient public key. Overridable in tests
// to force encryption failure after metadata creation.
type SealFunc func(plaintext []byte, recipientKey string) (string, error)

// Service is the request submission orchestrator. It validates submissions,
// creates the metadata record, seals the sensitive fields to the company
// key, and compensates when sealing fails after the metadata row exists.
type Service struct {
	store Store
	seal  SealFunc
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithSealFunc overrides the sealing primitive (tests only).
func WithSealFunc(fn SealFunc) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.seal = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the orchestrator.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("lgpd: store is required")
	}
	svc := &Service{store: store, seal: sealed.Encrypt, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SubmitInput is the raw submission payload from an authenticated caller.
type SubmitInput struct {
	Type        string
	Reason      string
	Description string
	CPF         string
}

// SubmitResult is returned on a successful submission. KeyFingerprint lets
// the submitter audit the recipient key against their own record of it.
type SubmitResult struct {
	RequestID      string
	Encrypted      bool
	KeyFingerprint string
}

// Submit runs the submission state machine: validate, resolve company key,
// create metadata (PENDING), seal sensitive fields, persist the blob. When
// sealing or blob persistence fails after the metadata row exists, the row
// is transitioned to FAILED best-effort and the caller gets a creation
// failure, never a half-created PENDING success.
func (s *Service) Submit(ctx context.Context, caller auth.Identity, in SubmitInput) (SubmitResult, error) {
	requestType, ok := ParseRequestType(in.Type)
	if !ok {
		return SubmitResult{}, fmt.Errorf("%w: unknown request type %q", ErrValidation, in.Type)
	}
	reason := strings.TrimSpace(in.Reason)
	description := strings.TrimSpace(in.Description)
	cpf := strings.TrimSpace(in.CPF)
	if reason == "" || description == "" || cpf == "" {
		return SubmitResult{}, fmt.Errorf("%w: type, reason, description and cpf are required", ErrValidation)
	}
	if !ValidCPF(cpf) {
		return SubmitResult{}, fmt.Errorf("%w: cpf must match ddd.ddd.ddd-dd", ErrValidation)
	}

	company, err := s.store.ActiveCompany(ctx)
	if err != nil {
		if errors.Is(err, ErrCompanyNotConfigured) {
			obs.ObserveRequestCreated(string(requestType), "rejected")
			return SubmitResult{}, ErrCompanyNotConfigured
		}
		return SubmitResult{}, err
	}

	now := s.now().UTC()
	request := &Request{
		ID:          ids.New(),
		UserID:      caller.UserID,
		Type:        requestType,
		Status:      StatusPending,
		Reason:      redactedPlaceholder,
		Description: redactedPlaceholder,
		CPFHash:     HashCPF(cpf),
		CreatedAt:   now,
	}
	if err := s.store.CreateRequest(ctx, request); err != nil {
		obs.ObserveRequestCreated(string(requestType), "failed")
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	payload := sealedPayload{
		Reason:      reason,
		Description: description,
		CPF:         cpf,
		Type:        requestType,
		UserEmail:   caller.Email,
		Timestamp:   now,
		RequestID:   request.ID,
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		s.compensate(ctx, request.ID, requestType)
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	blob, err := s.seal(plaintext, company.PublicKey)
	if err != nil {
		s.compensate(ctx, request.ID, requestType)
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	if err := s.store.SavePayload(ctx, request.ID, blob); err != nil {
		s.compensate(ctx, request.ID, requestType)
		return SubmitResult{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	obs.ObserveRequestCreated(string(requestType), "created")
	obs.ObserveSealedPayload(len(blob))

	return SubmitResult{
		RequestID:      request.ID,
		Encrypted:      true,
		KeyFingerprint: sealed.Fingerprint(company.PublicKey),
	}, nil
}

// compensate marks an already-created metadata record FAILED. Best-effort:
// a failure here is logged and must not mask the error returned to the
// caller.
func (s *Service) compensate(ctx context.Context, requestID string, requestType RequestType) {
	obs.ObserveRequestCreated(string(requestType), "failed")
	if err := s.store.UpdateStatus(ctx, requestID, StatusFailed, nil); err != nil {
		obs.LogRequest(map[string]any{
			"ts":         s.now().UTC().Format(time.RFC3339Nano),
			"level":      "error",
			"msg":        "failed to mark request FAILED after seal error",
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

// ListMine returns the caller's own request metadata.
func (s *Service) ListMine(ctx context.Context, userID string) ([]Request, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.store.ListByUser(ctx, userID)
}

// Triage returns every request with its sealed blob for company reviewers.
func (s *Service) Triage(ctx context.Context) ([]TriageItem, error) {
	return s.store.ListAll(ctx)
}

// UpdateStatus applies a reviewer transition. COMPLETED stamps a completion
// time; any canonical status is accepted.
func (s *Service) UpdateStatus(ctx context.Context, requestID, rawStatus string) (*Request, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrValidation)
	}
	status, ok := ParseStatus(rawStatus)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, rawStatus)
	}
	var completedAt *time.Time
	if status == StatusCompleted {
		ts := s.now().UTC()
		completedAt = &ts
	}
	if err := s.store.UpdateStatus(ctx, requestID, status, completedAt); err != nil {
		return nil, err
	}
	return s.store.GetRequest(ctx, requestID)
}

// SetupCompany creates the single company record after validating the
// public key as a sealed-box recipient.
func (s *Service) SetupCompany(ctx context.Context, name, publicKey string) (*Company, error) {
	name = strings.TrimSpace(name)
	publicKey = strings.TrimSpace(publicKey)
	if name == "" || publicKey == "" {
		return nil, fmt.Errorf("%w: name and public_key are required", ErrValidation)
	}
	if err := sealed.ParsePublicKey(publicKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	company := &Company{
		ID:        ids.New(),
		Name:      name,
		PublicKey: publicKey,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateCompany(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// Company returns the configured company record.
func (s *Service) Company(ctx context.Context) (*Company, error) {
	return s.store.ActiveCompany(ctx)
}
