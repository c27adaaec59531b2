package lgpd

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"amparo.org/internal/auth"
	"amparo.org/internal/sealed"
)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu       sync.Mutex
	company  *Company
	requests map[string]*Request
	payloads map[string]string

	savePayloadErr error
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[string]*Request),
		payloads: make(map[string]string),
	}
}

func (s *memStore) CreateCompany(ctx context.Context, c *Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.company != nil {
		return ErrCompanyExists
	}
	copied := *c
	s.company = &copied
	return nil
}

func (s *memStore) ActiveCompany(ctx context.Context) (*Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.company == nil {
		return nil, ErrCompanyNotConfigured
	}
	copied := *s.company
	return &copied, nil
}

func (s *memStore) CreateRequest(ctx context.Context, r *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *r
	s.requests[r.ID] = &copied
	return nil
}

func (s *memStore) SavePayload(ctx context.Context, requestID, blob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.savePayloadErr != nil {
		return s.savePayloadErr
	}
	s.payloads[requestID] = blob
	return nil
}

func (s *memStore) UpdateStatus(ctx context.Context, requestID string, status Status, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.CompletedAt = completedAt
	return nil
}

func (s *memStore) ListByUser(ctx context.Context, userID string) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) ListAll(ctx context.Context) ([]TriageItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TriageItem
	for _, r := range s.requests {
		out = append(out, TriageItem{Request: *r, EncryptedBlob: s.payloads[r.ID]})
	}
	return out, nil
}

func (s *memStore) GetRequest(ctx context.Context, requestID string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func setupCompany(t *testing.T, store *memStore) *sealed.Keypair {
	t.Helper()
	kp, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	store.company = &Company{
		ID:        "company-1",
		Name:      "Acme Dados",
		PublicKey: kp.PublicKey,
		CreatedAt: time.Now().UTC(),
	}
	return kp
}

var testCaller = auth.Identity{
	UserID: "user-1",
	Email:  "titular@example.com",
	Role:   auth.RoleDataSubject,
}

func validSubmit() SubmitInput {
	return SubmitInput{
		Type:        "data_deletion",
		Reason:      "I want my records gone",
		Description: "Please remove everything associated with my account.",
		CPF:         "123.456.789-09",
	}
}

func TestSubmitSealsPayload(t *testing.T) {
	store := newMemStore()
	kp := setupCompany(t, store)
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	result, err := svc.Submit(context.Background(), testCaller, validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.Encrypted || result.RequestID == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.KeyFingerprint != sealed.Fingerprint(kp.PublicKey) {
		t.Fatalf("fingerprint mismatch: %q", result.KeyFingerprint)
	}

	record := store.requests[result.RequestID]
	if record.Status != StatusPending {
		t.Fatalf("status = %s, want PENDING", record.Status)
	}
	if record.Reason != "[ENCRYPTED]" || record.Description != "[ENCRYPTED]" {
		t.Fatalf("metadata leaked plaintext: %+v", record)
	}
	if record.CPFHash != HashCPF("123.456.789-09") {
		t.Fatal("cpf hash mismatch")
	}

	// Only the private key holder can read the sealed document.
	plaintext, err := sealed.Decrypt(store.payloads[result.RequestID], kp.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	var payload struct {
		Reason    string `json:"reason"`
		CPF       string `json:"cpf"`
		UserEmail string `json:"user_email"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		t.Fatalf("unmarshal sealed payload: %v", err)
	}
	if payload.Reason != "I want my records gone" || payload.CPF != "123.456.789-09" {
		t.Fatalf("sealed payload content mismatch: %+v", payload)
	}
	if payload.UserEmail != testCaller.Email || payload.RequestID != result.RequestID {
		t.Fatalf("sealed payload identity mismatch: %+v", payload)
	}
}

func TestSubmitValidation(t *testing.T) {
	store := newMemStore()
	setupCompany(t, store)
	svc, _ := NewService(store)

	cases := map[string]func(*SubmitInput){
		"unknown type": func(in *SubmitInput) { in.Type = "erasure" },
		"empty reason": func(in *SubmitInput) { in.Reason = "  " },
		"empty cpf":    func(in *SubmitInput) { in.CPF = "" },
		"bad cpf":      func(in *SubmitInput) { in.CPF = "12345678909" },
		"zero cpf":     func(in *SubmitInput) { in.CPF = "000.000.000-00" },
	}
	for name, mutate := range cases {
		in := validSubmit()
		mutate(&in)
		if _, err := svc.Submit(context.Background(), testCaller, in); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: got %v, want ErrValidation", name, err)
		}
	}
	if len(store.requests) != 0 {
		t.Fatal("rejected submissions must not create metadata records")
	}
}

func TestSubmitWithoutCompany(t *testing.T) {
	svc, _ := NewService(newMemStore())
	if _, err := svc.Submit(context.Background(), testCaller, validSubmit()); !errors.Is(err, ErrCompanyNotConfigured) {
		t.Fatalf("got %v, want ErrCompanyNotConfigured", err)
	}
}

func TestSubmitSealFailureCompensates(t *testing.T) {
	store := newMemStore()
	setupCompany(t, store)
	svc, err := NewService(store, WithSealFunc(func(plaintext []byte, recipientKey string) (string, error) {
		return "", errors.New("boom")
	}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.Submit(context.Background(), testCaller, validSubmit()); !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("got %v, want ErrCreateFailed", err)
	}
	if len(store.requests) != 1 {
		t.Fatalf("expected one compensated record, got %d", len(store.requests))
	}
	for _, r := range store.requests {
		if r.Status != StatusFailed {
			t.Fatalf("status = %s, want FAILED after seal failure", r.Status)
		}
	}
	if len(store.payloads) != 0 {
		t.Fatal("no blob may survive a seal failure")
	}
}

func TestSubmitPayloadSaveFailureCompensates(t *testing.T) {
	store := newMemStore()
	setupCompany(t, store)
	store.savePayloadErr = errors.New("disk full")
	svc, _ := NewService(store)

	if _, err := svc.Submit(context.Background(), testCaller, validSubmit()); !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("got %v, want ErrCreateFailed", err)
	}
	for _, r := range store.requests {
		if r.Status != StatusFailed {
			t.Fatalf("status = %s, want FAILED after blob persistence failure", r.Status)
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	store := newMemStore()
	setupCompany(t, store)
	fixed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc, _ := NewService(store, WithClock(func() time.Time { return fixed }))

	result, err := svc.Submit(context.Background(), testCaller, validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	updated, err := svc.UpdateStatus(context.Background(), result.RequestID, "processing")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != StatusProcessing || updated.CompletedAt != nil {
		t.Fatalf("unexpected record: %+v", updated)
	}

	updated, err = svc.UpdateStatus(context.Background(), result.RequestID, "COMPLETED")
	if err != nil {
		t.Fatalf("UpdateStatus completed: %v", err)
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(fixed) {
		t.Fatalf("COMPLETED must stamp the completion time, got %v", updated.CompletedAt)
	}

	if _, err := svc.UpdateStatus(context.Background(), result.RequestID, "DONE"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status: got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "missing-id", "FAILED"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing request: got %v", err)
	}
}

func TestTriageCarriesBlobs(t *testing.T) {
	store := newMemStore()
	setupCompany(t, store)
	svc, _ := NewService(store)

	result, err := svc.Submit(context.Background(), testCaller, validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	items, err := svc.Triage(context.Background())
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if len(items) != 1 || items[0].ID != result.RequestID || items[0].EncryptedBlob == "" {
		t.Fatalf("unexpected triage items: %+v", items)
	}
}

func TestSetupCompany(t *testing.T) {
	store := newMemStore()
	svc, _ := NewService(store)

	if _, err := svc.SetupCompany(context.Background(), "Acme", "not-a-key"); !errors.Is(err, ErrValidation) {
		t.Fatalf("invalid key: got %v", err)
	}
	if _, err := svc.SetupCompany(context.Background(), "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty input: got %v", err)
	}

	kp, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	company, err := svc.SetupCompany(context.Background(), "Acme Dados", kp.PublicKey)
	if err != nil {
		t.Fatalf("SetupCompany: %v", err)
	}
	if company.ID == "" || company.PublicKey != kp.PublicKey {
		t.Fatalf("unexpected company: %+v", company)
	}

	if _, err := svc.SetupCompany(context.Background(), "Second", kp.PublicKey); !errors.Is(err, ErrCompanyExists) {
		t.Fatalf("second setup: got %v", err)
	}
}
