package lgpd

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// RequestType is the canonical data-subject request classification.
type RequestType string

const (
	TypeAccess      RequestType = "ACCESS"
	TypeDeletion    RequestType = "DELETION"
	TypeCorrection  RequestType = "CORRECTION"
	TypePortability RequestType = "PORTABILITY"
)

// frontendTypes maps the labels the submission form sends to canonical
// types. An unmapped label is a validation error, never a silent default.
var frontendTypes = map[string]RequestType{
	"data_access":      TypeAccess,
	"data_deletion":    TypeDeletion,
	"data_correction":  TypeCorrection,
	"data_portability": TypePortability,
}

// ParseRequestType resolves a frontend label or an already-canonical value.
func ParseRequestType(raw string) (RequestType, bool) {
	normalized := strings.TrimSpace(strings.ToLower(raw))
	if t, ok := frontendTypes[normalized]; ok {
		return t, true
	}
	switch RequestType(strings.ToUpper(normalized)) {
	case TypeAccess, TypeDeletion, TypeCorrection, TypePortability:
		return RequestType(strings.ToUpper(normalized)), true
	}
	return "", false
}

// Status is the request lifecycle state. Terminal transitions are
// PENDING -> {PROCESSING -> {COMPLETED, FAILED}, FAILED}.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus validates a reviewer-supplied status value.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusProcessing:
		return StatusProcessing, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	}
	return "", false
}

// redactedPlaceholder stands in for reason/description in the metadata
// record; the true content exists only inside the sealed payload.
const redactedPlaceholder = "[ENCRYPTED]"

// cpfPattern is the ddd.ddd.ddd-dd shape the form produces.
var cpfPattern = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}-\d{2}$`)

// cpfZeroSentinel is reserved and invalid for identity verification.
const cpfZeroSentinel = "000.000.000-00"

// ValidCPF checks shape and rejects the all-zero sentinel.
func ValidCPF(cpf string) bool {
	cpf = strings.TrimSpace(cpf)
	return cpfPattern.MatchString(cpf) && cpf != cpfZeroSentinel
}

// HashCPF produces the one-way digest stored in request metadata. The raw
// CPF only ever appears inside the sealed payload.
func HashCPF(cpf string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(cpf)))
	return hex.EncodeToString(sum[:])
}

// Request is the unencrypted metadata record visible to company reviewers.
type Request struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Type        RequestType `json:"type"`
	Status      Status      `json:"status"`
	Reason      string      `json:"reason"`
	Description string      `json:"description"`
	CPFHash     string      `json:"cpf_hash"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Company is the single recipient of all sealed submissions.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
}

// TriageItem pairs request metadata with its sealed blob so the key holder
// can decrypt off-platform.
type TriageItem struct {
	Request
	EncryptedBlob string `json:"encrypted_blob,omitempty"`
}

// sealedPayload is the document encrypted under the company key. It carries
// everything a reviewer needs once decrypted with the off-platform key.
type sealedPayload struct {
	Reason      string      `json:"reason"`
	Description string      `json:"description"`
	CPF         string      `json:"cpf"`
	Type        RequestType `json:"type"`
	UserEmail   string      `json:"user_email"`
	Timestamp   time.Time   `json:"timestamp"`
	RequestID   string      `json:"request_id"`
}
