// Package pix is the mocked payment collaborator used for identity
// verification. It reproduces the request/response contract of a PIX
// provider (create a charge, poll its settlement) without any external
// network call: charges auto-confirm after a simulated settlement delay.
package pix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// verificationAmountCentavos is the symbolic charge used to prove control
// of the CPF's bank account.
const verificationAmountCentavos = 1

var ErrChargeNotFound = errors.New("pix: charge not found")

// ChargeStatus follows the provider vocabulary.
type ChargeStatus string

const (
	StatusActive    ChargeStatus = "ATIVA"
	StatusConfirmed ChargeStatus = "CONCLUIDA"
)

// Charge is the provider-side record of a verification payment.
type Charge struct {
	TxID             string       `json:"txid"`
	CopyPastePayload string       `json:"copy_paste_payload"`
	AmountCentavos   int          `json:"amount_centavos"`
	Status           ChargeStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Verifier simulates the PIX provider. Charges settle automatically once
// the configured delay elapses.
type Verifier struct {
	settleAfter time.Duration
	now         func() time.Time

	mu      sync.Mutex
	charges map[string]*Charge
}

// Option configures Verifier behavior.
type Option func(*Verifier)

// WithSettlementDelay overrides the simulated settlement delay.
func WithSettlementDelay(d time.Duration) Option {
	return func(v *Verifier) {
		if d >= 0 {
			v.settleAfter = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier constructs the mock provider with a 5 second settlement delay.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		settleAfter: 5 * time.Second,
		now:         time.Now,
		charges:     make(map[string]*Charge),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CreateCharge opens a verification charge keyed to the CPF's hash suffix.
// The copy-paste payload mimics the BR Code shape closely enough for a demo
// client to render.
func (v *Verifier) CreateCharge(ctx context.Context, cpfHash string) (*Charge, error) {
	if strings.TrimSpace(cpfHash) == "" {
		return nil, errors.New("pix: cpf hash is required")
	}
	txid := strings.ReplaceAll(uuid.NewString(), "-", "")
	charge := &Charge{
		TxID:             txid,
		CopyPastePayload: fmt.Sprintf("00020126580014br.gov.bcb.pix2536amparo.org/qr/%s5204000053039865802BR", txid),
		AmountCentavos:   verificationAmountCentavos,
		Status:           StatusActive,
		CreatedAt:        v.now().UTC(),
	}

	v.mu.Lock()
	v.charges[txid] = charge
	v.mu.Unlock()

	return charge, nil
}

// VerifyPayment reports the charge status, settling it when the simulated
// delay has elapsed.
func (v *Verifier) VerifyPayment(ctx context.Context, txid string) (*Charge, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	charge, ok := v.charges[txid]
	if !ok {
		return nil, ErrChargeNotFound
	}
	if charge.Status == StatusActive && v.now().Sub(charge.CreatedAt) >= v.settleAfter {
		charge.Status = StatusConfirmed
	}
	copied := *charge
	return &copied, nil
}
