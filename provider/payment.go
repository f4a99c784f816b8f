package provider

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// PaymentStatus is a canonical, provider-agnostic payment status
type PaymentStatus string

const (
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
	StatusPending PaymentStatus = "pending"
)

// PaymentChannel is a unified payment channel exposed to callers
type PaymentChannel string

const (
	ChannelCard         PaymentChannel = "card"
	ChannelBankTransfer PaymentChannel = "bank_transfer"
	ChannelUSSD         PaymentChannel = "ussd"
	ChannelMobileMoney  PaymentChannel = "mobile_money"
	ChannelQRCode       PaymentChannel = "qr_code"
)

// MaxChargeAmount is the largest amount accepted on a single charge
const MaxChargeAmount = 999999999.99

// Customer represents the paying customer
type Customer struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Surname     string `json:"surname,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// ChargeRequest contains everything needed to initiate a payment.
// Build it with NewChargeRequest so the amount is rounded and the
// request is validated before any driver sees it.
type ChargeRequest struct {
	Reference      string           `json:"reference,omitempty"`
	Amount         float64          `json:"amount" validate:"required,gt=0,lte=999999999.99"`
	Currency       string           `json:"currency" validate:"required,len=3,alpha"`
	Email          string           `json:"email" validate:"required,email"`
	CallbackURL    string           `json:"callbackUrl,omitempty" validate:"omitempty,url"`
	Description    string           `json:"description,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	Customer       *Customer        `json:"customer,omitempty"`
	Channels       []PaymentChannel `json:"channels,omitempty"`
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
}

var requestValidator = validator.New()

// NewChargeRequest rounds the amount to two decimal places, validates the
// request and returns it. Any other invalid field is an error, never a
// silent correction.
func NewChargeRequest(req ChargeRequest) (ChargeRequest, error) {
	req.Amount = math.Round(req.Amount*100) / 100
	if err := req.Validate(); err != nil {
		return ChargeRequest{}, err
	}
	return req, nil
}

// Validate checks the request against field constraints
func (r ChargeRequest) Validate() error {
	if err := requestValidator.Struct(r); err != nil {
		return &InvalidRequestError{Err: err}
	}
	for _, ch := range r.Channels {
		switch ch {
		case ChannelCard, ChannelBankTransfer, ChannelUSSD, ChannelMobileMoney, ChannelQRCode:
		default:
			return &InvalidRequestError{Err: fmt.Errorf("unknown payment channel %q", ch)}
		}
	}
	return nil
}

// AmountMinor returns the amount in minor units (cents, kobo).
// Rounding is deterministic: round(amount*100).
func (r ChargeRequest) AmountMinor() int64 {
	return int64(math.Round(r.Amount * 100))
}

// ChargeResponse is the normalized result of a charge initiation
type ChargeResponse struct {
	Reference        string         `json:"reference"`
	AuthorizationURL string         `json:"authorizationUrl,omitempty"`
	AccessCode       string         `json:"accessCode,omitempty"`
	Status           string         `json:"status"` // provider-native, see StatusNormalizer
	Provider         string         `json:"provider"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// IsSuccessful reports whether the provider-native status normalizes to success
func (r *ChargeResponse) IsSuccessful(n *StatusNormalizer) bool {
	return n.Normalize(r.Status, r.Provider) == string(StatusSuccess)
}

// IsPending reports whether the provider-native status normalizes to pending
func (r *ChargeResponse) IsPending(n *StatusNormalizer) bool {
	return n.Normalize(r.Status, r.Provider) == string(StatusPending)
}

// VerificationResponse is the normalized result of a payment verification
type VerificationResponse struct {
	Reference string     `json:"reference"`
	Status    string     `json:"status"` // provider-native
	Amount    float64    `json:"amount"`
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
	Channel   string     `json:"channel,omitempty"`
	CardType  string     `json:"cardType,omitempty"`
	Bank      string     `json:"bank,omitempty"`
	Customer  *Customer  `json:"customer,omitempty"`
	Provider  string     `json:"provider"`
}

func (r *VerificationResponse) IsSuccessful(n *StatusNormalizer) bool {
	return n.Normalize(r.Status, r.Provider) == string(StatusSuccess)
}

func (r *VerificationResponse) IsFailed(n *StatusNormalizer) bool {
	return n.Normalize(r.Status, r.Provider) == string(StatusFailed)
}

func (r *VerificationResponse) IsPending(n *StatusNormalizer) bool {
	return n.Normalize(r.Status, r.Provider) == string(StatusPending)
}

// Transaction is the persisted record of a payment attempt
type Transaction struct {
	ID        int64          `json:"id,omitempty"`
	Reference string         `json:"reference"`
	Provider  string         `json:"provider"`
	Status    string         `json:"status"`
	Amount    float64        `json:"amount"`
	Currency  string         `json:"currency"`
	Email     string         `json:"email,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Customer  *Customer      `json:"customer,omitempty"`
	PaidAt    *time.Time     `json:"paidAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
