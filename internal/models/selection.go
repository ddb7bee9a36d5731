package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	// DefaultPaymentMethod is stored when a claim does not name one.
	DefaultPaymentMethod = "unspecified"

	// NumberPoolSize is the count of numbers in every raffle, 00 through 99.
	NumberPoolSize = 100
)

// Selection is one customer's claim on one raffle number.
// (raffle_id, number) is unique: a number is occupied until its row is deleted.
type Selection struct {
	bun.BaseModel `bun:"table:selections"`

	ID                  int64     `bun:"id,pk,autoincrement" json:"id"`
	RaffleID            int64     `bun:"raffle_id,notnull,unique:selections_raffle_number_key" json:"raffle_id"`
	Number              string    `bun:"number,notnull,unique:selections_raffle_number_key" json:"number"`
	CustomerName        string    `bun:"customer_name,notnull" json:"customer_name"`
	CustomerPhone       string    `bun:"customer_phone,notnull" json:"customer_phone"`
	SecretHash          string    `bun:"secret_hash,notnull" json:"-"`
	CreatedAt           time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	IsCanceled          bool      `bun:"is_canceled,notnull" json:"is_canceled"`
	PaymentMethod       string    `bun:"payment_method,notnull,default:'unspecified'" json:"payment_method"`
	PaymentContactName  string    `bun:"payment_contact_name,nullzero" json:"payment_contact_name,omitempty"`
	PaymentContactPhone string    `bun:"payment_contact_phone,nullzero" json:"payment_contact_phone,omitempty"`
}

// Status reports the lifecycle state of a live row.
func (s Selection) Status() SelectionStatus {
	if s.IsCanceled {
		return SelectionCanceled
	}
	return SelectionActive
}

type SelectionStatus string

const (
	SelectionAvailable SelectionStatus = "available"
	SelectionActive    SelectionStatus = "active"
	SelectionCanceled  SelectionStatus = "canceled"
)

// Occupancy counts live selections of a raffle.
type Occupancy struct {
	Active   int `json:"active"`
	Canceled int `json:"canceled"`
	Total    int `json:"total"`
}

// BoardCell is one number of the 00-99 board.
type BoardCell struct {
	Number       string          `json:"number"`
	Status       SelectionStatus `json:"status"`
	SelectionID  int64           `json:"selection_id,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
}

// CustomerGroup is the set of selections sharing one contact phone.
type CustomerGroup struct {
	CustomerPhone string      `json:"customer_phone"`
	CustomerName  string      `json:"customer_name"`
	Numbers       []string    `json:"numbers"`
	Selections    []Selection `json:"selections"`
}

// ---------------- REQUESTS ----------------

type ClaimRequest struct {
	RaffleID            int64    `json:"-"`
	Numbers             []string `json:"numbers"`
	CustomerName        string   `json:"customer_name"`
	CustomerPhone       string   `json:"customer_phone"`
	Secret              string   `json:"secret"`
	PaymentMethod       string   `json:"payment_method,omitempty"`
	PaymentContactName  string   `json:"payment_contact_name,omitempty"`
	PaymentContactPhone string   `json:"payment_contact_phone,omitempty"`
}

// ClaimResult splits a claim batch: numbers now owned, numbers already taken,
// and tokens that are not numbers 00-99.
type ClaimResult struct {
	Claimed  []Selection `json:"claimed"`
	Rejected []string    `json:"rejected"`
	Invalid  []string    `json:"invalid"`
}

// ClaimedNumbers returns the numbers of the claimed selections.
func (r *ClaimResult) ClaimedNumbers() []string {
	out := make([]string, 0, len(r.Claimed))
	for _, s := range r.Claimed {
		out = append(out, s.Number)
	}
	return out
}

type ReleaseRequest struct {
	RaffleID     int64   `json:"-"`
	SelectionIDs []int64 `json:"selection_ids"`
	Secret       string  `json:"secret"`
}

type CancelRequest struct {
	RaffleID         int64   `json:"-"`
	SelectionIDs     []int64 `json:"selection_ids"`
	RequesterIsAdmin bool    `json:"-"`
}

// PurgeRequest deletes selections without a secret. Admin only.
type PurgeRequest struct {
	RaffleID         int64   `json:"-"`
	SelectionIDs     []int64 `json:"selection_ids"`
	RequesterIsAdmin bool    `json:"-"`
}
