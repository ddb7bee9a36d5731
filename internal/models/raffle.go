package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// WinningNumbers is the ordered list of announced numbers, stored as a JSON array.
type WinningNumbers []string

// Value serializes the list, writing "[]" for an empty or nil list.
func (w WinningNumbers) Value() (driver.Value, error) {
	if len(w) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(w))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads the stored JSON. NULL and unreadable values become an empty list.
func (w *WinningNumbers) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = WinningNumbers{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported winning_numbers type %T", src)
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		*w = WinningNumbers{}
		return nil
	}
	*w = out
	return nil
}

type Raffle struct {
	bun.BaseModel `bun:"table:raffles"`

	ID                  int64          `bun:"id,pk,autoincrement" json:"id"`
	RaffleNumber        string         `bun:"raffle_number,unique,notnull" json:"raffle_number"`
	Name                string         `bun:"name,notnull" json:"name"`
	Price               float64        `bun:"price,notnull" json:"price"`
	Prize               string         `bun:"prize,notnull" json:"prize"`
	Detail              string         `bun:"detail,nullzero" json:"detail,omitempty"`
	DrawDate            time.Time      `bun:"draw_date,notnull" json:"draw_date"`
	DrawTime            string         `bun:"draw_time,nullzero" json:"draw_time,omitempty"`
	ImageFilename       string         `bun:"image_filename,nullzero" json:"image_filename,omitempty"`
	WinningNumbers      WinningNumbers `bun:"winning_numbers,type:text,notnull" json:"winning_numbers"`
	PaymentContactName  string         `bun:"payment_contact_name,nullzero" json:"payment_contact_name,omitempty"`
	PaymentContactPhone string         `bun:"payment_contact_phone,nullzero" json:"payment_contact_phone,omitempty"`
	CreatedAt           time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// RaffleSummary is a raffle plus its live occupancy, as shown in listings.
type RaffleSummary struct {
	Raffle
	Occupancy Occupancy `json:"occupancy"`
}

// RaffleInput is the editable part of a raffle as sent by administrators.
type RaffleInput struct {
	RaffleNumber        string  `json:"raffle_number"`
	Name                string  `json:"name"`
	Price               float64 `json:"price"`
	Prize               string  `json:"prize"`
	Detail              string  `json:"detail"`
	DrawDate            string  `json:"draw_date"` // YYYY-MM-DD
	DrawTime            string  `json:"draw_time"` // HH:MM, optional
	ImageFilename       string  `json:"image_filename"`
	PaymentContactName  string  `json:"payment_contact_name"`
	PaymentContactPhone string  `json:"payment_contact_phone"`
}
