// Package domain defines the core interfaces and types for the fraud
// risk scoring engine.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransaction marks boundary validation failures. Invalid input
// is rejected before scoring, never silently defaulted.
var ErrInvalidTransaction = errors.New("invalid transaction")

// TransactionData is the input to a fraud evaluation. It is immutable for
// the duration of a call; the engine never retains it.
type TransactionData struct {
	Amount       float64 `json:"amount"`
	CurrencyFrom string  `json:"currency_from"`
	CurrencyTo   string  `json:"currency_to"`
	Recipient    string  `json:"recipient"`
	Purpose      string  `json:"purpose"`

	// Optional fields. Absent values resolve to documented defaults
	// during feature extraction, never to an error.
	UserID            string `json:"user_id,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
	Timestamp         string `json:"timestamp,omitempty"` // ISO-8601
	IPAddress         string `json:"ip_address,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`

	// History holds prior transactions for the same user, oldest first.
	// May be empty.
	History []PriorTransaction `json:"previous_transactions,omitempty"`
}

// PriorTransaction is one entry of a user's transaction history.
type PriorTransaction struct {
	Amount     float64 `json:"amount"`
	CurrencyTo string  `json:"currency_to,omitempty"`
	Purpose    string  `json:"purpose,omitempty"`
	Timestamp  string  `json:"timestamp,omitempty"`
}

// Validate checks the mandatory fields. Optional fields are not inspected
// here; they default downstream.
func (t *TransactionData) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %v", ErrInvalidTransaction, t.Amount)
	}
	if strings.TrimSpace(t.CurrencyFrom) == "" {
		return fmt.Errorf("%w: currency_from is required", ErrInvalidTransaction)
	}
	if strings.TrimSpace(t.CurrencyTo) == "" {
		return fmt.Errorf("%w: currency_to is required", ErrInvalidTransaction)
	}
	return nil
}
