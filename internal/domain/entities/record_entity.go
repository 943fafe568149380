package entities

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"medical-record-exchange/internal/domain"
)

// UnresolvedID marks a record whose payload carried no identifier.
const UnresolvedID = "unknown"

// Defaults applied when a received payload leaves a field empty.
const (
	DefaultName   = "Unknown"
	DefaultGender = "Unknown"
	NotAvailable  = "N/A"
)

// LastVisitLayout is the date format used for lastVisit on locally created records.
const LastVisitLayout = "2006-01-02"

// Record is a patient's identifying and clinical data: the unit of exchange
// and of storage. Field order here is the wire order of the transfer payload.
type Record struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	Age         int    `json:"age" validate:"gte=0"`
	Gender      string `json:"gender" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	Address     string `json:"address" validate:"required"`
	LastVisit   string `json:"lastVisit" validate:"required"`
	Condition   string `json:"condition" validate:"required"`
	Medications string `json:"medications"`
	Treatments  string `json:"treatments"`
	Symptoms    string `json:"symptoms"`
	Notes       string `json:"notes"`
	FollowUp    string `json:"followUp"`
	Avatar      string `json:"avatar,omitempty"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate reports whether the record is complete: name, gender, phone,
// address, lastVisit and condition non-empty and age non-negative.
func (r Record) Validate() error {
	if err := recordValidator().Struct(r); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	return nil
}

// Complete is Validate as a predicate.
func (r Record) Complete() bool {
	return r.Validate() == nil
}

// Unresolved reports whether the record still carries the placeholder identifier.
func (r Record) Unresolved() bool {
	return r.ID == "" || r.ID == UnresolvedID
}
