package onboarding

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/souq/internal/shared"
)

// StepCount is the number of onboarding steps preceding submission.
const StepCount = 5

// BusinessStep is step 1.
type BusinessStep struct {
	LegalName          string `json:"legal_name" validate:"required,max=200"`
	RegistrationNumber string `json:"registration_number" validate:"required,max=100"`
}

// ContactStep is step 2.
type ContactStep struct {
	ContactName string `json:"contact_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,max=32"`
}

// AddressStep is step 3. Its country becomes the profile jurisdiction.
type AddressStep struct {
	Country     string `json:"country" validate:"required,max=100"`
	City        string `json:"city" validate:"required,max=100"`
	AddressLine string `json:"address_line" validate:"required,max=300"`
	PostalCode  string `json:"postal_code,omitempty" validate:"max=20"`
}

// ComplianceStep is step 4. Its flag becomes the profile's controlled_items.
type ComplianceStep struct {
	ControlledItems bool   `json:"controlled_items"`
	LicenseNumber   string `json:"license_number,omitempty" validate:"required_if=ControlledItems true,max=100"`
}

// PayoutStep is step 5.
type PayoutStep struct {
	BankName      string `json:"bank_name" validate:"required,max=200"`
	AccountHolder string `json:"account_holder" validate:"required,max=200"`
	IBAN          string `json:"iban" validate:"required,min=15,max=34,alphanum"`
}

// StepValidator decodes and validates one step payload at a time.
type StepValidator struct {
	validate *validator.Validate
}

// NewStepValidator constructs a StepValidator.
func NewStepValidator() *StepValidator {
	return &StepValidator{validate: validator.New()}
}

func newStep(step int) (any, error) {
	switch step {
	case 1:
		return &BusinessStep{}, nil
	case 2:
		return &ContactStep{}, nil
	case 3:
		return &AddressStep{}, nil
	case 4:
		return &ComplianceStep{}, nil
	case 5:
		return &PayoutStep{}, nil
	}
	return nil, fmt.Errorf("%w: step must be between 1 and %d", shared.ErrValidation, StepCount)
}

// Parse validates payload against the schema of step only and returns the
// decoded struct plus its canonical JSON encoding.
func (v *StepValidator) Parse(step int, payload json.RawMessage) (any, json.RawMessage, error) {
	target, err := newStep(step)
	if err != nil {
		return nil, nil, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil, fmt.Errorf("%w: step %d payload required", shared.ErrValidation, step)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, nil, fmt.Errorf("%w: step %d: %v", shared.ErrValidation, step, err)
	}
	if err := v.validate.Struct(target); err != nil {
		return nil, nil, fmt.Errorf("%w: step %d: %v", shared.ErrValidation, step, err)
	}
	canonical, err := json.Marshal(target)
	if err != nil {
		return nil, nil, err
	}
	return target, canonical, nil
}

// Complete reports the first step whose stored payload is missing or invalid.
func (v *StepValidator) Complete(steps map[int]json.RawMessage) error {
	for step := 1; step <= StepCount; step++ {
		raw, ok := steps[step]
		if !ok {
			return fmt.Errorf("%w: step %d not submitted", shared.ErrInvalidTransition, step)
		}
		if _, _, err := v.Parse(step, raw); err != nil {
			return fmt.Errorf("%w: step %d incomplete: %v", shared.ErrInvalidTransition, step, err)
		}
	}
	return nil
}

func applyStep(p *Profile, parsed any) {
	switch s := parsed.(type) {
	case *AddressStep:
		p.Country = s.Country
	case *ComplianceStep:
		p.ControlledItems = s.ControlledItems
	}
}
