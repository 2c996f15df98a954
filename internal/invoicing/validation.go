package invoicing

import (
	"fmt"
	"strings"

	"github.com/medistock/medistock/internal/shared"
)

func (s *Service) validate(input SettleInput) error {
	if !input.Kind.Valid() {
		return fmt.Errorf("%w: unknown invoice kind %q", shared.ErrInvalidInput, input.Kind)
	}
	if len(input.Items) == 0 {
		return fmt.Errorf("%w: Items array cannot be empty", shared.ErrInvalidInput)
	}
	for i, item := range input.Items {
		if item.MedicineID <= 0 {
			return fmt.Errorf("%w: items[%d].medicine_id must be a positive id", shared.ErrInvalidInput, i)
		}
		if item.Quantity == 0 {
			return fmt.Errorf("%w: items[%d].quantity must not be zero", shared.ErrInvalidInput, i)
		}
	}
	if input.SubTotal == nil {
		return fmt.Errorf("%w: Subtotal must be a valid number", shared.ErrInvalidInput)
	}
	if input.Discount == nil {
		return fmt.Errorf("%w: Total discount must be a valid number", shared.ErrInvalidInput)
	}
	if input.FinalTotal == nil {
		return fmt.Errorf("%w: Final bill must be a valid number", shared.ErrInvalidInput)
	}
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return err
	}
	if input.Status == StatusDue && strings.TrimSpace(input.CustomerContact) == "" {
		return fmt.Errorf("%w: customer contact is required for due sales", shared.ErrInvalidInput)
	}
	return nil
}
