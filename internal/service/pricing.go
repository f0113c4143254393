package service

import (
	"fmt"
	"math"

	"github.com/iliyamo/trip-reservation/internal/model"
)

// TotalPrice is the charge for partySize seats at unitPriceCents each.
func TotalPrice(unitPriceCents int64, partySize int) (int64, error) {
	if unitPriceCents < 0 {
		return 0, fmt.Errorf("%w: unit price must not be negative", model.ErrValidation)
	}
	if partySize <= 0 {
		return 0, fmt.Errorf("%w: party size must be positive", model.ErrValidation)
	}
	if unitPriceCents > math.MaxInt64/int64(partySize) {
		return 0, fmt.Errorf("%w: total price overflows", model.ErrValidation)
	}
	return unitPriceCents * int64(partySize), nil
}
