package game

import "errors"

// Validation rejections. They never leave state half-applied: callers check
// before mutating, and the API maps each one to a user-facing message.
var (
	ErrInsufficientGold  = errors.New("not enough gold")
	ErrInsufficientStock = errors.New("not enough stock")
	ErrOverweight        = errors.New("weight limit exceeded")
	ErrTradeForbidden    = errors.New("trade forbidden")
	ErrRestrictedCity    = errors.New("city refuses entry")
	ErrAlreadyThere      = errors.New("already in that city")
	ErrAlreadyTraveling  = errors.New("already traveling")
	ErrUnknownCity       = errors.New("unknown city")
	ErrUnknownGood       = errors.New("good not traded here")
	ErrUnknownItem       = errors.New("item not in inventory")
	ErrUnknownJob        = errors.New("unknown job")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInCombat          = errors.New("an encounter blocks the way")
	ErrNoEncounter       = errors.New("no active encounter")
	ErrTurnInFlight      = errors.New("a combat turn is already being resolved")
	ErrNotUsable         = errors.New("item cannot be used")
)

var rejections = []error{
	ErrInsufficientGold, ErrInsufficientStock, ErrOverweight, ErrTradeForbidden,
	ErrRestrictedCity, ErrAlreadyThere, ErrAlreadyTraveling, ErrUnknownCity,
	ErrUnknownGood, ErrUnknownItem, ErrUnknownJob, ErrInvalidQuantity,
	ErrInCombat, ErrNoEncounter, ErrTurnInFlight, ErrNotUsable,
}

// IsRejection reports whether err is a validation rejection rather than a
// synchronization or internal failure.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
