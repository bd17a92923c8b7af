package projection

import (
	apperrors "github.com/louisbranch/ledger/internal/platform/errors"
)

var (
	// ErrAccountNotFound indicates an event targeted an account row that is not
	// projected yet. Redelivery after the created event lands can succeed.
	ErrAccountNotFound = apperrors.New(apperrors.CodeAccountNotFound, "account not found")
	// ErrAccountNotActivated indicates a balance movement on an account that is
	// not ACTIVATED.
	ErrAccountNotActivated = apperrors.New(apperrors.CodeAccountNotActivated, "account is not activated")
	// ErrOwnerAlreadyHasAccount indicates a second account for the same owner.
	ErrOwnerAlreadyHasAccount = apperrors.New(apperrors.CodeOwnerAlreadyHasAccount, "owner already has an account")
)
