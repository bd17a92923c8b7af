package aggregate

import (
	"fmt"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
)

// NewState returns the empty state every replay starts from.
func NewState() any {
	return account.State{}
}

// AssertState narrows replay state to T, accepting nil and pointer forms.
func AssertState[T any](state any) (T, error) {
	var zero T
	switch typed := state.(type) {
	case nil:
		return zero, nil
	case T:
		return typed, nil
	case *T:
		if typed == nil {
			return zero, nil
		}
		return *typed, nil
	default:
		return zero, fmt.Errorf("unsupported state type %T", state)
	}
}
