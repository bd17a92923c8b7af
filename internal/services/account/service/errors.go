package service

import (
	apperrors "github.com/louisbranch/ledger/internal/platform/errors"
	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/command"
)

// rejectionCodes maps decider rejection codes to platform error codes.
var rejectionCodes = map[string]apperrors.Code{
	account.RejectionCodeAccountAlreadyExists: apperrors.CodeAccountAlreadyExists,
	account.RejectionCodeAccountNotFound:      apperrors.CodeAccountNotFound,
	account.RejectionCodeAccountDeleted:       apperrors.CodeAccountDeleted,
	account.RejectionCodeOwnerRequired:        apperrors.CodeInvalidArgument,
	account.RejectionCodeInvalidCurrency:      apperrors.CodeInvalidCurrency,
	account.RejectionCodeInvalidAmount:        apperrors.CodeInvalidAmount,
	account.RejectionCodeInsufficientBalance:  apperrors.CodeInsufficientBalance,
	command.RejectionCodePayloadDecodeFailed:  apperrors.CodeInvalidArgument,
}

// rejectionError converts the first rejection of a decision to a domain error.
func rejectionError(accountID string, rejections []command.Rejection) error {
	if len(rejections) == 0 {
		return apperrors.New(apperrors.CodeInternal, "command rejected without reason")
	}
	r := rejections[0]
	code, ok := rejectionCodes[r.Code]
	if !ok {
		code = apperrors.CodeInternal
	}
	return apperrors.WithMetadata(code, r.Message, map[string]string{
		"AccountID":     accountID,
		"RejectionCode": r.Code,
	})
}
