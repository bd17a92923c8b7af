package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/ledger/internal/platform/errors"
	"github.com/louisbranch/ledger/internal/platform/pagination"
	"github.com/louisbranch/ledger/internal/services/account/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service answers read-model queries.
type Service struct {
	Accounts   storage.AccountStore
	Operations storage.OperationStore
	// PageSize overrides the default page size bounds.
	PageSize pagination.PageSizeConfig
}

// NewService builds a query service over one projection store.
func NewService(store storage.ProjectionStore) *Service {
	return &Service{Accounts: store, Operations: store}
}

// GetAccount returns the account with id.
func (s *Service) GetAccount(ctx context.Context, id string) (storage.AccountRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.AccountRecord{}, apperrors.New(apperrors.CodeInvalidArgument, "account id is required")
	}
	record, err := s.Accounts.GetAccount(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.AccountRecord{}, apperrors.WithMetadata(apperrors.CodeAccountNotFound, "account not found", map[string]string{"AccountID": id})
	}
	if err != nil {
		return storage.AccountRecord{}, apperrors.Wrap(apperrors.CodeInternal, "get account", err)
	}
	return record, nil
}

// GetAccountByOwner returns the account held by ownerID.
func (s *Service) GetAccountByOwner(ctx context.Context, ownerID string) (storage.AccountRecord, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return storage.AccountRecord{}, apperrors.New(apperrors.CodeInvalidArgument, "owner id is required")
	}
	record, err := s.Accounts.GetAccountByOwner(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.AccountRecord{}, apperrors.WithMetadata(apperrors.CodeAccountNotFound, "account not found", map[string]string{"OwnerID": ownerID})
	}
	if err != nil {
		return storage.AccountRecord{}, apperrors.Wrap(apperrors.CodeInternal, "get account by owner", err)
	}
	return record, nil
}

// GetOperation returns the operation with id.
func (s *Service) GetOperation(ctx context.Context, id string) (storage.OperationRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.OperationRecord{}, apperrors.New(apperrors.CodeInvalidArgument, "operation id is required")
	}
	record, err := s.Operations.GetOperation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.OperationRecord{}, apperrors.WithMetadata(apperrors.CodeOperationNotFound, "operation not found", map[string]string{"OperationID": id})
	}
	if err != nil {
		return storage.OperationRecord{}, apperrors.Wrap(apperrors.CodeInternal, "get operation", err)
	}
	return record, nil
}

// ListOperations returns one zero-based page of an account's operations in
// occurrence order. An account without operations yields an empty page.
func (s *Service) ListOperations(ctx context.Context, accountID string, page, size int) (storage.OperationPage, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return storage.OperationPage{}, apperrors.New(apperrors.CodeInvalidArgument, "account id is required")
	}
	size = pagination.ClampPageSize(size, s.pageSizeConfig())
	offset, err := pagination.Offset(page, size)
	if err != nil {
		return storage.OperationPage{}, apperrors.Wrap(apperrors.CodeInvalidArgument, err.Error(), err)
	}
	operations, total, err := s.Operations.ListOperations(ctx, accountID, offset, size)
	if err != nil {
		return storage.OperationPage{}, apperrors.Wrap(apperrors.CodeInternal, fmt.Sprintf("list operations of %s", accountID), err)
	}
	if operations == nil {
		operations = []storage.OperationRecord{}
	}
	return storage.OperationPage{
		Page:          page,
		Size:          size,
		TotalElements: total,
		Operations:    operations,
	}, nil
}

func (s *Service) pageSizeConfig() pagination.PageSizeConfig {
	cfg := s.PageSize
	if cfg.Default <= 0 {
		cfg.Default = defaultPageSize
	}
	if cfg.Max <= 0 {
		cfg.Max = maxPageSize
	}
	return cfg
}
