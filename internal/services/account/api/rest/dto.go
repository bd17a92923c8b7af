package rest

import (
	"encoding/json"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/storage"
	"github.com/shopspring/decimal"
)

type createAccountRequest struct {
	CustomerID string `json:"customerId"`
	Currency   string `json:"currency"`
}

type updateStatusRequest struct {
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

type movementRequest struct {
	AccountID   string          `json:"accountId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type accountResponse struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	Balance    json.Number `json:"balance"`
	Currency   string      `json:"currency"`
	CustomerID string      `json:"customerId"`
	Creation   time.Time   `json:"creation"`
	LastUpdate time.Time   `json:"lastUpdate"`
}

type operationResponse struct {
	ID          string      `json:"id"`
	DateTime    time.Time   `json:"dateTime"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Amount      json.Number `json:"amount"`
	AccountID   string      `json:"accountId"`
}

type operationPageResponse struct {
	Page          int                 `json:"page"`
	Size          int                 `json:"size"`
	TotalElements int                 `json:"totalElements"`
	Operations    []operationResponse `json:"operations"`
}

func newAccountResponse(record storage.AccountRecord) accountResponse {
	return accountResponse{
		ID:         record.ID,
		Status:     string(record.Status),
		Balance:    json.Number(record.Balance.String()),
		Currency:   record.Currency,
		CustomerID: record.OwnerID,
		Creation:   record.CreatedAt,
		LastUpdate: record.UpdatedAt,
	}
}

func newOperationResponse(record storage.OperationRecord) operationResponse {
	return operationResponse{
		ID:          record.ID,
		DateTime:    record.OccurredAt,
		Description: record.Description,
		Type:        string(record.Type),
		Amount:      json.Number(record.Amount.String()),
		AccountID:   record.AccountID,
	}
}

func newOperationPageResponse(page storage.OperationPage) operationPageResponse {
	operations := make([]operationResponse, 0, len(page.Operations))
	for _, op := range page.Operations {
		operations = append(operations, newOperationResponse(op))
	}
	return operationPageResponse{
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		Operations:    operations,
	}
}
