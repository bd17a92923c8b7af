package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/louisbranch/ledger/internal/platform/errors"
	"github.com/louisbranch/ledger/internal/services/account/domain/account"
)

const (
	defaultPage = 0
	defaultSize = 10
)

// Command routes answer with the affected account id.

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.commands.CreateAccount(r.Context(), req.CustomerID, req.Currency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.AccountID)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.commands.UpdateStatus(r.Context(), req.AccountID, account.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.AccountID)
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.commands.Credit(r.Context(), req.AccountID, req.Amount, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.AccountID)
}

func (s *Server) handleDebit(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.commands.Debit(r.Context(), req.AccountID, req.Amount, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.AccountID)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := s.commands.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.AccountID)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	record, err := s.queries.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(record))
}

func (s *Server) handleFindAccount(w http.ResponseWriter, r *http.Request) {
	record, err := s.queries.GetAccountByOwner(r.Context(), chi.URLParam(r, "ownerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(record))
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	record, err := s.queries.GetOperation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOperationResponse(record))
}

func (s *Server) handleFindOperations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := intParam(query.Get("page"), "page", defaultPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := intParam(query.Get("size"), "size", defaultSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.queries.ListOperations(r.Context(), query.Get("accountId"), page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOperationPageResponse(result))
}

func intParam(raw, name string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidArgument, name+" must be an integer", map[string]string{"parameter": name})
	}
	return value, nil
}
