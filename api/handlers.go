/*
handlers.go - HTTP API handlers for the wallet ledger engine

PURPOSE:
  Exposes the reconciliation engine via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/register          Create account, returns session token
    POST   /api/auth/login             Returns session token

  Profile:
    GET    /api/me                     Current user
    PUT    /api/me                     Update name/profile image

  Wallets:
    GET    /api/wallets                List own wallets
    POST   /api/wallets                Create wallet (zeroed aggregates)
    GET    /api/wallets/{id}           Wallet with current aggregates
    PUT    /api/wallets/{id}           Update name/icon
    DELETE /api/wallets/{id}           Cascade-delete wallet + transactions
    GET    /api/wallets/{id}/transactions

  Transactions (all reconciled against wallet aggregates):
    GET    /api/transactions           List own transactions
    POST   /api/transactions           Create
    GET    /api/transactions/{id}      Get
    PUT    /api/transactions/{id}      Update (revert + reapply if financial)
    DELETE /api/transactions/{id}      Delete (reverses wallet effect)

  Stats:
    GET    /api/stats/{weekly,monthly,yearly}

  Media:
    POST   /api/upload                 Multipart upload, returns stable URL

ERROR HANDLING:
  Business-rule violations map to 4xx with the human-readable message the
  ledger produced; unexpected store faults map to 500. No raw panic or
  store error ever reaches a client.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finvault/wallet-engine/account"
	"github.com/finvault/wallet-engine/auth"
	"github.com/finvault/wallet-engine/docstore"
	"github.com/finvault/wallet-engine/ledger"
	"github.com/finvault/wallet-engine/media"
)

const maxUploadBytes = 10 << 20

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Accounts     *account.Service
	Auth         *auth.Issuer
	Wallets      *ledger.Wallets
	Transactions *ledger.Transactions
	Reconciler   *ledger.Reconciler
	Cascade      *ledger.Cascade
	Stats        *ledger.Stats
	Uploader     media.Uploader
}

// NewHandler wires the full handler dependency set from a store, an
// uploader, and a token issuer.
func NewHandler(store docstore.Store, uploader media.Uploader, issuer *auth.Issuer) *Handler {
	transactions := ledger.NewTransactions(store)
	return &Handler{
		Accounts:     account.NewService(store, uploader),
		Auth:         issuer,
		Wallets:      ledger.NewWallets(store),
		Transactions: transactions,
		Reconciler:   ledger.NewReconciler(store),
		Cascade:      ledger.NewCascade(store),
		Stats:        ledger.NewStats(transactions),
		Uploader:     uploader,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeDomainError(w, "Failed to register", err)
		return
	}

	token, err := h.Auth.Token(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue session", err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: userDTO(user)})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, "Failed to log in", err)
		return
	}

	token, err := h.Auth.Token(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue session", err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: userDTO(user)})
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	user, err := h.Accounts.Get(r.Context(), uid)
	if err != nil {
		writeDomainError(w, "Failed to load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, userDTO(user))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Accounts.UpdateProfile(r.Context(), uid, req.Name, media.File{URL: req.Image})
	if err != nil {
		writeDomainError(w, "Failed to update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, userDTO(user))
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	wallets, err := h.Wallets.ByOwner(r.Context(), uid)
	if err != nil {
		writeDomainError(w, "Failed to list wallets", err)
		return
	}

	dtos := make([]WalletDTO, len(wallets))
	for i, wallet := range wallets {
		dtos[i] = walletDTO(wallet)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())

	var req WalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Wallet name is required", nil)
		return
	}

	wallet, err := h.Wallets.Create(r.Context(), ledger.WalletDraft{Name: req.Name, Icon: req.Icon, UID: uid})
	if err != nil {
		writeDomainError(w, "Failed to create wallet", err)
		return
	}
	writeJSON(w, http.StatusCreated, walletDTO(wallet))
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.ownWallet(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, walletDTO(wallet))
}

func (h *Handler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.ownWallet(w, r)
	if !ok {
		return
	}

	var req WalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Wallets.UpdateDetails(r.Context(), wallet.ID, req.Name, req.Icon); err != nil {
		writeDomainError(w, "Failed to update wallet", err)
		return
	}

	updated, err := h.Wallets.Get(r.Context(), wallet.ID)
	if err != nil {
		writeDomainError(w, "Failed to load wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, walletDTO(updated))
}

func (h *Handler) DeleteWallet(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.ownWallet(w, r)
	if !ok {
		return
	}

	if err := h.Cascade.DeleteWallet(r.Context(), wallet.ID); err != nil {
		writeDomainError(w, "Failed to delete wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Wallet deleted successfully"})
}

func (h *Handler) ListWalletTransactions(w http.ResponseWriter, r *http.Request) {
	wallet, ok := h.ownWallet(w, r)
	if !ok {
		return
	}

	txs, err := h.Transactions.ByWallet(r.Context(), wallet.ID, 0)
	if err != nil {
		writeDomainError(w, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, transactionDTOs(txs))
}

// ownWallet loads the wallet in the URL and enforces ownership. Wallets of
// other users are indistinguishable from missing ones.
func (h *Handler) ownWallet(w http.ResponseWriter, r *http.Request) (ledger.Wallet, bool) {
	uid, _ := auth.UserID(r.Context())
	wallet, err := h.Wallets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil || wallet.UID != uid {
		if err == nil {
			err = ledger.ErrWalletNotFound
		}
		writeDomainError(w, "Failed to load wallet", err)
		return ledger.Wallet{}, false
	}
	return wallet, true
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())
	txs, err := h.Transactions.ByOwner(r.Context(), uid)
	if err != nil {
		writeDomainError(w, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, transactionDTOs(txs))
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserID(r.Context())

	draft, ok := h.parseDraft(w, r, uid)
	if !ok {
		return
	}
	if !h.ownDraftWallet(w, r, uid, draft.WalletID) {
		return
	}

	created, err := h.Reconciler.Create(r.Context(), draft)
	if err != nil {
		writeDomainError(w, "Failed to create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionDTO(created))
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.ownTransaction(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, transactionDTO(tx))
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.ownTransaction(w, r)
	if !ok {
		return
	}

	draft, ok := h.parseDraft(w, r, tx.UID)
	if !ok {
		return
	}
	if !h.ownDraftWallet(w, r, tx.UID, draft.WalletID) {
		return
	}

	updated, err := h.Reconciler.Update(r.Context(), tx.ID, draft)
	if err != nil {
		writeDomainError(w, "Failed to update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, transactionDTO(updated))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.ownTransaction(w, r)
	if !ok {
		return
	}

	if err := h.Reconciler.Delete(r.Context(), tx.ID); err != nil {
		writeDomainError(w, "Failed to delete transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted successfully"})
}

// ownDraftWallet enforces ownership of the wallet a transaction draft targets,
// so one user cannot post into or move transactions onto another user's
// wallet. Foreign wallets look missing, same as ownWallet. An empty id passes
// through so the reconciler's validation can report it as invalid input.
func (h *Handler) ownDraftWallet(w http.ResponseWriter, r *http.Request, uid, walletID string) bool {
	if walletID == "" {
		return true
	}
	wallet, err := h.Wallets.Get(r.Context(), walletID)
	if err != nil || wallet.UID != uid {
		if err == nil {
			err = ledger.ErrWalletNotFound
		}
		writeDomainError(w, "Failed to load wallet", err)
		return false
	}
	return true
}

func (h *Handler) ownTransaction(w http.ResponseWriter, r *http.Request) (ledger.Transaction, bool) {
	uid, _ := auth.UserID(r.Context())
	tx, err := h.Transactions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil || tx.UID != uid {
		if err == nil {
			err = ledger.ErrTransactionNotFound
		}
		writeDomainError(w, "Failed to load transaction", err)
		return ledger.Transaction{}, false
	}
	return tx, true
}

func (h *Handler) parseDraft(w http.ResponseWriter, r *http.Request, uid string) (ledger.TransactionDraft, bool) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return ledger.TransactionDraft{}, false
	}

	amount, err := ledger.ParseAmount(req.Amount.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return ledger.TransactionDraft{}, false
	}

	var date time.Time
	if req.Date != "" {
		date, err = time.Parse(time.RFC3339, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date, expected RFC3339", err)
			return ledger.TransactionDraft{}, false
		}
	}

	return ledger.TransactionDraft{
		Type:        ledger.TransactionType(req.Type),
		Amount:      amount,
		Description: req.Description,
		Category:    req.Category,
		Date:        date,
		WalletID:    req.WalletID,
		Image:       req.Image,
		UID:         uid,
	}, true
}

func transactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = transactionDTO(tx)
	}
	return dtos
}

// =============================================================================
// STATS HANDLERS
// =============================================================================

func (h *Handler) WeeklyStats(w http.ResponseWriter, r *http.Request) {
	h.stats(w, r, h.Stats.Weekly)
}

func (h *Handler) MonthlyStats(w http.ResponseWriter, r *http.Request) {
	h.stats(w, r, h.Stats.Monthly)
}

func (h *Handler) YearlyStats(w http.ResponseWriter, r *http.Request) {
	h.stats(w, r, h.Stats.Yearly)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, uid string) ([]ledger.Bucket, error)) {
	uid, _ := auth.UserID(r.Context())
	buckets, err := fn(r.Context(), uid)
	if err != nil {
		writeDomainError(w, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, bucketDTOs(buckets))
}

// =============================================================================
// MEDIA HANDLERS
// =============================================================================

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded", err)
		return
	}
	defer file.Close()

	// Read one byte past the limit so an oversize file is rejected rather
	// than silently truncated.
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file", err)
		return
	}
	if len(content) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the %d MB upload limit", maxUploadBytes>>20), nil)
		return
	}

	folder := r.FormValue("folder")
	if folder == "" {
		folder = "uploads"
	}

	url, err := h.Uploader.Upload(r.Context(), media.File{Name: header.Filename, Content: content}, folder)
	if err != nil {
		writeDomainError(w, "Failed to upload file", fmt.Errorf("%w: %v", ledger.ErrUploadFailed, err))
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{URL: url})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger/account errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case ledger.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrCannotDelete),
		errors.Is(err, account.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, account.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, ledger.ErrUploadFailed):
		status = http.StatusBadGateway
	}
	writeError(w, status, message, err)
}
