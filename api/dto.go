/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract. Monetary values
  travel as decimal strings so clients never see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/finvault/wallet-engine/account"
	"github.com/finvault/wallet-engine/ledger"
)

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// AUTH / USERS
// =============================================================================

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"` // already-uploaded URL
}

type UserDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

func userDTO(u account.User) UserDTO {
	return UserDTO{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}

// =============================================================================
// WALLETS
// =============================================================================

type WalletRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

type WalletDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Icon          string `json:"icon,omitempty"`
	Amount        string `json:"amount"`
	TotalIncome   string `json:"total_income"`
	TotalExpenses string `json:"total_expenses"`
	Created       string `json:"created"`
}

func walletDTO(w ledger.Wallet) WalletDTO {
	return WalletDTO{
		ID:            w.ID,
		Name:          w.Name,
		Icon:          w.Icon,
		Amount:        w.Amount.String(),
		TotalIncome:   w.TotalIncome.String(),
		TotalExpenses: w.TotalExpenses.String(),
		Created:       w.Created.Format(time.RFC3339),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionRequest struct {
	Type        string      `json:"type"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	Date        string      `json:"date,omitempty"` // RFC3339
	WalletID    string      `json:"wallet_id"`
	Image       string      `json:"image,omitempty"` // already-uploaded URL
}

type TransactionDTO struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Date        string `json:"date"`
	WalletID    string `json:"wallet_id"`
	Image       string `json:"image,omitempty"`
}

func transactionDTO(t ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      t.Amount.String(),
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date.Format(time.RFC3339),
		WalletID:    t.WalletID,
		Image:       t.Image,
	}
}

// =============================================================================
// STATS / UPLOADS
// =============================================================================

type BucketDTO struct {
	Label   string `json:"label"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
}

func bucketDTOs(buckets []ledger.Bucket) []BucketDTO {
	out := make([]BucketDTO, len(buckets))
	for i, b := range buckets {
		out[i] = BucketDTO{Label: b.Label, Income: b.Income.String(), Expense: b.Expense.String()}
	}
	return out
}

type UploadResponse struct {
	URL string `json:"url"`
}
