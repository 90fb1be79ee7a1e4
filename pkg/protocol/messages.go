package protocol

import "time"

// Account is a committed account row on a participant
type Account struct {
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// PrepareRequest is sent by the coordinator during the voting phase.
// AccountID is minted by the coordinator so every replica stores the same id;
// participants fall back to local allocation when it is empty.
type PrepareRequest struct {
	TransactionID  string  `json:"transaction_id"`
	AccountID      string  `json:"account_id,omitempty"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	InitialBalance float64 `json:"initial_balance"`
}

// PrepareResponse carries a participant's vote
type PrepareResponse struct {
	VoteCommit bool   `json:"vote_commit"`
	Reason     string `json:"reason,omitempty"`
}

// CommitRequest is sent by the coordinator in the decision phase
type CommitRequest struct {
	TransactionID string `json:"transaction_id"`
}

// AbortRequest is sent by the coordinator in the decision phase
type AbortRequest struct {
	TransactionID string `json:"transaction_id"`
}

// Ack is the participant's reply to a decision-phase request.
// Decision delivery never fails at the application level.
type Ack struct {
	Acked bool `json:"acked"`
}

// CreateAccountRequest is the client-facing request to the coordinator
type CreateAccountRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	InitialBalance float64 `json:"initial_balance"`
}

// CreateAccountResponse echoes the request on success, or carries the
// per-participant abort reasons on failure.
type CreateAccountResponse struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	AccountID     string    `json:"account_id,omitempty"`
	Name          string    `json:"name,omitempty"`
	Email         string    `json:"email,omitempty"`
	Balance       float64   `json:"balance,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// TxOutcomeResponse is served by the coordinator's outcome endpoint so that
// participants stuck in PREPARED can resolve a transaction.
type TxOutcomeResponse struct {
	TransactionID string   `json:"transaction_id"`
	Decision      Decision `json:"decision"`
	Known         bool     `json:"known"`
	Reason        string   `json:"reason,omitempty"`
}

// GetAccountResponse is returned by the participant read path
type GetAccountResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Account *Account `json:"account,omitempty"`
}

// ListAccountsResponse is returned by the participant read path
type ListAccountsResponse struct {
	Success  bool      `json:"success"`
	Accounts []Account `json:"accounts"`
}

// HealthResponse is returned by the health check endpoint
type HealthResponse struct {
	Status string `json:"status"`
	NodeID string `json:"node_id,omitempty"`
	Role   string `json:"role"`
}
