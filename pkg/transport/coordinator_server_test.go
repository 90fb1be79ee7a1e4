package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
)

// stubService answers like a coordinator without running the protocol
type stubService struct {
	outcomes map[string]protocol.Decision
}

func (s *stubService) CreateAccount(_ context.Context, req *protocol.CreateAccountRequest) *protocol.CreateAccountResponse {
	if req.Email == "taken@x" {
		return &protocol.CreateAccountResponse{
			Success: false,
			Message: "2PC abort: p1 -> email exists (committed)",
		}
	}
	return &protocol.CreateAccountResponse{
		Success:   true,
		Message:   "account created",
		AccountID: "1",
		Name:      req.Name,
		Email:     req.Email,
		Balance:   req.InitialBalance,
	}
}

func (s *stubService) Outcome(_ context.Context, txID string) *protocol.TxOutcomeResponse {
	if d, ok := s.outcomes[txID]; ok {
		return &protocol.TxOutcomeResponse{TransactionID: txID, Decision: d, Known: true}
	}
	return &protocol.TxOutcomeResponse{TransactionID: txID, Decision: protocol.DecisionUnknown}
}

func startCoordinatorServer(t *testing.T, svc AccountService) string {
	t.Helper()
	srv := httptest.NewServer(CoordinatorRouter(svc, DefaultWorkers))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestCreateAccountRoundTrip(t *testing.T) {
	addr := startCoordinatorServer(t, &stubService{})
	client := DefaultClient()

	resp, err := client.CreateAccount(context.Background(), addr, &protocol.CreateAccountRequest{
		Name:           "A",
		Email:          "a@x",
		InitialBalance: 100,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "a@x", resp.Email)
	assert.Equal(t, 100.0, resp.Balance)
}

func TestCreateAccountConflictStillDecodable(t *testing.T) {
	addr := startCoordinatorServer(t, &stubService{})

	// The abort outcome rides in the body under a conflict status.
	resp, err := DefaultClient().CreateAccount(context.Background(), addr, &protocol.CreateAccountRequest{
		Email: "taken@x",
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "email exists")
}

func TestTxOutcomeRoundTrip(t *testing.T) {
	addr := startCoordinatorServer(t, &stubService{
		outcomes: map[string]protocol.Decision{"tx-1": protocol.DecisionCommit},
	})
	client := DefaultClient()

	resp, err := client.TxOutcome(context.Background(), addr, "tx-1")
	require.NoError(t, err)
	assert.True(t, resp.Known)
	assert.Equal(t, protocol.DecisionCommit, resp.Decision)

	resp, err = client.TxOutcome(context.Background(), addr, "missing")
	require.NoError(t, err)
	assert.False(t, resp.Known)
	assert.Equal(t, protocol.DecisionUnknown, resp.Decision)
}
