package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farbod-bigdeli/banking-2pc/pkg/participant"
	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
	"github.com/farbod-bigdeli/banking-2pc/pkg/store"
)

func startParticipantServer(t *testing.T) (*participant.Handler, string) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	h := participant.NewHandler("test-node", store.New(), log)

	srv := httptest.NewServer(ParticipantRouter("test-node", h, DefaultWorkers))
	t.Cleanup(srv.Close)

	return h, strings.TrimPrefix(srv.URL, "http://")
}

func TestPrepareRoundTrip(t *testing.T) {
	_, addr := startParticipantServer(t)
	client := DefaultClient()

	resp, err := client.Prepare(context.Background(), addr, &protocol.PrepareRequest{
		TransactionID:  "tx-1",
		AccountID:      "7",
		Name:           "A",
		Email:          "a@x",
		InitialBalance: 100,
	})
	require.NoError(t, err)
	assert.True(t, resp.VoteCommit)
	assert.Equal(t, "prepared", resp.Reason)

	// A retried prepare is answered idempotently.
	resp, err = client.Prepare(context.Background(), addr, &protocol.PrepareRequest{
		TransactionID: "tx-1",
		Email:         "a@x",
	})
	require.NoError(t, err)
	assert.True(t, resp.VoteCommit)
	assert.Equal(t, "already prepared", resp.Reason)
}

func TestCommitAndAbortRoundTrip(t *testing.T) {
	h, addr := startParticipantServer(t)
	client := DefaultClient()

	_, err := client.Prepare(context.Background(), addr, &protocol.PrepareRequest{
		TransactionID: "tx-1",
		Email:         "a@x",
	})
	require.NoError(t, err)

	ack, err := client.Commit(context.Background(), addr, &protocol.CommitRequest{TransactionID: "tx-1"})
	require.NoError(t, err)
	assert.True(t, ack.Acked)
	assert.Equal(t, 1, h.Store().CommittedCount())

	// Decision requests for unknown transactions still ack.
	ack, err = client.Abort(context.Background(), addr, &protocol.AbortRequest{TransactionID: "never-prepared"})
	require.NoError(t, err)
	assert.True(t, ack.Acked)
}

func TestAccountReadPath(t *testing.T) {
	h, addr := startParticipantServer(t)
	client := DefaultClient()

	_, err := client.Prepare(context.Background(), addr, &protocol.PrepareRequest{
		TransactionID:  "tx-1",
		AccountID:      "1",
		Name:           "alice",
		Email:          "alice@x",
		InitialBalance: 100,
	})
	require.NoError(t, err)
	h.Commit("tx-1")

	got, err := client.GetAccount(context.Background(), addr, "1")
	require.NoError(t, err)
	require.True(t, got.Success)
	assert.Equal(t, "alice@x", got.Account.Email)

	missing, err := client.GetAccount(context.Background(), addr, "999")
	require.NoError(t, err)
	assert.False(t, missing.Success)
	assert.Equal(t, "account not found", missing.Message)

	list, err := client.ListAccounts(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, list.Success)
	require.Len(t, list.Accounts, 1)
	assert.Equal(t, "1", list.Accounts[0].AccountID)
}

func TestHealthCheck(t *testing.T) {
	_, addr := startParticipantServer(t)

	resp, err := DefaultClient().HealthCheck(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Status)
	assert.Equal(t, "PARTICIPANT", resp.Role)
	assert.Equal(t, "test-node", resp.NodeID)
}

func TestClientDeadline(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer slow.Close()

	client := NewClient(50 * time.Millisecond)
	_, err := client.Prepare(context.Background(), strings.TrimPrefix(slow.URL, "http://"),
		&protocol.PrepareRequest{TransactionID: "tx-1"})
	assert.Error(t, err, "the per-call deadline must cut the request short")
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(nil)
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	_, err := DefaultClient().Prepare(context.Background(), addr,
		&protocol.PrepareRequest{TransactionID: "tx-1"})
	assert.Error(t, err)
}
