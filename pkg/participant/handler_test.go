package participant

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
	"github.com/farbod-bigdeli/banking-2pc/pkg/store"
)

func newTestHandler() *Handler {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewHandler("test-node", store.New(), log)
}

func prepareReq(txID, email string) *protocol.PrepareRequest {
	return &protocol.PrepareRequest{
		TransactionID:  txID,
		Name:           "user",
		Email:          email,
		InitialBalance: 100,
	}
}

func TestPrepareVotesCommit(t *testing.T) {
	h := newTestHandler()

	resp := h.Prepare(prepareReq("tx-1", "a@x"))
	assert.True(t, resp.VoteCommit)
	assert.True(t, h.Store().HasPending("tx-1"))
}

func TestPrepareRetryIsIdempotent(t *testing.T) {
	h := newTestHandler()

	first := h.Prepare(prepareReq("tx-1", "a@x"))
	require.True(t, first.VoteCommit)

	second := h.Prepare(prepareReq("tx-1", "a@x"))
	assert.True(t, second.VoteCommit)
	assert.Equal(t, ReasonAlreadyPrepared, second.Reason)
	assert.Equal(t, 1, h.Store().PendingCount(), "retry must not consume a new reservation")
}

func TestPrepareRejectsCommittedEmail(t *testing.T) {
	h := newTestHandler()

	require.True(t, h.Prepare(prepareReq("tx-1", "a@x")).VoteCommit)
	h.Commit("tx-1")

	resp := h.Prepare(prepareReq("tx-2", "a@x"))
	assert.False(t, resp.VoteCommit)
	assert.Equal(t, ReasonEmailCommitted, resp.Reason)
	assert.Equal(t, 0, h.Store().PendingCount())
}

func TestPrepareRejectsPendingEmail(t *testing.T) {
	h := newTestHandler()

	require.True(t, h.Prepare(prepareReq("tx-1", "dup@x")).VoteCommit)

	resp := h.Prepare(prepareReq("tx-2", "dup@x"))
	assert.False(t, resp.VoteCommit)
	assert.Equal(t, ReasonEmailPending, resp.Reason)
}

func TestCommitPromotesReservation(t *testing.T) {
	h := newTestHandler()

	require.True(t, h.Prepare(prepareReq("tx-1", "a@x")).VoteCommit)

	ack := h.Commit("tx-1")
	assert.True(t, ack.Acked)
	assert.False(t, h.Store().HasPending("tx-1"))
	assert.Equal(t, 1, h.Store().CommittedCount())

	// Duplicate commit leaves the store unchanged.
	assert.True(t, h.Commit("tx-1").Acked)
	assert.Equal(t, 1, h.Store().CommittedCount())
}

func TestCommitWithoutPrepareAcks(t *testing.T) {
	h := newTestHandler()

	ack := h.Commit("never-prepared")
	assert.True(t, ack.Acked)
	assert.Equal(t, 0, h.Store().CommittedCount())
	assert.Equal(t, 0, h.Store().PendingCount())
}

func TestAbortDiscardsReservation(t *testing.T) {
	h := newTestHandler()

	require.True(t, h.Prepare(prepareReq("tx-1", "a@x")).VoteCommit)

	assert.True(t, h.Abort("tx-1").Acked)
	assert.False(t, h.Store().HasPending("tx-1"))

	// Duplicate abort is a no-op ack.
	assert.True(t, h.Abort("tx-1").Acked)
}

func TestAbortWithoutPrepareAcks(t *testing.T) {
	h := newTestHandler()
	assert.True(t, h.Abort("never-prepared").Acked)
}

func TestLateAbortAfterCommitIgnored(t *testing.T) {
	h := newTestHandler()

	require.True(t, h.Prepare(prepareReq("tx-1", "a@x")).VoteCommit)
	h.Commit("tx-1")

	assert.True(t, h.Abort("tx-1").Acked)
	assert.Equal(t, 1, h.Store().CommittedCount(), "committed account survives a late abort")
}

func TestLateCommitAfterAbortIgnored(t *testing.T) {
	h := newTestHandler()

	require.True(t, h.Prepare(prepareReq("tx-1", "a@x")).VoteCommit)
	h.Abort("tx-1")

	assert.True(t, h.Commit("tx-1").Acked)
	assert.Equal(t, 0, h.Store().CommittedCount(), "aborted reservation must not resurface")
}

func TestConcurrentPreparesSameEmail(t *testing.T) {
	h := newTestHandler()

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)

	commits := make(chan string, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			txID := fmt.Sprintf("tx-%d", i)
			if h.Prepare(prepareReq(txID, "contended@x")).VoteCommit {
				commits <- txID
			}
		}(i)
	}
	wg.Wait()
	close(commits)

	var winners []string
	for tx := range commits {
		winners = append(winners, tx)
	}
	require.Len(t, winners, 1, "exactly one transaction may hold the email")
	assert.True(t, h.Store().HasPending(winners[0]))
	assert.Equal(t, 1, h.Store().PendingCount())
}
