package approval

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/equitrader/config"
	terr "github.com/rustyeddy/equitrader/internal/errors"
	"github.com/rustyeddy/equitrader/journal"
	"github.com/rustyeddy/equitrader/notify"
	"github.com/rustyeddy/equitrader/signals"
)

const chatID = "4242"

// newTestCoordinator returns a coordinator whose signals expire window
// after creation instead of the configured 15 minutes.
func newTestCoordinator(t *testing.T, window time.Duration) (*Coordinator, *signals.Ledger, *notify.Memory) {
	t.Helper()

	store, err := journal.NewSQLite(filepath.Join(t.TempDir(), "approval.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	trading := config.Default().Trading
	shift := window - trading.ApprovalTimeout(false)
	now := func() time.Time { return time.Now().Add(shift) }

	sl := signals.NewLedger(store, trading, signals.Options{Now: now})
	ch := notify.NewMemory()
	c := NewCoordinator(ch, sl, Options{ChatID: chatID, PollInterval: 20 * time.Millisecond})
	return c, sl, ch
}

func createBuy(t *testing.T, sl *signals.Ledger, symbol string) journal.Signal {
	t.Helper()
	s, err := sl.Create(context.Background(), signals.NewSignal{
		Symbol: symbol, Action: journal.Buy, Price: 100, Quantity: 3, Reason: "Score: 80",
	})
	require.NoError(t, err)
	return s
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Response
		ok   bool
	}{
		{"Y", Approve, true},
		{" yes ", Approve, true},
		{"approve", Approve, true},
		{"n", Reject, true},
		{"NO", Reject, true},
		{"Reject", Reject, true},
		{"m", Modify, true},
		{"mod", Modify, true},
		{"MODIFY", Modify, true},
		{"maybe", "", false},
		{"", "", false},
		{"yes please", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseResponse(tt.in)
		assert.Equal(t, tt.ok, ok, "%q", tt.in)
		assert.Equal(t, tt.want, got, "%q", tt.in)
	}
}

func TestRequestApprovalApproves(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, time.Minute)
	sig := createBuy(t, sl, "AAPL")
	ch.OnSend = func(string) {
		ch.Reply("999", "Y") // a stranger, ignored
		ch.Reply(chatID, " yes ")
	}

	resp, err := c.RequestApproval(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, Approve, resp)

	got, err := sl.Get(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, journal.Approved, got.Status)
	assert.Equal(t, "Y", got.UserResponse)
	assert.NotNil(t, got.SMSSentAt)
	assert.NotNil(t, got.RespondedAt)

	sent := ch.Sent()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "*TRADE APPROVAL #"))
	assert.Contains(t, sent[0], "_Expires in 1 min_")
}

func TestRequestApprovalRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, time.Minute)
	sig := createBuy(t, sl, "MSFT")
	ch.OnSend = func(string) { ch.Reply(chatID, "n") }

	resp, err := c.RequestApproval(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, Reject, resp)

	got, err := sl.Get(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, journal.Rejected, got.Status)
	assert.Equal(t, "N", got.UserResponse)
}

func TestRequestApprovalIgnoresOldReplies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, 300*time.Millisecond)
	sig := createBuy(t, sl, "AAPL")
	ch.Reply(chatID, "Y") // arrived before the request

	resp, err := c.RequestApproval(ctx, sig)
	assert.Equal(t, Timeout, resp)
	assert.True(t, terr.Is(err, terr.ApprovalTimeout))

	got, err := sl.Get(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, journal.Expired, got.Status)
}

func TestRequestApprovalSkipsUnrecognized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, time.Minute)
	sig := createBuy(t, sl, "AAPL")
	ch.OnSend = func(string) {
		ch.Reply(chatID, "what is this?")
		ch.Reply(chatID, "N")
	}

	resp, err := c.RequestApproval(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, Reject, resp)
}

func TestRequestApprovalModifyLeavesPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, time.Minute)
	sig := createBuy(t, sl, "AAPL")
	ch.OnSend = func(string) { ch.Reply(chatID, "M") }

	resp, err := c.RequestApproval(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, Modify, resp)

	got, err := sl.Get(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, journal.Pending, got.Status)
}

func TestRequestApprovalAlreadyExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, -time.Second)
	sig := createBuy(t, sl, "AAPL")

	resp, err := c.RequestApproval(ctx, sig)
	assert.Equal(t, Timeout, resp)
	assert.True(t, terr.Is(err, terr.ApprovalTimeout))
	assert.Empty(t, ch.Sent())
}

func TestRequestApprovalSendFailureLeavesPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, time.Minute)
	sig := createBuy(t, sl, "AAPL")
	ch.SendErr = errors.New("network down")

	_, err := c.RequestApproval(ctx, sig)
	require.Error(t, err)

	got, err := sl.Get(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, journal.Pending, got.Status)
	assert.Nil(t, got.SMSSentAt)
}

func TestRequestApprovalNotPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, _ := newTestCoordinator(t, time.Minute)
	sig := createBuy(t, sl, "AAPL")
	_, err := sl.Reject(ctx, sig.ID, "N")
	require.NoError(t, err)

	_, err = c.RequestApproval(ctx, sig)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestProcessPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, time.Minute)
	first := createBuy(t, sl, "AAPL")
	second := createBuy(t, sl, "MSFT")

	replies := []string{"Y", "N"}
	ch.OnSend = func(string) {
		ch.Reply(chatID, replies[0])
		replies = replies[1:]
	}

	n, err := c.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Approved: 1, Rejected: 1}, n)

	a, err := sl.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, journal.Approved, a.Status)

	b, err := sl.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, journal.Rejected, b.Status)
}

func TestProcessPendingExpiresOverdue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, -time.Second)
	createBuy(t, sl, "AAPL")
	createBuy(t, sl, "MSFT")

	n, err := c.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n.Expired)
	assert.Empty(t, ch.Sent())

	pending, err := sl.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessPendingSkipsAlreadySent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c, sl, ch := newTestCoordinator(t, time.Minute)
	sig := createBuy(t, sl, "AAPL")
	require.NoError(t, sl.MarkSent(ctx, sig.ID))

	n, err := c.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, n)
	assert.Empty(t, ch.Sent())
}
