package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/sealedml/mpc/transport"
	"github.com/ezoic/sealedml/mpc/transport/mocknet"
)

func TestCounting_TracksTraffic(t *testing.T) {
	ctx := context.Background()
	net := mocknet.NewMockNetwork(2)
	a := transport.NewCounting(net[0])
	b := transport.NewCounting(net[1])

	require.NoError(t, a.MessageSend(ctx, 1, []byte("hello")))
	require.NoError(t, a.MessageSend(ctx, 1, []byte("!")))

	msgs, err := b.MessagesReceive(ctx, []int{0})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msgs[0]))
	_, err = b.MessageReceive(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, transport.Stats{BytesSent: 6, MessagesSent: 2}, a.Stats())
	assert.Equal(t, transport.Stats{BytesReceived: 6, MessagesRecv: 2}, b.Stats())
}

func TestShaped_AddsLatency(t *testing.T) {
	ctx := context.Background()
	net := mocknet.NewMockNetwork(2)
	a := transport.NewShaped(net[0], transport.LinkProfile{Latency: 20 * time.Millisecond})

	start := time.Now()
	require.NoError(t, a.MessageSend(ctx, 1, []byte{1}))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	buf, err := net[1].MessageReceive(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, buf)
}

func TestShaped_LimitsBandwidth(t *testing.T) {
	ctx := context.Background()
	net := mocknet.NewMockNetwork(2)
	// 8 Mbit/s = 1 MB/s; burst is 64 KiB so 192 KiB needs ~128ms of refill
	a := transport.NewShaped(net[0], transport.LinkProfile{BandwidthMbps: 8})

	start := time.Now()
	require.NoError(t, a.MessageSend(ctx, 1, make([]byte, 192*1024)))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestShaped_ContextCancel(t *testing.T) {
	net := mocknet.NewMockNetwork(2)
	a := transport.NewShaped(net[0], transport.LinkProfile{Latency: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := a.MessageSend(ctx, 1, []byte{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLinkProfile_Enabled(t *testing.T) {
	assert.False(t, transport.LinkProfile{}.Enabled())
	assert.True(t, transport.LinkProfile{BandwidthMbps: 300}.Enabled())
	assert.True(t, transport.LinkProfile{Latency: time.Millisecond}.Enabled())
}
