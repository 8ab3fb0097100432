package ping

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/icodeforyou/rdn-scraper/types"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	batches []types.Batch
	err     error
}

func (s *recordingSink) Write(_ context.Context, b types.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

var pingTime = time.Date(2025, time.November, 22, 12, 0, 30, 0, time.UTC)

func newTestPinger(sink types.Sink, probe ProbeFunc) *Pinger {
	p := New(Options{Target: "1.1.1.1", Count: 4, Size: 40, Timeout: 2 * time.Second}, sink)
	p.probe = probe
	p.now = func() time.Time { return pingTime }
	return p
}

func TestResultPoint(t *testing.T) {
	p := ResultPoint("1.1.1.1", Result{Sent: 4, Received: 3, AvgRtt: 12345 * time.Microsecond}, pingTime)

	require.Equal(t, "ping", p.Measurement)
	require.Equal(t, map[string]string{"target": "1.1.1.1"}, p.Tags)
	require.Equal(t, 12.345, p.Fields["rtt_ms"])
	require.Equal(t, 25.0, p.Fields["packet_loss_pct"])
	require.Equal(t, pingTime, p.Time)
}

func TestPacketLoss(t *testing.T) {
	require.Equal(t, 0.0, Result{Sent: 4, Received: 4}.PacketLoss())
	require.Equal(t, 100.0, Result{Sent: 4}.PacketLoss())
	require.Equal(t, 100.0, Result{}.PacketLoss())
}

func TestRunWritesResult(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPinger(sink, func(context.Context, Options) (Result, error) {
		return Result{Sent: 4, Received: 4, AvgRtt: 8 * time.Millisecond}, nil
	})

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, sink.batches, 1)
	require.Equal(t, "ping", sink.batches[0].Points[0].Measurement)
	require.Equal(t, 8.0, sink.batches[0].Points[0].Fields["rtt_ms"])
}

func TestRunWritesErrorPoint(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPinger(sink, func(context.Context, Options) (Result, error) {
		return Result{}, errors.New("network unreachable")
	})

	err := p.Run(context.Background())
	require.ErrorContains(t, err, "network unreachable")
	require.Len(t, sink.batches, 1)

	point := sink.batches[0].Points[0]
	require.Equal(t, "ping_error", point.Measurement)
	require.Equal(t, int64(1), point.Fields["error"])
	require.Equal(t, "network unreachable", point.Fields["msg"])
}

func TestRunIgnoresErrorPointWriteFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}
	p := newTestPinger(sink, func(context.Context, Options) (Result, error) {
		return Result{}, nil
	})

	err := p.Run(context.Background())
	require.ErrorContains(t, err, "no packets sent")
	require.NotContains(t, err.Error(), "sink down")
}

func TestRunResultWriteFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}
	p := newTestPinger(sink, func(context.Context, Options) (Result, error) {
		return Result{Sent: 4, Received: 4}, nil
	})

	require.ErrorContains(t, p.Run(context.Background()), "sink down")
}
