package ping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/rdn-scraper/convert"
	"github.com/icodeforyou/rdn-scraper/types"
	probing "github.com/prometheus-community/pro-bing"
)

const (
	Measurement      = "ping"
	ErrorMeasurement = "ping_error"
)

type Options struct {
	Target     string
	Count      int
	Size       int
	Timeout    time.Duration // Per echo reply
	Privileged bool
}

// Result is the outcome of one probe round.
type Result struct {
	Sent     int
	Received int
	AvgRtt   time.Duration
}

// PacketLoss is the share of lost packets in percent.
func (r Result) PacketLoss() float64 {
	if r.Sent == 0 {
		return 100
	}
	return (1 - float64(r.Received)/float64(r.Sent)) * 100
}

type ProbeFunc func(ctx context.Context, opts Options) (Result, error)

// Pinger measures round trip time to a target and writes it to a sink.
type Pinger struct {
	logger *slog.Logger
	opts   Options
	sink   types.Sink
	probe  ProbeFunc
	now    func() time.Time
}

func New(opts Options, sink types.Sink) *Pinger {
	return &Pinger{
		logger: slog.Default().With(slog.String("module", "ping"), slog.String("target", opts.Target)),
		opts:   opts,
		sink:   sink,
		probe:  Probe,
		now:    time.Now,
	}
}

// Run does one probe round. A failed round is written as an error point,
// the write failure of that point is ignored.
func (p *Pinger) Run(ctx context.Context) error {
	res, err := p.probe(ctx, p.opts)
	if err == nil && res.Sent == 0 {
		err = errors.New("no packets sent")
	}
	if err != nil {
		p.logger.Warn("ping failed", slog.Any("error", err))
		batch := types.Batch{Name: ErrorMeasurement, Points: []types.Point{ErrorPoint(err, p.now())}}
		if werr := p.sink.Write(ctx, batch); werr != nil {
			p.logger.Debug("ping error point not written", slog.Any("error", werr))
		}
		return err
	}

	point := ResultPoint(p.opts.Target, res, p.now())
	p.logger.Debug("ping done", slog.Any("rtt_ms", point.Fields["rtt_ms"]), slog.Any("packet_loss_pct", point.Fields["packet_loss_pct"]))
	if err := p.sink.Write(ctx, types.Batch{Name: Measurement, Points: []types.Point{point}}); err != nil {
		return fmt.Errorf("writing ping point: %w", err)
	}
	return nil
}

func ResultPoint(target string, r Result, ts time.Time) types.Point {
	return types.Point{
		Measurement: Measurement,
		Tags:        map[string]string{"target": target},
		Fields: map[string]any{
			"rtt_ms":          convert.RoundFloat64(float64(r.AvgRtt)/float64(time.Millisecond), 3),
			"packet_loss_pct": convert.RoundFloat64(r.PacketLoss(), 2),
		},
		Time: ts,
	}
}

func ErrorPoint(err error, ts time.Time) types.Point {
	return types.Point{
		Measurement: ErrorMeasurement,
		Fields: map[string]any{
			"error": int64(1),
			"msg":   err.Error(),
		},
		Time: ts,
	}
}

// Probe sends ICMP echo requests with pro-bing.
func Probe(ctx context.Context, opts Options) (Result, error) {
	pinger, err := probing.NewPinger(opts.Target)
	if err != nil {
		return Result{}, fmt.Errorf("resolving %s: %w", opts.Target, err)
	}
	pinger.Count = opts.Count
	pinger.Size = opts.Size
	pinger.SetPrivileged(opts.Privileged)
	pinger.Timeout = time.Duration(opts.Count)*pinger.Interval + opts.Timeout

	if err := pinger.RunWithContext(ctx); err != nil {
		return Result{}, fmt.Errorf("pinging %s: %w", opts.Target, err)
	}

	stats := pinger.Statistics()
	return Result{
		Sent:     stats.PacketsSent,
		Received: stats.PacketsRecv,
		AvgRtt:   stats.AvgRtt,
	}, nil
}
