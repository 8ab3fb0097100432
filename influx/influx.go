package influx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/rdn-scraper/types"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

type Options struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// Sink writes batches to an InfluxDB v2 bucket with the blocking write API.
type Sink struct {
	logger *slog.Logger
	client influxdb2.Client
	writer api.WriteAPIBlocking
	org    string
	bucket string
}

func New(opts Options) *Sink {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	clientOpts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(timeout.Seconds())).
		SetPrecision(time.Second)

	client := influxdb2.NewClientWithOptions(opts.URL, opts.Token, clientOpts)
	return &Sink{
		logger: slog.Default().With(slog.String("module", "influx")),
		client: client,
		writer: client.WriteAPIBlocking(opts.Org, opts.Bucket),
		org:    opts.Org,
		bucket: opts.Bucket,
	}
}

// Ping checks that the server is up and answering.
func (s *Sink) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping influxdb: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb is not ready")
	}
	return nil
}

// EnsureBucket creates the bucket when the organization does not have it yet.
func (s *Sink) EnsureBucket(ctx context.Context) error {
	if _, err := s.client.BucketsAPI().FindBucketByName(ctx, s.bucket); err == nil {
		return nil
	}

	org, err := s.client.OrganizationsAPI().FindOrganizationByName(ctx, s.org)
	if err != nil {
		return fmt.Errorf("finding organization %s: %w", s.org, err)
	}
	if _, err := s.client.BucketsAPI().CreateBucketWithName(ctx, org, s.bucket); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("bucket created", slog.String("bucket", s.bucket), slog.String("org", s.org))
	return nil
}

func (s *Sink) Write(ctx context.Context, batch types.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	points := make([]*write.Point, 0, batch.Len())
	for _, p := range batch.Points {
		points = append(points, toPoint(p))
	}

	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing %d points to bucket %s: %w", len(points), s.bucket, err)
	}
	s.logger.Debug("points written", slog.String("batch", batch.Name), slog.Int("points", len(points)))
	return nil
}

func (s *Sink) Close() error {
	s.client.Close()
	return nil
}

func toPoint(p types.Point) *write.Point {
	return influxdb2.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time)
}
