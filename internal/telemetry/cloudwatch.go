// Package telemetry publishes service metrics to CloudWatch. Datums are
// queued without blocking the caller and shipped in batches by Run.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"stazione/internal/monitor"
	"stazione/internal/types"
)

const (
	// maxBatch is the PutMetricData datum limit.
	maxBatch = 1000

	defaultQueueSize     = 4096
	defaultFlushInterval = 30 * time.Second
	finalFlushTimeout    = 5 * time.Second
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder collects API, scheduler and forecast metrics.
type Recorder struct {
	client        CloudWatchClient
	namespace     string
	flushInterval time.Duration
	logger        *slog.Logger
	clock         types.Clock

	queue   chan cwtypes.MetricDatum
	dropped atomic.Int64

	mu        sync.Mutex
	lastLevel types.RiskLevel
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithFlushInterval sets how often Run ships queued datums.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) { r.flushInterval = d }
}

// WithQueueSize bounds the number of datums waiting for a flush.
func WithQueueSize(n int) Option {
	return func(r *Recorder) { r.queue = make(chan cwtypes.MetricDatum, n) }
}

// WithClock overrides the datum timestamp source.
func WithClock(c types.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// NewRecorder creates a Recorder publishing under namespace. An empty
// namespace uses types.MetricNamespace.
func NewRecorder(client CloudWatchClient, namespace string, logger *slog.Logger, opts ...Option) *Recorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		client:        client,
		namespace:     namespace,
		flushInterval: defaultFlushInterval,
		logger:        logger,
		clock:         types.RealClock{},
		queue:         make(chan cwtypes.MetricDatum, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordRequest records API latency and count for one request.
func (r *Recorder) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dim(types.DimEndpoint, endpoint),
		dim(types.DimMethod, method),
		dim(types.DimStatus, status),
	}
	r.enqueue(types.MetricAPILatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims...)
	r.enqueue(types.MetricAPIRequestCount, 1, cwtypes.StandardUnitCount, dims...)
}

// ObserveTick records the outcome of a scheduler tick, the new hazard
// probability and, when the class moved, a level change.
func (r *Recorder) ObserveTick(_ context.Context, result monitor.TickResult) {
	if result.Err != nil {
		r.enqueue(types.MetricTickFailure, 1, cwtypes.StandardUnitCount)
		return
	}
	r.enqueue(types.MetricTickSuccess, 1, cwtypes.StandardUnitCount)

	level := result.Point.Class
	r.enqueue(types.MetricRiskProbability, result.Point.Probability, cwtypes.StandardUnitPercent,
		dim(types.DimRiskLevel, string(level)))

	r.mu.Lock()
	changed := r.lastLevel != "" && r.lastLevel != level
	r.lastLevel = level
	r.mu.Unlock()

	if changed {
		r.enqueue(types.MetricLevelChange, 1, cwtypes.StandardUnitCount, dim(types.DimRiskLevel, string(level)))
	}
}

// RecordForecastFallback counts forecast substitutions by reason.
func (r *Recorder) RecordForecastFallback(_ context.Context, reason string) {
	r.enqueue(types.MetricForecastFallback, 1, cwtypes.StandardUnitCount, dim(types.DimReason, reason))
}

// Dropped returns how many datums were discarded because the queue was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Run flushes queued datums every flush interval until ctx is done, then
// performs a final flush.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			defer cancel()
			r.Flush(flushCtx)
			return nil
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Flush ships everything currently queued. Failed batches are logged and
// discarded; metrics are best effort.
func (r *Recorder) Flush(ctx context.Context) {
	for {
		batch := r.drain(maxBatch)
		if len(batch) == 0 {
			return
		}
		input := &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(r.namespace),
			MetricData: batch,
		}
		if _, err := r.client.PutMetricData(ctx, input); err != nil {
			r.logger.ErrorContext(ctx, "failed to publish metrics",
				"error", err.Error(),
				"datums", len(batch),
			)
		}
		if len(batch) < maxBatch {
			return
		}
	}
}

func (r *Recorder) drain(limit int) []cwtypes.MetricDatum {
	var batch []cwtypes.MetricDatum
	for len(batch) < limit {
		select {
		case d := <-r.queue:
			batch = append(batch, d)
		default:
			return batch
		}
	}
	return batch
}

func (r *Recorder) enqueue(name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) {
	d := cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(r.clock.Now()),
		Dimensions: dims,
	}
	select {
	case r.queue <- d:
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("metric queue full, dropping datums", "metric", name)
		}
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// NopRecorder discards every metric. It is used when metrics are disabled.
type NopRecorder struct{}

func (NopRecorder) RecordRequest(string, string, string, time.Duration) {}
func (NopRecorder) ObserveTick(context.Context, monitor.TickResult)     {}
func (NopRecorder) RecordForecastFallback(context.Context, string)      {}

// Run blocks until ctx is done.
func (NopRecorder) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
