// Package alerts notifies downstream consumers when the hazard class moves
// between LOW, MEDIUM and HIGH.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"stazione/internal/monitor"
	"stazione/internal/types"
)

// EventLevelChanged is the event_type attribute of every message.
const EventLevelChanged = "risk.level_changed"

const defaultPublishTimeout = 3 * time.Second

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// LevelChange is the message body.
type LevelChange struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Previous    types.RiskLevel `json:"previous"`
	Current     types.RiskLevel `json:"current"`
	Probability float64         `json:"probability"`
	TickID      string          `json:"tick_id,omitempty"`
}

// LevelChangePublisher is a monitor.TickObserver that sends a LevelChange
// whenever a successful tick lands in a different class than the last one.
// The first observed point only establishes the baseline.
type LevelChangePublisher struct {
	client   SQSSender
	queueURL string
	timeout  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last types.RiskLevel
}

// NewLevelChangePublisher creates a publisher targeting queueURL.
func NewLevelChangePublisher(client SQSSender, queueURL string, logger *slog.Logger) *LevelChangePublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LevelChangePublisher{
		client:   client,
		queueURL: queueURL,
		timeout:  defaultPublishTimeout,
		logger:   logger,
	}
}

// ObserveTick implements monitor.TickObserver. Publish failures are logged;
// the baseline still advances so one failure does not repeat on every tick.
func (p *LevelChangePublisher) ObserveTick(ctx context.Context, result monitor.TickResult) {
	if result.Err != nil {
		return
	}
	current := result.Point.Class

	p.mu.Lock()
	previous := p.last
	p.last = current
	p.mu.Unlock()

	if previous == "" || previous == current {
		return
	}

	msg := LevelChange{
		ID:          uuid.New().String(),
		Timestamp:   result.Point.Timestamp,
		Previous:    previous,
		Current:     current,
		Probability: result.Point.Probability,
		TickID:      result.ID,
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.Publish(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish level change",
			"error", err,
			"previous", string(previous),
			"current", string(current),
		)
	}
}

// Publish sends one LevelChange to the queue.
func (p *LevelChangePublisher) Publish(ctx context.Context, msg LevelChange) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("alerts: failed to marshal level change: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventLevelChanged),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send level change to %s", p.queueURL), err)
	}

	p.logger.InfoContext(ctx, "level change published",
		"alert_id", msg.ID,
		"previous", string(msg.Previous),
		"current", string(msg.Current),
		"probability", msg.Probability,
	)
	return nil
}
