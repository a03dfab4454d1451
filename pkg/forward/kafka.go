// Package forward ships accepted records to external log pipelines.
package forward

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jingkaihe/enginelog/internal/errx"
	"github.com/jingkaihe/enginelog/pkg/logging"
)

// KafkaOptions configures a KafkaSink.
type KafkaOptions struct {
	Brokers []string
	Topic   string
	// Sync waits for the broker on every record. By default records are
	// batched in the background and failures are only logged.
	Sync bool
	// WriteTimeout bounds a synchronous write.
	WriteTimeout time.Duration
	// IncludeEphemeral forwards ephemeral records too.
	IncludeEphemeral bool
	Logger           *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink produces each record as one JSON message. Records sharing a
// URN (or stream ID) share a key and therefore a partition.
type KafkaSink struct {
	w                messageWriter
	timeout          time.Duration
	includeEphemeral bool
}

func NewKafkaSink(opts KafkaOptions) (*KafkaSink, error) {
	if len(opts.Brokers) == 0 || opts.Topic == "" {
		return nil, errx.With(ErrConfig, ": kafka needs brokers and a topic")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		Async:        !opts.Sync,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka delivery failed", "topic", opts.Topic, "messages", len(messages), "error", err)
			}
		},
	}
	return newKafkaSink(w, opts), nil
}

func newKafkaSink(w messageWriter, opts KafkaOptions) *KafkaSink {
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaSink{w: w, timeout: timeout, includeEphemeral: opts.IncludeEphemeral}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(event *logging.Event) error {
	if event.Ephemeral && !s.includeEphemeral {
		return nil
	}
	msg, err := KafkaMessage(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return errx.Wrap(ErrProduce, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}

// KafkaMessage encodes event. The key is the URN, else the stream ID,
// else the engine ID.
func KafkaMessage(event *logging.Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, errx.Wrap(ErrEncode, err)
	}
	return kafka.Message{
		Key:   []byte(messageKey(event)),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "severity", Value: []byte(event.Severity)},
			{Key: "engine_id", Value: []byte(event.EngineID)},
		},
	}, nil
}

func messageKey(event *logging.Event) string {
	switch {
	case event.URN != "":
		return event.URN
	case event.StreamID != 0:
		return "stream-" + strconv.FormatInt(event.StreamID, 10)
	default:
		return event.EngineID
	}
}
