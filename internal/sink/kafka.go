package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"firestige.xyz/acpipe/internal/config"
	"firestige.xyz/acpipe/internal/protocol"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes decoded reports to a Kafka topic as JSON. Decode
// failures are left to the log sink.
type KafkaSink struct {
	writer messageWriter
	topic  string

	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

type kafkaRecord struct {
	Session  string          `json:"session"`
	PeerPID  uint32          `json:"peer_pid"`
	Received time.Time       `json:"received"`
	Code     uint32          `json:"code"`
	Kind     string          `json:"kind"`
	Report   protocol.Report `json:"report"`
}

// NewKafkaSink creates a Kafka sink from configuration.
func NewKafkaSink(cfg config.KafkaSinkConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink requires brokers")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink requires topic")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchTimeout := defaultBatchTimeout
	if cfg.BatchTimeout != "" {
		d, err := time.ParseDuration(cfg.BatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid batch_timeout: %w", err)
		}
		batchTimeout = d
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    batchSize,
		BatchTimeout: batchTimeout,
		MaxAttempts:  maxAttempts,
		Async:        false,
	}

	switch cfg.Compression {
	case "none", "":
		writerConfig.CompressionCodec = nil
	case "gzip":
		writerConfig.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		writerConfig.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		writerConfig.CompressionCodec = compress.Lz4.Codec()
	default:
		return nil, fmt.Errorf("invalid compression type: %s", cfg.Compression)
	}

	slog.Info("kafka sink started",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"batch_size", batchSize,
		"batch_timeout", batchTimeout,
		"compression", cfg.Compression,
	)

	return newKafkaSink(kafka.NewWriter(writerConfig), cfg.Topic), nil
}

func newKafkaSink(w messageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic}
}

// Publish sends a decoded report. Events carrying an error are skipped.
func (s *KafkaSink) Publish(ctx context.Context, ev Event) error {
	if ev.Err != nil || ev.Report == nil {
		return nil
	}

	kind := ev.Report.Code().String()
	value, err := json.Marshal(kafkaRecord{
		Session:  ev.Session,
		PeerPID:  ev.PeerPID,
		Received: ev.Received,
		Code:     uint32(ev.Report.Code()),
		Kind:     kind,
		Report:   ev.Report,
	})
	if err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("serialize report failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(kind),
		Value: value,
		Time:  ev.Received,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.errorCount.Add(1)
		return fmt.Errorf("kafka write to %s failed: %w", s.topic, err)
	}
	s.reportedCount.Add(1)
	return nil
}

// Close flushes pending messages.
func (s *KafkaSink) Close() error {
	err := s.writer.Close()
	slog.Info("kafka sink stopped",
		"total_reported", s.reportedCount.Load(),
		"total_errors", s.errorCount.Load(),
	)
	if err != nil {
		return fmt.Errorf("error closing kafka writer: %w", err)
	}
	return nil
}
