package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/acpipe/internal/config"
	"firestige.xyz/acpipe/internal/protocol"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

type failingSink struct{ closed bool }

func (f *failingSink) Publish(context.Context, Event) error { return errors.New("sink down") }
func (f *failingSink) Close() error {
	f.closed = true
	return nil
}

func TestLogSinkDecodedReport(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := s.Publish(context.Background(), Event{
		Session: "s-1",
		PeerPID: 4242,
		Report:  protocol.ModuleChecksumFailure{ModuleBase: 0x1000, ModuleSize: 512},
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "report decoded", line["msg"])
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "module_checksum_failure", line["kind"])
	assert.Equal(t, "0x1000", line["module_base"])
	assert.EqualValues(t, 512, line["module_size"])
	assert.EqualValues(t, 10, line["report_code"])
	assert.EqualValues(t, 4242, line["peer_pid"])
}

func TestLogSinkRejectedReport(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := s.Publish(context.Background(), Event{
		Session: "s-1",
		Err:     &protocol.UnknownReportCodeError{Code: 99},
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "report rejected", line["msg"])
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "unknown_report_code", line["reason"])
}

func TestMultiContinuesPastFailingSink(t *testing.T) {
	var buf bytes.Buffer
	failing := &failingSink{}
	m := Multi{failing, NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))}

	err := m.Publish(context.Background(), Event{Report: protocol.OpenHandleFailure{ProcessID: 1}})
	assert.EqualError(t, err, "sink down")
	assert.Contains(t, buf.String(), "report decoded")

	require.NoError(t, m.Close())
	assert.True(t, failing.closed)
}

func TestKafkaSinkPublish(t *testing.T) {
	w := new(mockWriter)
	s := newKafkaSink(w, "reports")

	received := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "pattern_scan_failure" {
			return false
		}
		var rec map[string]any
		if err := json.Unmarshal(msgs[0].Value, &rec); err != nil {
			return false
		}
		report, ok := rec["report"].(map[string]any)
		return ok && rec["code"] == float64(40) && report["signature_id"] == float64(3) && msgs[0].Time.Equal(received)
	})).Return(nil).Once()

	err := s.Publish(context.Background(), Event{
		Session:  "s-2",
		Received: received,
		Report:   protocol.PatternScanFailure{SignatureID: 3, Address: 0xabc},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.reportedCount.Load())
	w.AssertExpectations(t)
}

func TestKafkaSinkSkipsErrors(t *testing.T) {
	w := new(mockWriter)
	s := newKafkaSink(w, "reports")

	require.NoError(t, s.Publish(context.Background(), Event{Err: errors.New("bad")}))
	w.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
}

func TestKafkaSinkWriteFailure(t *testing.T) {
	w := new(mockWriter)
	s := newKafkaSink(w, "reports")
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	err := s.Publish(context.Background(), Event{Report: protocol.OpenHandleFailure{ProcessID: 7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Equal(t, uint64(1), s.errorCount.Load())
}

func TestNewKafkaSinkValidation(t *testing.T) {
	_, err := NewKafkaSink(config.KafkaSinkConfig{Topic: "t"})
	assert.Error(t, err)

	_, err = NewKafkaSink(config.KafkaSinkConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	_, err = NewKafkaSink(config.KafkaSinkConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Compression: "zstd-ish"})
	assert.Error(t, err)
}
