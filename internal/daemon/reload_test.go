package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/acpipe/internal/config"
)

func TestDaemon_ReloadLogLevel(t *testing.T) {
	p := writeConfig(t, "info")

	d, err := New(p.config, p.pid)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	defer d.Stop()

	assert.Equal(t, "info", d.config.Log.Level)

	rewriteConfig(t, p, "debug")
	require.NoError(t, d.Reload())
	assert.Equal(t, "debug", d.config.Log.Level)
}

func TestDaemon_ReloadKeepsConfigOnError(t *testing.T) {
	p := writeConfig(t, "info")

	d, err := New(p.config, p.pid)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	defer d.Stop()

	rewriteConfig(t, p, "verbose")
	assert.Error(t, d.Reload())
	assert.Equal(t, "info", d.config.Log.Level)
}

func TestKafkaEqual(t *testing.T) {
	a := config.KafkaSinkConfig{Brokers: []string{"k1:9092"}, Topic: "t"}
	b := config.KafkaSinkConfig{Brokers: []string{"k1:9092"}, Topic: "t"}
	assert.True(t, kafkaEqual(a, b))

	b.Brokers = []string{"k2:9092"}
	assert.False(t, kafkaEqual(a, b))

	b.Brokers = a.Brokers
	b.Topic = "other"
	assert.False(t, kafkaEqual(a, b))
}
