package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"breachpw/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTags(t *testing.T) {
	t.Parallel()

	assert.Nil(t, tags(nil))
	assert.Nil(t, tags(metrics.Labels{"job": "wordlist"}))
	assert.Equal(t,
		[]string{"stage:load", "status:success"},
		tags(metrics.Labels{"status": "success", "job": "wordlist", "stage": "load"}),
	)
}

func TestMetricName(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		metrics.RecordsTotal:         "records.total",
		metrics.StageDurationSeconds: "stage.duration.seconds",
		metrics.WordlistPasswords:    "wordlist.passwords",
		"custom_metric":              "custom.metric",
	} {
		assert.Equal(t, want, metricName(in), in)
	}
}

func TestGlobalTags(t *testing.T) {
	t.Parallel()

	assert.Nil(t, globalTags(Config{}))
	assert.Equal(t, []string{"job:wordlist", "storage:postgres"}, globalTags(Config{Job: "wordlist", Storage: "postgres"}))
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	b, err := NewBackend(Config{})
	require.Error(t, err)
	assert.Nil(t, b)
}

// readLine collects packets until one starts with prefix.
func readLine(t *testing.T, conn net.PacketConn, prefix string) string {
	t.Helper()

	// The client may also emit its own telemetry.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFrom(buf)
		require.NoError(t, err)
		for _, l := range strings.Split(string(buf[:n]), "\n") {
			if strings.HasPrefix(l, prefix) {
				return l
			}
		}
	}
}

func TestBackend_SendsCounter(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Job: "wordlist"})
	require.NoError(t, err)

	b.IncCounter(metrics.RecordsTotal, 7, metrics.Labels{"job": "wordlist", "stage": "load", "kind": "inserted"})
	require.NoError(t, b.Flush())

	line := readLine(t, conn, "breachpw.records.total:")
	assert.Contains(t, line, ":7|c")
	assert.Contains(t, line, "kind:inserted")
	assert.Contains(t, line, "stage:load")
	assert.Equal(t, 1, strings.Count(line, "job:wordlist"))
}

func TestBackend_SendsGauge(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Namespace: "bpw."})
	require.NoError(t, err)

	b.SetGauge(metrics.WordlistPasswords, 42, metrics.Labels{"kind": "distinct"})
	require.NoError(t, b.Flush())

	line := readLine(t, conn, "bpw.wordlist.passwords:")
	assert.Contains(t, line, ":42|g")
	assert.Contains(t, line, "kind:distinct")
}

func TestNilClientIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	b.SetGauge("x", 1, nil)
	assert.NoError(t, b.Flush())
}
