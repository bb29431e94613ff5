package cmd

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"EyeTrackServer/config"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, time.Second, janitorInterval(0))
	assert.Equal(t, time.Second, janitorInterval(5*time.Second))
	assert.Equal(t, 30*time.Second, janitorInterval(5*time.Minute))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf)
	assert.Contains(t, buf.String(), "EyeTrackServer "+Version)
}

func TestRunServe_ExitsWhenHTTPPortIsTaken(t *testing.T) {
	taken, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer taken.Close()

	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = config.Default()
	cfg.Development = true
	cfg.HTTPPort = taken.Addr().(*net.TCPAddr).Port
	cfg.RPCPort = 0
	cfg.MetricsPort = 0

	c := &cobra.Command{}
	c.SetContext(context.Background())
	c.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() { done <- runServe(c, nil) }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after the HTTP server failed to bind")
	}
}
