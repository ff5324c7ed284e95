package fileserve

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.acmi")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestListenAndServeStreamsFileThenExitSentinel(t *testing.T) {
	path := writeFixture(t, "0,ReferenceLatitude=0.0", "#1.0", "802,Name=FARP")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	go func() {
		_ = ListenAndServe(ctx, addr, path, true)
	}()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("XtraLib.Stream.0\nTacview.RealTimeTelemetry.0\nclient\npassword\x00"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	ack, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "0\n", ack)

	var got []string
	for i := 0; i < 4; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		got = append(got, line[:len(line)-1])
	}

	assert.Equal(t, []string{
		"0,ReferenceLatitude=0.0",
		"#1.0",
		"802,Name=FARP",
		"-exit",
	}, got)
}
