package http

import (
	"context"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/sensei/pkg/options/server/http"
)

func testEngine() *gin.Engine {
	e := NewEngine()
	e.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return e
}

// shortSocketPath keeps the path under the sun_path limit on macOS and Linux.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sensei")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func get(t *testing.T, client *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func unixClient(path string) *http.Client {
	return &http.Client{
		Timeout: 2 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		},
	}
}

func startServer(t *testing.T, addr string) *Server {
	t.Helper()
	opts := options.NewOptions()
	opts.Addr = addr
	require.NoError(t, opts.Complete())
	s := NewServer(opts, testEngine())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestServer_TCPAndUnixServeSameResponses(t *testing.T) {
	tcp := startServer(t, "127.0.0.1:0")
	sock := shortSocketPath(t)
	uds := startServer(t, "unix://"+sock)

	tcpClient := &http.Client{Timeout: 2 * time.Second}
	udsClient := unixClient(sock)

	for _, path := range []string{"/health", "/nope"} {
		tcpStatus, tcpBody := get(t, tcpClient, "http://"+tcp.Addr()+path)
		udsStatus, udsBody := get(t, udsClient, "http://unix"+path)
		assert.Equal(t, tcpStatus, udsStatus, path)
		assert.JSONEq(t, tcpBody, udsBody, path)
	}

	status, body := get(t, udsClient, "http://unix/health")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.Equal(t, sock, uds.Addr())
}

func TestServer_UnixSocketMode(t *testing.T) {
	sock := shortSocketPath(t)
	startServer(t, "unix://"+sock)

	fi, err := os.Stat(sock)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&fs.ModeSocket)
	assert.Equal(t, fs.FileMode(0o700), fi.Mode().Perm())
}

func TestServer_RemovesStaleSocket(t *testing.T) {
	sock := shortSocketPath(t)
	stale, err := net.Listen("unix", sock)
	require.NoError(t, err)
	// leave the file behind as a crashed process would
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, stale.Close())
	_, err = os.Lstat(sock)
	require.NoError(t, err)

	startServer(t, "unix://"+sock)
	status, _ := get(t, unixClient(sock), "http://unix/health")
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_RefusesNonSocketFile(t *testing.T) {
	sock := shortSocketPath(t)
	require.NoError(t, os.WriteFile(sock, []byte("data"), 0o600))

	opts := options.NewOptions()
	opts.Addr = "unix://" + sock
	s := NewServer(opts, testEngine())
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-socket")
}

func TestServer_StopRemovesSocket(t *testing.T) {
	sock := shortSocketPath(t)
	opts := options.NewOptions()
	opts.Addr = "unix://" + sock
	s := NewServer(opts, testEngine())
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Stop(context.Background()))
	_, err := os.Lstat(sock)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Empty(t, s.Addr())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestServer_DoubleStart(t *testing.T) {
	s := startServer(t, "127.0.0.1:0")
	assert.Error(t, s.Start(context.Background()))
}

func TestOptions_SocketPath(t *testing.T) {
	tests := []struct {
		addr   string
		unix   bool
		path   string
		errors int
	}{
		{addr: "0.0.0.0:3000", unix: false, path: ""},
		{addr: "unix:///run/sensei.sock", unix: true, path: "/run/sensei.sock"},
		{addr: "unix://sensei.sock", unix: true, path: "sensei.sock"},
		{addr: "unix://", unix: true, path: "", errors: 1},
		{addr: "", unix: false, path: "", errors: 1},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			o := options.NewOptions()
			o.Addr = tt.addr
			assert.Equal(t, tt.unix, o.IsUnix())
			assert.Equal(t, tt.path, o.SocketPath())
			assert.Len(t, o.Validate(), tt.errors)
		})
	}
}
