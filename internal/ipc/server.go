// Package ipc is the channel between the shell process and its windows: gRPC
// over a unix socket with a JSON codec.
//
// The socket doubles as the single-instance lock. The first process to listen
// on it is the shell; later launches find it live and forward their command
// line instead of starting a second shell.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"

	"github.com/go-authgate/speaknative/internal/filelock"
)

// ErrAlreadyRunning is returned by Listen when another shell owns the socket.
var ErrAlreadyRunning = errors.New("another instance is already running")

const (
	// SocketName is the socket's file name inside the runtime directory.
	SocketName = "shell.sock"

	probeTimeout = 500 * time.Millisecond
)

// SocketPath returns the shell socket inside runtimeDir.
func SocketPath(runtimeDir string) string {
	return filepath.Join(runtimeDir, SocketName)
}

// Listen claims the shell socket at path. A socket left behind by a crashed
// shell is replaced; a live one yields ErrAlreadyRunning.
func Listen(ctx context.Context, path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create runtime dir: %w", err)
	}

	// Serialize the probe-remove-listen sequence between simultaneous launches.
	lock, err := filelock.Acquire(ctx, path)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	lis, err := net.Listen("unix", path)
	if err == nil {
		return lis, nil
	}

	if conn, dialErr := net.DialTimeout("unix", path, probeTimeout); dialErr == nil {
		conn.Close()
		return nil, ErrAlreadyRunning
	}

	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", rmErr)
	}
	lis, err = net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	return lis, nil
}

// NewServer returns a gRPC server with srv registered and the logging and
// panic interceptors installed.
func NewServer(srv ShellServer, log *slog.Logger) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			UnaryLoggingInterceptor(log),
			UnaryRecoverInterceptor(log),
		),
		grpc.ChainStreamInterceptor(StreamLoggingInterceptor(log)),
	)
	Register(s, srv)
	return s
}
