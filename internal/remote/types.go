package remote

import (
	"context"
	"errors"
	"io"
	"time"
)

// Common errors
var (
	ErrServerNotFound = errors.New("server not found")
	ErrFileNotFound   = errors.New("file not found")
)

// Server describes one configured remote file server.
type Server struct {
	ID             string
	Name           string
	Host           string
	Port           int
	Username       string
	Password       string
	PrivateKeyFile string
}

// Entry is one item in a remote directory listing.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	IsDir   bool      `json:"isDir"`
	ModTime time.Time `json:"modTime"`
}

// FileSource resolves (serverID, path) pairs on remote servers. Byte serving
// happens strictly after a successful access check.
type FileSource interface {
	Exists(ctx context.Context, serverID, path string) (bool, error)
	Open(ctx context.Context, serverID, path string) (io.ReadCloser, int64, error)
	List(ctx context.Context, serverID, path string) ([]Entry, error)
}

// ServerDirectory resolves server ids to display metadata.
type ServerDirectory interface {
	NameOf(serverID string) (string, error)
	Servers() []Server
}
