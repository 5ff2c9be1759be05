package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const sshConnectTimeout = 30 * time.Second

// SFTPSource implements FileSource over SFTP. Each operation dials its own
// connection and closes it when done, matching the short-lived sessions of
// the servers this fronts.
type SFTPSource struct {
	directory *Directory
}

// NewSFTPSource creates a FileSource backed by the directory's servers.
func NewSFTPSource(directory *Directory) *SFTPSource {
	return &SFTPSource{directory: directory}
}

// Exists reports whether the path resolves to a regular file on the server.
func (s *SFTPSource) Exists(ctx context.Context, serverID, filePath string) (bool, error) {
	client, closeAll, err := s.connect(serverID)
	if err != nil {
		return false, err
	}
	defer closeAll()

	info, err := client.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", filePath, err)
	}
	return !info.IsDir(), nil
}

// Open returns a stream of the file's bytes and its size. The caller owns the
// returned ReadCloser; closing it tears down the connection.
func (s *SFTPSource) Open(ctx context.Context, serverID, filePath string) (io.ReadCloser, int64, error) {
	client, closeAll, err := s.connect(serverID)
	if err != nil {
		return nil, 0, err
	}

	info, err := client.Stat(filePath)
	if err != nil {
		closeAll()
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrFileNotFound, filePath)
		}
		return nil, 0, fmt.Errorf("stat %s: %w", filePath, err)
	}

	file, err := client.Open(filePath)
	if err != nil {
		closeAll()
		return nil, 0, fmt.Errorf("open %s: %w", filePath, err)
	}

	return &remoteFile{file: file, closeAll: closeAll}, info.Size(), nil
}

// List returns the entries of a remote directory.
func (s *SFTPSource) List(ctx context.Context, serverID, dirPath string) ([]Entry, error) {
	client, closeAll, err := s.connect(serverID)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	infos, err := client.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dirPath, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{
			Name:    info.Name(),
			Path:    path.Join(dirPath, info.Name()),
			Size:    info.Size(),
			IsDir:   info.IsDir(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// connect dials SSH and opens an SFTP session for the given server. The
// returned func closes both.
func (s *SFTPSource) connect(serverID string) (*sftp.Client, func(), error) {
	srv, err := s.directory.Lookup(serverID)
	if err != nil {
		return nil, nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            srv.Username,
		Auth:            authMethods(srv),
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sshConnectTimeout,
	}

	addr := net.JoinHostPort(srv.Host, fmt.Sprintf("%d", srv.Port))
	sshClient, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("ssh connect %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, fmt.Errorf("create sftp client: %w", err)
	}

	closeAll := func() {
		if err := sftpClient.Close(); err != nil {
			logrus.WithError(err).WithField("server", serverID).Debug("Failed to close sftp session")
		}
		sshClient.Close()
	}
	return sftpClient, closeAll, nil
}

func authMethods(srv Server) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if srv.PrivateKeyFile != "" {
		key, err := os.ReadFile(srv.PrivateKeyFile)
		if err != nil {
			logrus.WithError(err).WithField("server", srv.ID).Warn("Failed to read private key file")
		} else if signer, err := ssh.ParsePrivateKey(key); err != nil {
			logrus.WithError(err).WithField("server", srv.ID).Warn("Failed to parse private key")
		} else {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if srv.Password != "" {
		methods = append(methods, ssh.Password(srv.Password))
	}

	return methods
}

// remoteFile couples the sftp file handle with its connection teardown.
type remoteFile struct {
	file     *sftp.File
	closeAll func()
}

func (f *remoteFile) Read(p []byte) (int, error) {
	return f.file.Read(p)
}

func (f *remoteFile) Close() error {
	err := f.file.Close()
	f.closeAll()
	return err
}
