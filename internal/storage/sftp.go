package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Compile-time interface checks.
var (
	_ Backend = (*SFTP)(nil)
	_ Source  = (*SFTP)(nil)
	_ Sink    = (*SFTP)(nil)
)

// SSHOpts configures the SSH connection behind an SFTP backend.
type SSHOpts struct {
	Port    int    // 0 = 22
	KeyFile string // override key file; empty = agent + default keys
}

// SFTP is a remote backend speaking SFTP over SSH. Paths are absolute
// paths on the remote host. The caller must Close it when done.
type SFTP struct {
	client *sftp.Client
	ssh    *ssh.Client
}

// DialSFTP connects to host as userName and returns an SFTP backend.
//
// Auth methods are tried in order: SSH agent (SSH_AUTH_SOCK), then key
// files (SSHOpts.KeyFile or ~/.ssh/id_ed25519, id_ecdsa, id_rsa).
func DialSFTP(host, userName string, opts SSHOpts) (*SFTP, error) {
	if userName == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("determine current user: %w", err)
		}
		userName = u.Username
	}

	port := opts.Port
	if port == 0 {
		port = 22
	}

	authMethods := buildAuthMethods(opts)
	if len(authMethods) == 0 {
		return nil, errors.New("no SSH auth methods available (set SSH_AUTH_SOCK or provide a key)")
	}

	hostKeyCallback, err := defaultHostKeyCallback()
	if err != nil {
		// No readable known_hosts; accept the host key the way most CLI
		// tools do on first connection.
		//nolint:gosec
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	sshClient, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            userName,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp client: %w", err)
	}

	return &SFTP{client: sftpClient, ssh: sshClient}, nil
}

// Close shuts down the SFTP session and the underlying SSH connection.
func (b *SFTP) Close() error {
	err := b.client.Close()
	if sshErr := b.ssh.Close(); sshErr != nil && err == nil {
		err = sshErr
	}
	return err
}

func (*SFTP) Caps() Capabilities {
	return Capabilities{}
}

func (b *SFTP) List(dir string) ([]FileEntry, error) {
	infos, err := b.client.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("sftp list %s: %w", dir, ErrNotFound)
		}
		return nil, fmt.Errorf("sftp list %s: %w", dir, err)
	}
	entries := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, sftpInfoToEntry(path.Join(dir, info.Name()), info))
	}
	return entries, nil
}

func (b *SFTP) Stat(p string) (FileEntry, error) {
	info, err := b.client.Lstat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileEntry{}, fmt.Errorf("sftp stat %s: %w", p, ErrNotFound)
		}
		return FileEntry{}, fmt.Errorf("sftp stat %s: %w", p, err)
	}
	return sftpInfoToEntry(p, info), nil
}

func (b *SFTP) Get(p string) ([]byte, error) {
	f, err := b.client.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("sftp get %s: %w", p, ErrNotFound)
		}
		return nil, fmt.Errorf("sftp open %s: %w", p, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("sftp read %s: %w", p, err)
	}
	return data, nil
}

// Put uploads through a uuid-suffixed temp name and renames into place.
func (b *SFTP) Put(p string, data []byte) error {
	dir := path.Dir(p)
	if err := b.client.MkdirAll(dir); err != nil {
		return fmt.Errorf("sftp mkdir %s: %w", dir, err)
	}

	tmpPath := path.Join(dir, fmt.Sprintf(".%s.%s.ferry-tmp", path.Base(p), uuid.New().String()[:8]))
	f, err := b.client.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("sftp create temp %s: %w", tmpPath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = b.client.Remove(tmpPath)
		return fmt.Errorf("sftp write %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		_ = b.client.Remove(tmpPath)
		return fmt.Errorf("sftp close %s: %w", tmpPath, err)
	}

	// SFTP rename fails if the target exists; remove first.
	_ = b.client.Remove(p)
	if err := b.client.Rename(tmpPath, p); err != nil {
		_ = b.client.Remove(tmpPath)
		return fmt.Errorf("sftp rename %s -> %s: %w", tmpPath, p, err)
	}
	return nil
}

func (b *SFTP) Delete(p string) error {
	info, err := b.client.Lstat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("sftp delete %s: %w", p, ErrNotFound)
		}
		return fmt.Errorf("sftp delete %s: %w", p, err)
	}
	if info.IsDir() {
		if err := b.client.RemoveAll(p); err != nil {
			return fmt.Errorf("sftp delete dir %s: %w", p, err)
		}
		return nil
	}
	if err := b.client.Remove(p); err != nil {
		return fmt.Errorf("sftp delete %s: %w", p, err)
	}
	return nil
}

func (b *SFTP) Exists(p string) (bool, error) {
	_, err := b.client.Lstat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (b *SFTP) Hash(p string) (string, error) {
	f, err := b.client.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("sftp hash %s: %w", p, ErrNotFound)
		}
		return "", fmt.Errorf("sftp open %s: %w", p, err)
	}
	defer f.Close()

	h := blake3.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("sftp hash %s: %w", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (b *SFTP) Read(p string) ([]byte, error) {
	return b.Get(p)
}

func (b *SFTP) IsSymlink(p string) bool {
	info, err := b.client.Lstat(p)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

func (b *SFTP) ReadLink(p string) (string, error) {
	target, err := b.client.ReadLink(p)
	if err != nil {
		return "", fmt.Errorf("sftp readlink %s: %w", p, err)
	}
	return target, nil
}

func (b *SFTP) MkdirAll(p string) error {
	if err := b.client.MkdirAll(p); err != nil {
		return fmt.Errorf("sftp mkdir %s: %w", p, err)
	}
	return nil
}

func (b *SFTP) Symlink(target, link string) error {
	if err := b.client.MkdirAll(path.Dir(link)); err != nil {
		return fmt.Errorf("sftp mkdir %s: %w", path.Dir(link), err)
	}
	_ = b.client.Remove(link)
	if err := b.client.Symlink(target, link); err != nil {
		return fmt.Errorf("sftp symlink %s -> %s: %w", link, target, err)
	}
	return nil
}

// CopyFrom uploads a local file to the remote path with a reusable buffer.
func (b *SFTP) CopyFrom(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer src.Close()

	if err := b.client.MkdirAll(path.Dir(dstPath)); err != nil {
		return fmt.Errorf("sftp mkdir %s: %w", path.Dir(dstPath), err)
	}

	dst, err := b.client.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("sftp create %s: %w", dstPath, err)
	}

	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(dst, src, buf); err != nil {
		dst.Close()
		return fmt.Errorf("sftp copy %s -> %s: %w", srcPath, dstPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("sftp close %s: %w", dstPath, err)
	}
	return nil
}

func sftpInfoToEntry(p string, info os.FileInfo) FileEntry {
	return FileEntry{
		Path:    p,
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}

func buildAuthMethods(opts SSHOpts) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			agentClient := agent.NewClient(conn)
			methods = append(methods, ssh.PublicKeysCallback(agentClient.Signers))
		}
	}

	if opts.KeyFile != "" {
		if m := keyFileAuth(opts.KeyFile); m != nil {
			methods = append(methods, m)
		}
		return methods
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return methods
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		if m := keyFileAuth(filepath.Join(home, ".ssh", name)); m != nil {
			methods = append(methods, m)
		}
	}
	return methods
}

func keyFileAuth(p string) ssh.AuthMethod {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil
	}
	return ssh.PublicKeys(signer)
}

func defaultHostKeyCallback() (ssh.HostKeyCallback, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
}
