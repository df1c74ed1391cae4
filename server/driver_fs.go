package server

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSDriver implements Driver over the local filesystem.
//
// USER/PASS are accepted unconditionally unless an Authenticator option is
// supplied, in which case it has full control and may reject a login with
// an error.
//
// File operations are jailed inside rootPath with os.Root (Go 1.24+), which
// gives kernel-enforced containment independent of the textual path sandbox
// the session engine applies before it ever calls into FileSystem (see
// path.go). The two boundaries are complementary, not redundant: path.go
// governs what the protocol layer considers a legal argument, os.Root
// governs what the OS will actually let the process touch. Rename is the
// exception: it calls os.Rename on paths joined under rootPath, so it is not
// confined by os.Root.
type FSDriver struct {
	rootPath string

	// authenticator, if set, decides whether to accept a login and which
	// root/read-only mode to grant. If nil, every login is accepted against
	// rootPath in read-write mode.
	authenticator func(user, pass, host string) (root string, readOnly bool, err error)

	readOnly bool
}

// FSDriverOption configures an FSDriver.
type FSDriverOption func(*FSDriver)

// NewFSDriver creates a filesystem driver rooted at rootPath. rootPath must
// exist and be a directory.
func NewFSDriver(rootPath string, options ...FSDriverOption) (*FSDriver, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("root path validation failed: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", rootPath)
	}

	rootPath, err = filepath.EvalSymlinks(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	d := &FSDriver{rootPath: rootPath}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// WithAuthenticator installs a custom login hook, overriding the default
// accept-everything behavior.
func WithAuthenticator(fn func(user, pass, host string) (root string, readOnly bool, err error)) FSDriverOption {
	return func(d *FSDriver) { d.authenticator = fn }
}

// WithReadOnly rejects every write operation (STOR/DELE/RMD/MKD/RNTO)
// for logins that don't go through a custom Authenticator.
func WithReadOnly(readOnly bool) FSDriverOption {
	return func(d *FSDriver) { d.readOnly = readOnly }
}

// Authenticate implements Driver.
func (d *FSDriver) Authenticate(user, pass, host string) (FileSystem, error) {
	rootPath := d.rootPath
	readOnly := d.readOnly

	if d.authenticator != nil {
		var err error
		rootPath, readOnly, err = d.authenticator(user, pass, host)
		if err != nil {
			return nil, err
		}
	}

	root, err := os.OpenRoot(rootPath)
	if err != nil {
		return nil, err
	}

	return &fsContext{
		root:     root,
		rootPath: rootPath,
		cwd:      "/",
		readOnly: readOnly,
	}, nil
}

// fsContext implements FileSystem for one session, jailed inside an
// os.Root.
type fsContext struct {
	root     *os.Root
	rootPath string
	cwd      string
	readOnly bool
	settings *Settings
}

func (c *fsContext) Close() error { return c.root.Close() }

// relative maps a virtual absolute path (already resolved by path.go's
// sandbox) onto a path relative to the root handle.
func (c *fsContext) relative(path string) (string, error) {
	path = filepath.Clean(path)
	if !strings.HasPrefix(path, "/") {
		return "", errors.New("path must be absolute")
	}
	rel := strings.TrimPrefix(path, "/")
	if rel == "" {
		rel = "."
	}
	return rel, nil
}

func (c *fsContext) ChangeDir(path string) error {
	rel, err := c.relative(path)
	if err != nil {
		return err
	}
	info, err := c.root.Stat(rel)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %w", os.ErrNotExist)
	}
	c.cwd = filepath.Clean(path)
	if !strings.HasPrefix(c.cwd, "/") {
		c.cwd = "/" + c.cwd
	}
	return nil
}

func (c *fsContext) GetWd() (string, error) { return c.cwd, nil }

func (c *fsContext) MakeDir(path string) error {
	if c.readOnly {
		return os.ErrPermission
	}
	rel, err := c.relative(path)
	if err != nil {
		return err
	}
	return c.root.Mkdir(rel, 0755)
}

func (c *fsContext) RemoveDir(path string) error {
	if c.readOnly {
		return os.ErrPermission
	}
	rel, err := c.relative(path)
	if err != nil {
		return err
	}
	return c.root.Remove(rel)
}

func (c *fsContext) DeleteFile(path string) error {
	if c.readOnly {
		return os.ErrPermission
	}
	rel, err := c.relative(path)
	if err != nil {
		return err
	}
	return c.root.Remove(rel)
}

func (c *fsContext) Rename(fromPath, toPath string) error {
	if c.readOnly {
		return os.ErrPermission
	}
	srcRel, err := c.relative(fromPath)
	if err != nil {
		return err
	}
	dstRel, err := c.relative(toPath)
	if err != nil {
		return err
	}
	return os.Rename(filepath.Join(c.rootPath, srcRel), filepath.Join(c.rootPath, dstRel))
}

func (c *fsContext) ListDir(path string) ([]os.FileInfo, error) {
	rel, err := c.relative(path)
	if err != nil {
		return nil, err
	}
	f, err := c.root.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if info, err := entry.Info(); err == nil {
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (c *fsContext) OpenFile(path string, flag int) (io.ReadWriteCloser, error) {
	if c.readOnly {
		const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_CREATE | os.O_TRUNC | os.O_APPEND
		if flag&writeFlags != 0 {
			return nil, os.ErrPermission
		}
	}
	rel, err := c.relative(path)
	if err != nil {
		return nil, err
	}
	return c.root.OpenFile(rel, flag, 0644)
}

func (c *fsContext) GetFileInfo(path string) (os.FileInfo, error) {
	rel, err := c.relative(path)
	if err != nil {
		return nil, err
	}
	return c.root.Stat(rel)
}

func (c *fsContext) GetSettings() *Settings {
	if c.settings == nil {
		return &Settings{}
	}
	return c.settings
}
