package server

import (
	"io"
	"os"
)

// Driver authenticates a session and hands back the FileSystem it will
// operate against for its lifetime. USER/PASS accept any credentials by
// default, so the shipped FSDriver always succeeds; Driver exists for
// callers who want to plug in something stricter.
type Driver interface {
	// Authenticate is given the USER/PASS/HOST values as the client sent
	// them (always empty strings for the default, eagerly-authenticated
	// session lifecycle, since USER/PASS never gate anything) and returns
	// a session-scoped FileSystem. An error here drops the connection
	// before any reply is sent.
	Authenticate(user, pass, host string) (FileSystem, error)
}

// FileSystem is the POSIX-style collaborator a session operates against:
// open/read/write/close, opendir/readdir/closedir, stat/lstat,
// mkdir/rmdir/unlink/rename. One FileSystem is bound to a session for its
// lifetime; it is the sandbox boundary the path-sandbox logic in path.go
// resolves paths against.
type FileSystem interface {
	// ChangeDir moves the session's working directory to path. Returns
	// os.ErrNotExist if path does not exist or is not a directory.
	ChangeDir(path string) error

	// GetWd returns the session's current working directory.
	GetWd() (string, error)

	MakeDir(path string) error
	RemoveDir(path string) error
	DeleteFile(path string) error
	Rename(fromPath, toPath string) error

	// ListDir lists one directory's entries, unsorted, excluding "." and
	// "..".
	ListDir(path string) ([]os.FileInfo, error)

	// OpenFile opens path with the given os.O_* flag combination for the
	// duration of one transfer.
	OpenFile(path string, flag int) (io.ReadWriteCloser, error)

	// GetFileInfo stats path without opening it.
	GetFileInfo(path string) (os.FileInfo, error)

	// Close releases resources held for the session (e.g. a directory
	// handle opened for os.Root jailing). Called once, on session
	// destruction.
	Close() error

	// GetSettings returns passive-mode configuration to use for this
	// session; may return nil to take server-wide defaults.
	GetSettings() *Settings
}

// Settings configures passive-mode port selection and the address
// advertised in PASV replies.
type Settings struct {
	// PublicHost is the hostname or IP advertised in PASV responses. If
	// empty, the control connection's local address is used.
	PublicHost string

	// PasvMinPort/PasvMaxPort bound a cycling port allocator for passive
	// data connections. If both are zero the server-wide range set with
	// WithPasvPortRange applies; without one the OS assigns an ephemeral
	// port, which is the default.
	PasvMinPort int
	PasvMaxPort int
}
