package server

import (
	"io"
	"net"
	"os"
	"testing"
)

type fakeFS struct{ settings *Settings }

func (f *fakeFS) ChangeDir(string) error { return nil }
func (f *fakeFS) GetWd() (string, error) { return "/", nil }
func (f *fakeFS) MakeDir(string) error { return nil }
func (f *fakeFS) RemoveDir(string) error { return nil }
func (f *fakeFS) DeleteFile(string) error { return nil }
func (f *fakeFS) Rename(string, string) error { return nil }
func (f *fakeFS) ListDir(string) ([]os.FileInfo, error) { return nil, nil }
func (f *fakeFS) OpenFile(string, int) (io.ReadWriteCloser, error) { return nil, nil }
func (f *fakeFS) GetFileInfo(string) (os.FileInfo, error) { return nil, nil }
func (f *fakeFS) Close() error { return nil }
func (f *fakeFS) GetSettings() *Settings {
	if f.settings == nil {
		return &Settings{}
	}
	return f.settings
}

func TestListenPassiveUsesConfiguredRange(t *testing.T) {
	srv := &Server{}
	s := &session{server: srv, fs: &fakeFS{settings: &Settings{PasvMinPort: 40000, PasvMaxPort: 40002}}}

	l, err := listenPassive(s)
	if err != nil {
		t.Fatalf("listenPassive: %v", err)
	}
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	if port < 40000 || port > 40002 {
		t.Fatalf("listener port %d outside configured range", port)
	}
}

func TestListenPassiveDefaultsToEphemeral(t *testing.T) {
	srv := &Server{}
	s := &session{server: srv, fs: &fakeFS{}}

	l, err := listenPassive(s)
	if err != nil {
		t.Fatalf("listenPassive: %v", err)
	}
	defer l.Close()
	if l.Addr().(*net.TCPAddr).Port == 0 {
		t.Fatalf("expected a concrete ephemeral port to be assigned")
	}
}
