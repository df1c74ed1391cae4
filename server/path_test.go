package server

import "testing"

func TestBuildPath(t *testing.T) {
	cases := []struct {
		name    string
		cwd     string
		arg     string
		want    string
		wantErr pathError
	}{
		{"absolute", "/home", "/etc", "/etc", pathErrNone},
		{"relative from root", "/", "foo", "/foo", pathErrNone},
		{"relative from subdir", "/home", "foo", "/home/foo", pathErrNone},
		{"trailing slash stripped", "/home", "foo/", "/home/foo", pathErrNone},
		{"leading dotdot segment rejected", "/", "../etc", "", pathErrInvalid},
		{"dotdot mid segment rejected", "/a", "../../etc", "", pathErrInvalid},
		{"double slash rejected", "/", "//tmp", "", pathErrInvalid},
		{"double slash mid-path rejected", "/home", "a//b", "", pathErrInvalid},
		{"empty arg resolves to cwd", "/home", "", "/home", pathErrNone},
		{"dot segment allowed", "/home", ".", "/home/.", pathErrNone},
		{"name containing dotdot substring allowed", "/", "foo..bar", "/foo..bar", pathErrNone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := buildPath(c.cwd, c.arg)
			if err != c.wantErr {
				t.Fatalf("buildPath(%q, %q) error = %v, want %v", c.cwd, c.arg, err, c.wantErr)
			}
			if err == pathErrNone && got != c.want {
				t.Fatalf("buildPath(%q, %q) = %q, want %q", c.cwd, c.arg, got, c.want)
			}
		})
	}
}

func TestBuildPathTooLong(t *testing.T) {
	long := make([]byte, maxPathLen)
	for i := range long {
		long[i] = 'a'
	}
	_, err := buildPath("/", string(long))
	if err != pathErrTooLong {
		t.Fatalf("expected pathErrTooLong, got %v", err)
	}
}

func TestCdUp(t *testing.T) {
	cases := []struct{ cwd, want string }{
		{"/", "/"},
		{"/home", "/"},
		{"/home/user", "/home"},
		{"/a/b/c", "/a/b"},
	}
	for _, c := range cases {
		if got := cdUp(c.cwd); got != c.want {
			t.Fatalf("cdUp(%q) = %q, want %q", c.cwd, got, c.want)
		}
	}
}
