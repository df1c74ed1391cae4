package server

import "strings"

// maxPathLen bounds the resolved path.
const maxPathLen = 32 * 1024

// pathError reports why buildPath rejected an argument.
type pathError int

const (
	pathErrNone pathError = iota
	pathErrInvalid
	pathErrTooLong
)

// containsTraversal reports whether arg contains a `/..` component that is
// either the final path segment or immediately followed by another `/`, or
// contains a bare `//` substring. It does not canonicalize `.` or resolve
// symlinks; this is a deliberately textual check.
func containsTraversal(arg string) bool {
	if strings.Contains(arg, "//") {
		return true
	}
	for i := 0; i+1 < len(arg); i++ {
		if arg[i] != '.' || arg[i+1] != '.' {
			continue
		}
		// ".." must be a whole segment: preceded by start-of-string or '/',
		// and followed by end-of-string or '/'.
		precededOK := i == 0 || arg[i-1] == '/'
		if !precededOK {
			continue
		}
		end := i + 2
		if end == len(arg) || arg[end] == '/' {
			return true
		}
	}
	return false
}

// buildPath resolves arg against cwd, rejecting traversal attempts. On
// success it returns the resolved absolute path. On failure it returns the
// reason via pathError.
func buildPath(cwd, arg string) (string, pathError) {
	if containsTraversal(arg) {
		return "", pathErrInvalid
	}

	var resolved string
	if strings.HasPrefix(arg, "/") {
		resolved = arg
	} else if cwd == "/" {
		resolved = "/" + arg
	} else {
		resolved = cwd + "/" + arg
	}

	if len(resolved) > maxPathLen {
		return "", pathErrTooLong
	}

	resolved = strings.TrimRight(resolved, "/")
	if resolved == "" {
		resolved = "/"
	}
	return resolved, pathErrNone
}

// cdUp truncates cwd at its last '/', collapsing to "/" if that would leave
// it empty.
func cdUp(cwd string) string {
	idx := strings.LastIndex(cwd, "/")
	if idx <= 0 {
		return "/"
	}
	return cwd[:idx]
}
