package server

import (
	"bufio"
	"fmt"
)

// replyLineMax bounds a single formatted reply.
const replyLineMax = 1024

// writeReply formats and sends one FTP reply on w. Every code formats as
// "<code> <text>\r\n" except 211, the sole multi-line reply (used by FEAT),
// which formats as "<code>- <text>\r\n"; callers of a 211 response finish it
// themselves with a closing "211 End\r\n" line embedded in their own text.
// If formatting would overflow replyLineMax the fallback is "<code>\r\n". A
// logger, if non-nil, is told about both outcomes. Writes are best-effort:
// a short write is logged, not retried, since control replies are small and
// this is acceptable for the target deployment.
func writeReply(w *bufio.Writer, logger diagnosticLogger, code int, text string) {
	var line string
	if code == 211 {
		line = fmt.Sprintf("%d- %s\r\n", code, text)
	} else {
		line = fmt.Sprintf("%d %s\r\n", code, text)
	}

	if len(line) > replyLineMax {
		if logger != nil {
			logger.logf("reply for code %d exceeded %d bytes, truncating", code, replyLineMax)
		}
		line = fmt.Sprintf("%d\r\n", code)
	}

	n, err := w.WriteString(line)
	if err != nil || n != len(line) {
		if logger != nil {
			logger.logf("short or failed reply write (code %d): %v", code, err)
		}
		return
	}
	if err := w.Flush(); err != nil && logger != nil {
		logger.logf("reply flush failed (code %d): %v", code, err)
	}
}

// diagnosticLogger is the minimal logging contract response.go needs; it is
// satisfied by *session via a tiny adapter so this file has no dependency on
// log/slog directly.
type diagnosticLogger interface {
	logf(format string, args ...any)
}
