package server

import (
	"fmt"
	"io"
	"os"
	"time"
)

// workBufSize is the transfer window size used for LIST/RETR/STOR steps.
const workBufSize = 32 * 1024

type transferKind int

const (
	xferNone transferKind = iota
	xferList
	xferRetr
	xferStor
)

// transfer is a tagged variant over "open file" vs. "open directory
// listing": kind selects which arm is legal for a given instance.
type transfer struct {
	kind transferKind

	file io.ReadWriteCloser // RETR/STOR handle

	entries []os.FileInfo // LIST entries
	nextIdx int

	buf     []byte
	bufPos  int
	bufSize int

	receiving  bool  // true for STOR: data flows client -> server
	bytesMoved int64 // total bytes written to the peer (LIST/RETR) or to file (STOR)
	startedAt  time.Time
}

// operationName reports the verb metrics should attribute this transfer to.
func (t *transfer) operationName() string {
	switch t.kind {
	case xferRetr:
		return "RETR"
	case xferStor:
		return "STOR"
	default:
		return "LIST"
	}
}

func newListTransfer(entries []os.FileInfo) *transfer {
	return &transfer{kind: xferList, entries: entries, buf: make([]byte, workBufSize), startedAt: time.Now()}
}

func newRetrTransfer(f io.ReadWriteCloser) *transfer {
	return &transfer{kind: xferRetr, file: f, buf: make([]byte, workBufSize), startedAt: time.Now()}
}

func newStorTransfer(f io.ReadWriteCloser) *transfer {
	return &transfer{kind: xferStor, file: f, buf: make([]byte, workBufSize), receiving: true, startedAt: time.Now()}
}

// stepResult is returned by each transfer step: stepAgain asks the caller
// to invoke step again immediately (more progress is possible without a new
// readiness event), stepBlocked means nothing more can happen until the
// next tick, and stepComplete/stepFailed end the transfer.
type stepResult int

const (
	stepAgain stepResult = iota
	stepBlocked
	stepComplete
	stepFailed
)

// step runs one increment of the session's active transfer. The caller
// (pollDataTransfer) loops it until it yields stepBlocked/Complete/Failed.
func (s *session) step() stepResult {
	if s.xfer == nil {
		return stepComplete
	}
	switch s.xfer.kind {
	case xferList:
		return s.stepList()
	case xferRetr:
		return s.stepRetr()
	case xferStor:
		return s.stepStor()
	default:
		return stepComplete
	}
}

func isWouldBlock(err error) bool {
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok {
		return te.Timeout()
	}
	return false
}

// formatListLine renders one UNIX-style long-format LIST entry. Permissions,
// owner/group, and date are intentionally stubbed; only the type byte and
// size are real.
func formatListLine(info os.FileInfo) string {
	typeByte := byte('-')
	switch {
	case info.IsDir():
		typeByte = 'd'
	case info.Mode()&os.ModeSymlink != 0:
		typeByte = 'l'
	}
	return fmt.Sprintf("%crwxrwxrwx 1 owner group %d Jan 1 1970 %s\r\n", typeByte, info.Size(), info.Name())
}

func (s *session) stepList() stepResult {
	t := s.xfer
	if t.bufPos >= t.bufSize {
		for {
			if t.nextIdx >= len(t.entries) {
				return stepComplete
			}
			entry := t.entries[t.nextIdx]
			t.nextIdx++
			if entry.Name() == "." || entry.Name() == ".." {
				continue
			}
			line := formatListLine(entry)
			if len(line) > len(t.buf) {
				line = line[:len(t.buf)]
			}
			copy(t.buf, line)
			t.bufPos, t.bufSize = 0, len(line)
			break
		}
	}

	s.dataConn.SetWriteDeadline(time.Now())
	n, err := s.dataConn.Write(t.buf[t.bufPos:t.bufSize])
	if n > 0 {
		t.bufPos += n
		t.bytesMoved += int64(n)
	}
	if err != nil {
		if isWouldBlock(err) {
			return stepBlocked
		}
		s.replyCode, s.replyText = 426, "Data connection broken."
		return stepFailed
	}
	return stepAgain
}

func (s *session) stepRetr() stepResult {
	t := s.xfer
	if t.bufPos >= t.bufSize {
		max := len(t.buf)
		if s.server.limiter != nil {
			max = s.server.limiter.Allow(max)
			if max == 0 {
				return stepBlocked
			}
		}
		n, err := t.file.Read(t.buf[:max])
		if n > 0 {
			t.bufPos, t.bufSize = 0, n
		}
		switch {
		case err == io.EOF:
			if n == 0 {
				return stepComplete
			}
		case err != nil:
			s.replyCode, s.replyText = 451, "Local error in processing."
			return stepFailed
		case n == 0:
			return stepBlocked
		}
	}

	s.dataConn.SetWriteDeadline(time.Now())
	n, err := s.dataConn.Write(t.buf[t.bufPos:t.bufSize])
	if n > 0 {
		t.bufPos += n
		t.bytesMoved += int64(n)
	}
	if err != nil {
		if isWouldBlock(err) {
			return stepBlocked
		}
		s.replyCode, s.replyText = 426, "Data connection broken."
		return stepFailed
	}
	return stepAgain
}

func (s *session) stepStor() stepResult {
	t := s.xfer
	if t.bufPos >= t.bufSize {
		max := len(t.buf)
		if s.server.limiter != nil {
			max = s.server.limiter.Allow(max)
			if max == 0 {
				return stepBlocked
			}
		}
		s.dataConn.SetReadDeadline(time.Now())
		n, err := s.dataConn.Read(t.buf[:max])
		if n > 0 {
			t.bufPos, t.bufSize = 0, n
		}
		switch {
		case err == io.EOF:
			if n == 0 {
				return stepComplete
			}
		case err != nil:
			if isWouldBlock(err) {
				return stepBlocked
			}
			s.replyCode, s.replyText = 426, "Data connection broken."
			return stepFailed
		case n == 0:
			return stepBlocked
		}
	}

	n, err := t.file.Write(t.buf[t.bufPos:t.bufSize])
	if n > 0 {
		t.bufPos += n
		t.bytesMoved += int64(n)
	}
	if err != nil {
		s.replyCode, s.replyText = 451, "Local error in processing."
		return stepFailed
	}
	return stepAgain
}
