package server

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

type discardLogger struct{ lastf string }

func (d *discardLogger) logf(format string, args ...any) { d.lastf = format }

func TestWriteReplySimple(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	writeReply(w, nil, 200, "OK")
	if got := buf.String(); got != "200 OK\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestWriteReply211IsMultiLinePrefixed(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	writeReply(w, nil, 211, "Features:")
	if got := buf.String(); got != "211- Features:\r\n" {
		t.Fatalf("got %q, want 211- prefix form", got)
	}
}

func TestWriteReplyOverflowFallsBackToBareCode(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	logger := &discardLogger{}
	huge := strings.Repeat("x", replyLineMax)
	writeReply(w, logger, 550, huge)
	got := buf.String()
	if got != "550\r\n" {
		t.Fatalf("got %q, want bare-code fallback", got)
	}
	if logger.lastf == "" {
		t.Fatalf("expected overflow to be logged")
	}
}
