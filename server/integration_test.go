package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startTestServer boots a server on loopback rooted at a fresh temp
// directory and returns a connected control-channel client plus a cleanup
// func. It exercises the same PollOnce loop cmd/ftpd drives in production.
func startTestServer(t *testing.T) (*bufio.Reader, net.Conn, string, func()) {
	t.Helper()
	dir := t.TempDir()

	driver, err := NewFSDriver(dir)
	if err != nil {
		t.Fatalf("NewFSDriver: %v", err)
	}
	srv, err := NewServer(WithDriver(driver))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		srv.Run(stop)
		close(done)
	}()

	conn, err := net.Dial("tcp", srv.listener.Addr().String())
	if err != nil {
		close(stop)
		t.Fatalf("Dial: %v", err)
	}
	reader := bufio.NewReader(conn)
	readReply(t, reader) // welcome banner

	cleanup := func() {
		conn.Close()
		close(stop)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
	return reader, conn, dir, cleanup
}

func readReply(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func send(t *testing.T, conn net.Conn, cmd string) {
	t.Helper()
	if _, err := conn.Write([]byte(cmd + "\r\n")); err != nil {
		t.Fatalf("Write(%q): %v", cmd, err)
	}
}

func TestScenarioLoginAndPWD(t *testing.T) {
	reader, conn, _, cleanup := startTestServer(t)
	defer cleanup()

	send(t, conn, "USER anonymous")
	if got := readReply(t, reader); !strings.HasPrefix(got, "230") {
		t.Fatalf("USER reply = %q, want 230", got)
	}
	send(t, conn, "PASS whatever")
	if got := readReply(t, reader); !strings.HasPrefix(got, "230") {
		t.Fatalf("PASS reply = %q, want 230", got)
	}
	send(t, conn, "PWD")
	if got := readReply(t, reader); got != `257 "/"` {
		t.Fatalf("PWD reply = %q, want 257 \"/\"", got)
	}
}

func TestScenarioFEAT(t *testing.T) {
	reader, conn, _, cleanup := startTestServer(t)
	defer cleanup()

	send(t, conn, "FEAT")
	lines := []string{readReply(t, reader), readReply(t, reader), readReply(t, reader)}
	if strings.TrimRight(lines[0], " ") != "211-" {
		t.Fatalf("first FEAT line = %q", lines[0])
	}
	if strings.TrimSpace(lines[1]) != "UTF8" {
		t.Fatalf("second FEAT line = %q, want UTF8", lines[1])
	}
	if lines[2] != "211 End" {
		t.Fatalf("third FEAT line = %q, want 211 End", lines[2])
	}
}

func TestScenarioTraversalRejected(t *testing.T) {
	reader, conn, _, cleanup := startTestServer(t)
	defer cleanup()

	send(t, conn, "CWD ../../etc")
	if got := readReply(t, reader); !strings.HasPrefix(got, "553") {
		t.Fatalf("CWD traversal reply = %q, want 553", got)
	}

	send(t, conn, "CWD //tmp")
	if got := readReply(t, reader); !strings.HasPrefix(got, "553") {
		t.Fatalf("CWD double-slash reply = %q, want 553", got)
	}
}

func TestScenarioRenameSequence(t *testing.T) {
	reader, conn, dir, cleanup := startTestServer(t)
	defer cleanup()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	send(t, conn, "RNFR a.txt")
	if got := readReply(t, reader); !strings.HasPrefix(got, "350") {
		t.Fatalf("RNFR reply = %q, want 350", got)
	}
	send(t, conn, "RNTO b.txt")
	if got := readReply(t, reader); !strings.HasPrefix(got, "250") {
		t.Fatalf("RNTO reply = %q, want 250", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.txt")); err != nil {
		t.Fatalf("expected renamed file to exist: %v", err)
	}

	// A non-RNTO command in between clears RENAME_PENDING: an RNTO whose
	// RNFR was not the immediately preceding command must be rejected.
	send(t, conn, "RNFR b.txt")
	readReply(t, reader)
	send(t, conn, "NOOP")
	readReply(t, reader)
	send(t, conn, "RNTO c.txt")
	if got := readReply(t, reader); !strings.HasPrefix(got, "503") {
		t.Fatalf("RNTO after intervening command reply = %q, want 503", got)
	}
}

func TestScenarioPassiveListing(t *testing.T) {
	reader, conn, dir, cleanup := startTestServer(t)
	defer cleanup()

	if err := os.WriteFile(filepath.Join(dir, "one.txt"), []byte("1"), 0644); err != nil {
		t.Fatal(err)
	}

	send(t, conn, "PASV")
	reply := readReply(t, reader)
	host, port := parsePasvReply(t, reply)

	data, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 3*time.Second)
	if err != nil {
		t.Fatalf("dial passive port: %v", err)
	}
	defer data.Close()

	send(t, conn, "LIST")
	if got := readReply(t, reader); !strings.HasPrefix(got, "150") {
		t.Fatalf("LIST reply = %q, want 150", got)
	}

	out, err := io.ReadAll(data)
	if err != nil {
		t.Fatalf("read listing: %v", err)
	}
	if !strings.Contains(string(out), "one.txt") {
		t.Fatalf("listing = %q, want it to contain one.txt", out)
	}

	if got := readReply(t, reader); !strings.HasPrefix(got, "226") {
		t.Fatalf("post-LIST reply = %q, want 226", got)
	}
}

func TestScenarioActiveRetrieve(t *testing.T) {
	reader, conn, dir, cleanup := startTestServer(t)
	defer cleanup()

	want := "active mode payload"
	if err := os.WriteFile(filepath.Join(dir, "f.bin"), []byte(want), 0644); err != nil {
		t.Fatal(err)
	}

	localListener, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer localListener.Close()

	localPort := localListener.Addr().(*net.TCPAddr).Port
	received := make(chan []byte, 1)
	go func() {
		c, err := localListener.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer c.Close()
		b, _ := io.ReadAll(c)
		received <- b
	}()

	send(t, conn, fmt.Sprintf("PORT 127,0,0,1,%d,%d", localPort>>8, localPort&0xFF))
	if got := readReply(t, reader); !strings.HasPrefix(got, "200") {
		t.Fatalf("PORT reply = %q, want 200", got)
	}

	send(t, conn, "RETR f.bin")
	if got := readReply(t, reader); !strings.HasPrefix(got, "150") {
		t.Fatalf("RETR reply = %q, want 150", got)
	}

	select {
	case b := <-received:
		if string(b) != want {
			t.Fatalf("received %q, want %q", b, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for active-mode data")
	}

	if got := readReply(t, reader); !strings.HasPrefix(got, "226") {
		t.Fatalf("post-RETR reply = %q, want 226", got)
	}
}

func TestScenarioPortRejectsOutOfRangeOctet(t *testing.T) {
	reader, conn, _, cleanup := startTestServer(t)
	defer cleanup()

	send(t, conn, "PORT 127,0,0,1,256,0")
	if got := readReply(t, reader); !strings.HasPrefix(got, "501") {
		t.Fatalf("PORT with octet>255 reply = %q, want 501", got)
	}

	send(t, conn, "PORT 127,0,0,1,0")
	if got := readReply(t, reader); !strings.HasPrefix(got, "501") {
		t.Fatalf("PORT with 5 fields reply = %q, want 501", got)
	}
}

// parsePasvReply extracts host:port from a 227 reply of the literal form
// spec.md §6/§8 pin: "227 h1,h2,h3,h4,p1,p2" — no wrapper text, no
// parentheses.
func parsePasvReply(t *testing.T, reply string) (string, int) {
	t.Helper()
	rest := strings.TrimPrefix(reply, "227 ")
	if rest == reply {
		t.Fatalf("malformed PASV reply: %q", reply)
	}
	parts := strings.Split(rest, ",")
	if len(parts) != 6 {
		t.Fatalf("malformed PASV reply fields: %q", reply)
	}
	var nums [6]int
	for i, p := range parts {
		fmt.Sscanf(p, "%d", &nums[i])
	}
	host := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
	port := nums[4]<<8 | nums[5]
	return host, port
}
