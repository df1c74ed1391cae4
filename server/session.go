package server

import (
	"bufio"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"
)

// sessionState is one of Command, DataConnect, DataTransfer. It determines
// which fd is relevant on the next poll tick, so the engine never
// enumerates cases for fds that cannot be ready in a given state.
type sessionState int

const (
	stateCommand sessionState = iota
	stateDataConnect
	stateDataTransfer
)

func (st sessionState) String() string {
	switch st {
	case stateCommand:
		return "command"
	case stateDataConnect:
		return "data-connect"
	case stateDataTransfer:
		return "data-transfer"
	default:
		return "unknown"
	}
}

// dataMode is PASV vs PORT vs neither.
type dataMode int

const (
	modeNone dataMode = iota
	modePassive
	modeActive
)

// maxCommandLen bounds one command read; the line handed to dispatch is
// truncated to maxCommandLen-1 bytes.
const maxCommandLen = 1024

// session holds all per-client state. At most one of {pasvListener,
// dataConn} is meaningful at a time, mirroring the state machine's cleanup
// contract in setState.
type session struct {
	id     uint64
	server *Server

	conn   net.Conn
	cmdFD  int
	cmdBuf [maxCommandLen]byte
	writer *bufio.Writer

	remoteIP string
	user     string
	fs       FileSystem

	cwd           string
	renamePending bool
	renameFrom    string

	state sessionState
	mode  dataMode

	peerAddr *net.TCPAddr // PORT target

	pasvListener *net.TCPListener
	pasvFD       int

	dataConn net.Conn
	dataFD   int

	xfer        *transfer // active, once state==stateDataTransfer
	pendingXfer *transfer // armed but awaiting a data connection

	replyCode int
	replyText string

	lastReplyCode int

	destroyed bool
}

func newSession(srv *Server, conn *net.TCPConn) (*session, error) {
	cmdFD, err := rawFD(conn)
	if err != nil {
		return nil, err
	}

	fs, err := srv.driver.Authenticate("", "", "")
	if err != nil {
		return nil, err
	}

	s := &session{
		server:   srv,
		conn:     conn,
		cmdFD:    cmdFD,
		writer:   bufio.NewWriter(conn),
		remoteIP: remoteIPOf(conn),
		fs:       fs,
		cwd:      "/",
		state:    stateCommand,
		mode:     modeNone,
		pasvFD:   -1,
		dataFD:   -1,
	}
	return s, nil
}

func remoteIPOf(conn net.Conn) string {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return conn.RemoteAddr().String()
	}
	return addr.IP.String()
}

func (s *session) log() *slog.Logger {
	return s.server.logger.With("session_id", s.id, "remote_ip", s.remoteIP)
}

// logf implements diagnosticLogger for response.go.
func (s *session) logf(format string, args ...any) {
	s.log().Warn(formatLog(format, args...))
}

// redactPath applies the server's configured PathRedactor, if any, before a
// path is written to the log. Without one it returns path unchanged.
func (s *session) redactPath(path string) string {
	if s.server.pathRedactor == nil {
		return path
	}
	return s.server.pathRedactor(path)
}

// reply sends one formatted reply on the command connection and records it
// as the session's last reply code, which dispatch uses to classify a
// command as successful for metrics purposes.
func (s *session) reply(code int, text string) {
	s.lastReplyCode = code
	writeReply(s.writer, s, code, text)
}

// replyError translates a FileSystem/path error into the matching FTP
// reply (os.IsNotExist/IsPermission/IsExist map to the 550 family).
func (s *session) replyError(err error) {
	switch {
	case isNotExist(err):
		s.reply(550, "File not found.")
	case isPermission(err):
		s.reply(550, "Permission denied.")
	case isExist(err):
		s.reply(550, "File already exists.")
	default:
		s.reply(550, "Action not taken.")
	}
}

// setState applies the state machine's cleanup contract: every transition
// releases every socket no longer needed by the new state.
func (s *session) setState(next sessionState) {
	switch next {
	case stateCommand:
		s.closePasv()
		s.closeData()
	case stateDataConnect:
		s.closeData()
	case stateDataTransfer:
		s.closePasv()
	}
	s.state = next
}

func (s *session) closePasv() {
	if s.pasvListener != nil {
		s.pasvListener.Close()
		s.pasvListener = nil
		s.pasvFD = -1
	}
}

func (s *session) closeData() {
	if s.xfer != nil {
		if s.xfer.file != nil {
			s.xfer.file.Close()
		}
		s.xfer = nil
	}
	if s.pendingXfer != nil {
		if s.pendingXfer.file != nil {
			s.pendingXfer.file.Close()
		}
		s.pendingXfer = nil
	}
	if s.dataConn != nil {
		s.dataConn.Close()
		s.dataConn = nil
		s.dataFD = -1
	}
}

// destroy releases every resource the session owns. Called once, when the
// command socket is observed closed.
func (s *session) destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.closePasv()
	s.closeData()
	s.conn.Close()
	if s.fs != nil {
		s.fs.Close()
	}
}

// relevantTarget returns the one fd this session cares about given its
// current state, and which readiness direction it wants.
func (s *session) relevantTarget() pollTarget {
	switch s.state {
	case stateDataConnect:
		return pollTarget{fd: s.pasvFD, want: pollRead}
	case stateDataTransfer:
		if s.xfer != nil && s.xfer.receiving {
			return pollTarget{fd: s.dataFD, want: pollRead}
		}
		return pollTarget{fd: s.dataFD, want: pollWrite}
	default:
		return pollTarget{fd: s.cmdFD, want: pollRead}
	}
}

// onReady drives the behavior for the session's current state, given the
// readiness bits observed for its relevant fd this tick.
func (s *session) onReady(got pollGot) {
	switch s.state {
	case stateCommand:
		s.pollCommand(got)
	case stateDataConnect:
		s.pollDataConnect(got)
	case stateDataTransfer:
		s.pollDataTransfer(got)
	}
}

func (s *session) pollCommand(got pollGot) {
	if got&gotErrHup != 0 {
		s.destroy()
		return
	}
	if got&gotRead == 0 {
		return
	}
	s.readCommand()
}

func (s *session) pollDataConnect(got pollGot) {
	if got&gotErrHup != 0 {
		s.reply(426, "Data connection failed.")
		s.setState(stateCommand)
		return
	}
	if got&gotRead == 0 {
		return
	}

	conn, err := s.pasvListener.Accept()
	if err != nil {
		s.reply(425, "Failed to establish connection.")
		s.setState(stateCommand)
		return
	}
	fd, ferr := rawFD(conn.(syscall.Conn))
	if ferr != nil {
		conn.Close()
		s.reply(425, "Failed to establish connection.")
		s.setState(stateCommand)
		return
	}

	s.dataConn = conn
	s.dataFD = fd
	s.xfer = s.pendingXfer
	s.pendingXfer = nil
	s.mode = modeNone
	s.setState(stateDataTransfer)
	s.reply(150, "Ready.")
}

func (s *session) pollDataTransfer(got pollGot) {
	if got&gotErrHup != 0 {
		s.recordTransferMetric()
		s.reply(426, "Data connection broken.")
		s.setState(stateCommand)
		return
	}

	want := s.relevantTarget().want
	if want == pollRead && got&gotRead == 0 {
		return
	}
	if want == pollWrite && got&gotWrite == 0 {
		return
	}

	for {
		switch s.step() {
		case stepAgain:
			continue
		case stepBlocked:
			return
		case stepComplete:
			s.recordTransferMetric()
			s.reply(226, "Transfer complete.")
			s.setState(stateCommand)
			return
		case stepFailed:
			s.recordTransferMetric()
			code, text := s.replyCode, s.replyText
			if code == 0 {
				code, text = 426, "Data connection broken."
			}
			s.reply(code, text)
			s.setState(stateCommand)
			return
		}
	}
}

func (s *session) recordTransferMetric() {
	if s.server.metricsCollector == nil || s.xfer == nil {
		return
	}
	s.server.metricsCollector.RecordTransfer(s.xfer.operationName(), s.xfer.bytesMoved, time.Since(s.xfer.startedAt))
}

// readCommand performs exactly one bounded, non-blocking read of whatever is
// available on the command connection into cmdBuf, splits it into verb +
// argument, and dispatches it. This must never block: readCommand runs
// synchronously from the single-threaded poll loop, and with no other
// goroutine servicing other sessions, a blocking read here would freeze
// every other session until this one's next byte arrived. The zero deadline
// makes the read return immediately with whatever is already buffered by
// the kernel, the same treatment session_transfer.go gives every
// data-socket read/write.
//
// A command that does not fit in one read is a documented limitation:
// whatever arrived in this one read is processed as the whole command,
// truncated at the first '\r' or '\n' if one appears.
func (s *session) readCommand() {
	s.conn.SetReadDeadline(time.Now())
	n, err := s.conn.Read(s.cmdBuf[:])
	if n == 0 {
		if err != nil && isWouldBlock(err) {
			return
		}
		s.destroy()
		return
	}

	line := string(s.cmdBuf[:n])
	if idx := strings.IndexAny(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	}
	if len(line) > maxCommandLen-1 {
		line = line[:maxCommandLen-1]
	}
	if line == "" {
		return
	}

	verb, arg := splitCommand(line)
	s.dispatch(verb, arg)
}

func splitCommand(line string) (verb, arg string) {
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return strings.ToUpper(line), ""
	}
	return strings.ToUpper(line[:idx]), strings.TrimSpace(line[idx+1:])
}
