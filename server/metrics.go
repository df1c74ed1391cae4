package server

import "time"

// MetricsCollector is the optional sink the session engine reports
// operational counters to. It is nil-checked once per call site rather than
// pushing that burden onto implementations, so every method must be safe to
// call unconditionally. A collector must never block or panic the caller,
// since it runs inline on the single poll goroutine; slow sinks should hand
// off to a channel or goroutine of their own.
type MetricsCollector interface {
	// RecordCommand is called once per dispatched verb (commands.go's
	// dispatch), after the handler returns. success reflects whether the
	// session's last reply code was below 400.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer is called once a LIST/RETR/STOR transfer leaves
	// DataTransfer state, successfully or not. operation is "LIST", "RETR",
	// or "STOR"; bytes is however much moved before the transfer ended.
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection is called for every accepted connection that becomes
	// a session and for every one rejected immediately for being over
	// WithMaxSessions; a connection dropped because session setup failed is
	// not recorded. reason names why ("accepted", "max_sessions_reached").
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication is called from handlePASS. Login never actually
	// fails in this server, so success is always true today; the hook
	// exists for a Driver that adds real gating later and for audit trails
	// that want the attempt logged regardless.
	RecordAuthentication(success bool, user string)
}

// PathRedactor rewrites a resolved path before it is attached to a log line,
// for deployments that don't want full filesystem paths sitting in logs.
// session.redactPath applies it, if set, to every path-mutating command's
// audit line (CWD, MKD, RMD, DELE, RNFR/RNTO, RETR, STOR).
//
// A redactor that keeps the first path component and blanks the rest:
//
//	func(path string) string {
//	    parts := strings.Split(path, "/")
//	    for i := 2; i < len(parts); i++ {
//	        parts[i] = "*"
//	    }
//	    return strings.Join(parts, "/")
//	}
type PathRedactor func(path string) string
