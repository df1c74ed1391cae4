package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// pollWant is a small bitset of the readiness a caller is asking about for
// one fd.
type pollWant uint8

const (
	pollRead pollWant = 1 << iota
	pollWrite
)

// pollGot additionally reports a hangup/error condition, distinct from
// plain readability/writability.
type pollGot uint8

const (
	gotRead pollGot = 1 << iota
	gotWrite
	gotErrHup
)

type pollTarget struct {
	fd   int
	want pollWant
}

// pollReady issues one unix.Poll syscall across all of targets with a zero
// timeout, repeating it only if the call is interrupted (EINTR). It never blocks: timeout 0 means "return immediately with
// whatever is ready".
func pollReady(targets []pollTarget) ([]pollGot, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	fds := make([]unix.PollFd, len(targets))
	for i, t := range targets {
		var events int16
		if t.want&pollRead != 0 {
			events |= unix.POLLIN
		}
		if t.want&pollWrite != 0 {
			events |= unix.POLLOUT
		}
		fds[i] = unix.PollFd{Fd: int32(t.fd), Events: events}
	}

	for {
		_, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	results := make([]pollGot, len(targets))
	for i, pfd := range fds {
		var got pollGot
		if pfd.Revents&unix.POLLIN != 0 {
			got |= gotRead
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			got |= gotWrite
		}
		if pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			got |= gotErrHup
		}
		results[i] = got
	}
	return results, nil
}

// rawFD extracts the OS file descriptor backing a net.Conn/net.Listener so
// it can be handed to pollReady. The descriptor is only ever used for
// polling; all actual I/O still goes through the Go net package.
func rawFD(sc syscall.Conn) (int, error) {
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	ctrlErr := raw.Control(func(f uintptr) { fd = int(f) })
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}
