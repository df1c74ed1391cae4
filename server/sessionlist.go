package server

// sessionList is an owning, ordered registry of sessions, keyed by a stable
// integer id: a plain owning map plus an ordered slice of ids.
//
// Iteration is defensive: remove() may be called while a caller holds an id
// captured before the current entry's handler ran, so removing an id that
// is mid-iteration never invalidates ids captured earlier.
type sessionList struct {
	byID  map[uint64]*session
	order []uint64
	seq   uint64
}

func newSessionList() *sessionList {
	return &sessionList{byID: make(map[uint64]*session)}
}

func (l *sessionList) add(s *session) {
	l.seq++
	s.id = l.seq
	l.byID[s.id] = s
	l.order = append(l.order, s.id)
}

func (l *sessionList) remove(id uint64) {
	delete(l.byID, id)
	for i, existing := range l.order {
		if existing == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *sessionList) len() int { return len(l.order) }

// snapshot returns the sessions live at call time, in registration order.
// The caller may safely destroy sessions while iterating the result since
// it is a copy of the id order, not a live view.
func (l *sessionList) snapshot() []*session {
	out := make([]*session, 0, len(l.order))
	for _, id := range l.order {
		if s, ok := l.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}
