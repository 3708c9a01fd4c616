package pcd

// Leftover stitches records that straddle chunk boundaries. Between chunks it
// holds fewer bytes than one record, and it is emptied exactly when the
// pending record is completed.
type Leftover struct {
	size int
	buf  []byte
}

func NewLeftover(size int) *Leftover {
	return &Leftover{size: size, buf: make([]byte, 0, size)}
}

func (l *Leftover) Size() int {
	return l.size
}

func (l *Leftover) Len() int {
	return len(l.buf)
}

func (l *Leftover) Reset() {
	l.buf = l.buf[:0]
}

// fill moves bytes from the head of chunk into the pending record. It returns
// the completed record, or nil when chunk was too short, and the number of
// chunk bytes taken. The record is only valid until the next call.
func (l *Leftover) fill(chunk []byte) (rec []byte, n int) {
	need := l.size - len(l.buf)
	if len(chunk) < need {
		l.buf = append(l.buf, chunk...)
		return nil, len(chunk)
	}
	l.buf = append(l.buf, chunk[:need]...)
	rec = l.buf
	l.buf = l.buf[:0]
	return rec, need
}

// Split calls fn for every complete record in the pending bytes followed by
// chunk, in order, and keeps the incomplete tail. If fn returns false the
// rest of chunk is dropped and Split returns false.
func (l *Leftover) Split(chunk []byte, fn func(rec []byte) bool) bool {
	if l.size <= 0 {
		return true
	}
	off := 0
	if len(l.buf) > 0 {
		rec, n := l.fill(chunk)
		off = n
		if rec == nil {
			return true
		}
		if !fn(rec) {
			return false
		}
	}
	for off+l.size <= len(chunk) {
		if !fn(chunk[off : off+l.size]) {
			return false
		}
		off += l.size
	}
	l.buf = append(l.buf, chunk[off:]...)
	return true
}
