package mqtt

import "github.com/sweeney/iib-interlock/internal/log"

// bufferedMsg is a serialized message held for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds messages while disconnected, dropping the oldest when
// full. Callers synchronize.
type ringBuffer struct {
	buf     []bufferedMsg
	next    int // write position
	count   int
	dropped int // since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	size := len(r.buf)
	if r.count == size {
		if r.dropped == 0 {
			log.Warning("mqtt: buffer full (%d messages), dropping oldest", size)
		}
		r.dropped++
	} else {
		r.count++
	}
	r.buf[r.next] = msg
	r.next = (r.next + 1) % size
}

// drainAll returns the buffered messages oldest first and the number dropped
// since the previous drain, and empties the buffer.
func (r *ringBuffer) drainAll() ([]bufferedMsg, int) {
	dropped := r.dropped
	r.dropped = 0
	if r.count == 0 {
		return nil, dropped
	}

	size := len(r.buf)
	out := make([]bufferedMsg, 0, r.count)
	for i := r.next - r.count; i < r.next; i++ {
		out = append(out, r.buf[(i+size)%size])
	}
	r.count = 0
	r.next = 0
	return out, dropped
}

func (r *ringBuffer) len() int {
	return r.count
}
