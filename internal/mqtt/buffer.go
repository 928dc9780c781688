package mqtt

import "github.com/golang/glog"

// pending is a serialized message waiting for the broker.
type pending struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable. When
// full, the oldest message is overwritten. Not safe for concurrent use.
type outbox struct {
	msgs    []pending
	next    int // slot for the next push
	count   int
	dropped int // overwritten since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{msgs: make([]pending, capacity)}
}

func (o *outbox) push(msg pending) {
	size := len(o.msgs)
	if o.count == size {
		if o.dropped == 0 {
			glog.Warningf("mqtt: outbox full (%d messages), dropping oldest", size)
		}
		o.dropped++
	} else {
		o.count++
	}
	o.msgs[o.next] = msg
	o.next = (o.next + 1) % size
}

// drain returns the held messages oldest first and empties the outbox.
func (o *outbox) drain() []pending {
	if o.count == 0 {
		return nil
	}
	size := len(o.msgs)
	first := (o.next - o.count + size) % size
	out := make([]pending, o.count)
	for i := range out {
		j := (first + i) % size
		out[i] = o.msgs[j]
		o.msgs[j] = pending{}
	}
	if o.dropped > 0 {
		glog.Warningf("mqtt: %d messages lost while disconnected", o.dropped)
	}
	o.next, o.count, o.dropped = 0, 0, 0
	return out
}

func (o *outbox) len() int {
	return o.count
}
