// Package probe implements the probe oracle: an asynchronous ICMP echo
// prober that submits timed, flow-identified queries and delivers exactly
// one reply per submission.
//
// See SPEC_FULL.md §4.b and spec.md §4.b/§6 for the external contract and
// wire format. The send/receive plumbing is adapted from the raw-socket,
// control-message based approach in the vendored UDP tracer, reworked
// around ICMP echo and an async callback instead of a synchronous loop.
package probe

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/gian-teixeira/tmp-remaprt/iface"
)

// DefaultRetryWait is how long Submit waits for a reply before resending.
const DefaultRetryWait = 500 * time.Millisecond

// DefaultPayloadLength is the ICMP echo payload size, large enough to hold
// the checksum-steering magic word.
const DefaultPayloadLength = 8

// bindToDevice restricts conn to ifaceName via SO_BINDTODEVICE, mirroring
// the raw-socket setsockopt calls the vendored UDP tracer makes for TTL
// and receive-timeout configuration.
func bindToDevice(conn *icmp.PacketConn, ifaceName string) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifaceName)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Reply is delivered to a submission's callback exactly once.
type Reply struct {
	IP     uint32
	FlowID int
	RTT    time.Duration
}

// ReplyFunc receives the outcome of a single Submit call.
type ReplyFunc func(Reply)

type pending struct {
	dst     net.IP
	ttl     int
	flowID  int
	retries int
	sent    int
	sentAt  time.Time
	timer   *time.Timer
	cb      ReplyFunc
}

// event carries one reply to the dispatch goroutine, pairing it with the
// submission's own callback rather than routing through a shared handler.
type event struct {
	cb ReplyFunc
	r  Reply
}

// Oracle is an ICMP-echo based probe oracle bound to a single raw socket
// and ICMP identifier. One Oracle serves one concurrent search driver; the
// driver is expected to keep at most one hop builder active at a time, so
// Submit calls in flight never reuse a flow-id/ttl pair.
//
// readLoop and each probe's retry timer run on their own goroutines and
// race to deliver replies, but neither ever calls a submission's callback
// directly: both hand the reply to events, a blocking queue drained by a
// single dispatch goroutine (the one "prober thread" in spec.md §5).
// Callbacks — and therefore all hop-builder state they touch — only ever
// run on that one goroutine.
type Oracle struct {
	icmpID int
	conn   *icmp.PacketConn
	ipconn *ipv4.PacketConn

	mu      sync.Mutex
	byFlow  map[int]*pending
	closed  bool
	closeCh chan struct{}
	events  chan event
}

// New opens a raw ICMPv4 socket bound to ifaceName (the capture interface,
// spec.md §6 `-i`) and ready to submit probes carrying icmpID as the echo
// identifier.
func New(ifaceName string, icmpID int) (*Oracle, error) {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("probe: open raw ICMP socket: %w", err)
	}

	ipconn := conn.IPv4PacketConn()
	if ifaceName != "" {
		if err := bindToDevice(conn, ifaceName); err != nil {
			glog.Warningf("probe: bind to interface %s: %v", ifaceName, err)
		}
	}

	o := &Oracle{
		icmpID:  icmpID & 0xffff,
		conn:    conn,
		ipconn:  ipconn,
		byFlow:  make(map[int]*pending),
		closeCh: make(chan struct{}),
		events:  make(chan event),
	}
	go o.readLoop()
	go o.dispatch()
	return o, nil
}

// dispatch is the sole consumer of events: every submission's callback
// runs here, one at a time, never concurrently with another callback.
func (o *Oracle) dispatch() {
	for {
		select {
		case e := <-o.events:
			e.cb(e.r)
		case <-o.closeCh:
			return
		}
	}
}

// enqueue hands a reply to dispatch, blocking until it is picked up or the
// oracle is closed.
func (o *Oracle) enqueue(cb ReplyFunc, r Reply) {
	select {
	case o.events <- event{cb: cb, r: r}:
	case <-o.closeCh:
	}
}

// Submit issues a probe to dst at ttl carrying flowID, sending it at most
// retries times in all (once when retries is below 2) before delivering a
// star reply. cb fires exactly once.
func (o *Oracle) Submit(dst uint32, ttl, flowID, retries int, cb ReplyFunc) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	p := &pending{
		dst:     iface.Uint32ToIP(dst),
		ttl:     ttl,
		flowID:  flowID,
		retries: retries,
		cb:      cb,
	}
	o.byFlow[flowID] = p
	o.mu.Unlock()

	o.fire(p)
	return nil
}

func (o *Oracle) fire(p *pending) {
	p.sent++
	p.sentAt = time.Now()
	if err := o.send(p.dst, p.ttl, p.flowID); err != nil {
		glog.Errorf("probe: send ttl=%d flow=%d: %v", p.ttl, p.flowID, err)
	}
	p.timer = time.AfterFunc(DefaultRetryWait, func() { o.timeout(p.flowID) })
}

func (o *Oracle) timeout(flowID int) {
	o.mu.Lock()
	p, ok := o.byFlow[flowID]
	if !ok {
		o.mu.Unlock()
		return
	}
	if p.sent < p.retries {
		o.mu.Unlock()
		o.fire(p)
		return
	}
	delete(o.byFlow, flowID)
	o.mu.Unlock()

	o.enqueue(p.cb, Reply{IP: iface.StarIP, FlowID: p.flowID})
}

func (o *Oracle) send(dst net.IP, ttl, flowID int) error {
	payload := make([]byte, DefaultPayloadLength)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   o.icmpID,
			Seq:  flowID & 0xffff,
			Data: payload,
		},
	}
	raw, err := msg.Marshal(nil)
	if err != nil {
		return err
	}
	steerChecksum(raw, uint16(flowID&0xffff))

	cm := &ipv4.ControlMessage{TTL: ttl}
	_, err = o.ipconn.WriteTo(raw, cm, &net.IPAddr{IP: dst})
	return err
}

func (o *Oracle) readLoop() {
	buf := make([]byte, 1500)
	for {
		select {
		case <-o.closeCh:
			return
		default:
		}

		n, cm, peer, err := o.ipconn.ReadFrom(buf)
		if err != nil {
			select {
			case <-o.closeCh:
				return
			default:
				continue
			}
		}
		_ = cm

		msg, err := icmp.ParseMessage(1 /* ICMPv4 protocol number */, buf[:n])
		if err != nil {
			continue
		}

		var ip4 net.IP
		if a, ok := peer.(*net.IPAddr); ok {
			ip4 = a.IP.To4()
		}
		if ip4 == nil {
			continue
		}
		ipU32, ok := iface.IPToUint32(ip4)
		if !ok {
			continue
		}

		switch body := msg.Body.(type) {
		case *icmp.Echo:
			if body.ID != o.icmpID {
				continue
			}
			o.deliver(body.Seq, ipU32)
		case *icmp.TimeExceeded:
			o.deliverFromEmbedded(body.Data, ipU32)
		case *icmp.DstUnreach:
			o.deliverFromEmbedded(body.Data, ipU32)
		}
	}
}

// deliverFromEmbedded extracts the original echo's identifier/sequence
// from the IP+ICMP header quoted inside a Time Exceeded or Destination
// Unreachable message.
func (o *Oracle) deliverFromEmbedded(quoted []byte, hop uint32) {
	ihl := 20
	if len(quoted) > 0 {
		ihl = int(quoted[0]&0x0f) * 4
	}
	if len(quoted) < ihl+8 {
		return
	}
	icmpHdr := quoted[ihl:]
	id := int(icmpHdr[4])<<8 | int(icmpHdr[5])
	seq := int(icmpHdr[6])<<8 | int(icmpHdr[7])
	if id != o.icmpID {
		return
	}
	o.deliver(seq, hop)
}

func (o *Oracle) deliver(flowID int, hop uint32) {
	o.mu.Lock()
	p, ok := o.byFlow[flowID]
	if !ok {
		o.mu.Unlock()
		return
	}
	delete(o.byFlow, flowID)
	o.mu.Unlock()

	p.timer.Stop()
	o.enqueue(p.cb, Reply{IP: hop, FlowID: flowID, RTT: time.Since(p.sentAt)})
}

// Close cancels all outstanding submissions and tears down the socket.
// Callbacks already scheduled before Close was called may still fire.
func (o *Oracle) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	for _, p := range o.byFlow {
		p.timer.Stop()
	}
	o.byFlow = make(map[int]*pending)
	o.mu.Unlock()

	close(o.closeCh)
	return o.conn.Close()
}
