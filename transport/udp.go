// Package transport carries protocol.Requests over UDP, one request per
// datagram. There is no acknowledgement, retransmission or ordering: callers
// tolerate loss, duplication and reordering.
package transport

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/cosched/protocol"
)

const BindAddr = "0.0.0.0"

// BindError is returned when the listening socket cannot be created.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind %s: %v", e.Addr, e.Err) }
func (e *BindError) Unwrap() error { return e.Err }

// ReceiveError means the socket itself failed; the receive loop cannot go on.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string { return fmt.Sprintf("receive: %v", e.Err) }
func (e *ReceiveError) Unwrap() error { return e.Err }

// SendError reports one failed datagram to one destination.
type SendError struct {
	Addr *net.UDPAddr
	Req  protocol.Request
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s to %s: %v", e.Req, e.Addr, e.Err)
}
func (e *SendError) Unwrap() error { return e.Err }

// Conn is a bound UDP socket that reads and writes Requests.
// Recv must only be called from one goroutine at a time.
type Conn struct {
	conn        *net.UDPConn
	sendTimeout time.Duration
	// one extra byte so oversized datagrams fail to decode instead of
	// being silently truncated to a valid length
	buf    []byte
	sendMu sync.Mutex
}

// Listen binds 0.0.0.0:port. Port 0 picks an ephemeral port.
func Listen(port int, sendTimeout time.Duration) (*Conn, error) {
	return ListenAddr(net.JoinHostPort(BindAddr, strconv.Itoa(port)), sendTimeout)
}

func ListenAddr(addr string, sendTimeout time.Duration) (*Conn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	log.WithFields(log.Fields{"addr": conn.LocalAddr()}).Info("listening")
	return &Conn{
		conn:        conn,
		sendTimeout: sendTimeout,
		buf:         make([]byte, protocol.RequestSize+1),
	}, nil
}

func (c *Conn) LocalAddr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

// Recv blocks for one datagram. A *protocol.DecodeError means the datagram
// was dropped and the caller should keep reading; a *ReceiveError means the
// socket is unusable.
func (c *Conn) Recv() (protocol.Request, *net.UDPAddr, error) {
	n, from, err := c.conn.ReadFromUDP(c.buf)
	if err != nil {
		return protocol.Request{}, nil, &ReceiveError{Err: err}
	}
	req, err := protocol.Decode(c.buf[:n])
	return req, from, err
}

// SendTo writes req to addr, giving up after the configured send timeout.
func (c *Conn) SendTo(req protocol.Request, addr *net.UDPAddr) error {
	buf := protocol.Encode(req)
	if err := c.send(buf[:], addr); err != nil {
		return &SendError{Addr: addr, Req: req, Err: err}
	}
	return nil
}

func (c *Conn) send(buf []byte, addr *net.UDPAddr) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.WriteToUDP(buf, addr)
	return err
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

// DefaultResolveBackOff retries name resolution for up to ~30s.
func DefaultResolveBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// ResolvePeers turns hosts into UDP addresses on the given port, retrying
// each lookup with b. Hosts are resolved once, at startup.
func ResolvePeers(hosts []string, port int, b backoff.BackOff) ([]*net.UDPAddr, error) {
	addrs := make([]*net.UDPAddr, 0, len(hosts))
	for _, host := range hosts {
		hostPort := net.JoinHostPort(host, strconv.Itoa(port))
		var addr *net.UDPAddr
		err := backoff.Retry(func() error {
			var err error
			addr, err = net.ResolveUDPAddr("udp", hostPort)
			if err != nil {
				log.WithFields(log.Fields{"peer": hostPort, "err": err}).Warn("resolve failed, retrying")
			}
			return err
		}, b)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving peer %s", hostPort)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
