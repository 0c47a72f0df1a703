// Package client is used by worker processes to talk to their node agent.
// Every call sends a single datagram and returns once it is written; there is
// no reply.
package client

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/twitter/cosched/config"
	"github.com/twitter/cosched/protocol"
	"github.com/twitter/cosched/transport"
)

const DefaultSendTimeout = 50 * time.Millisecond

type Client struct {
	conn *transport.Conn
	fwd  *transport.Forwarder
}

// New binds an ephemeral local port and targets the agent at addr (host:port).
// A loopback agent gets a socket bound to the matching loopback address.
func New(addr string) (*Client, error) {
	peer, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving agent address %q", addr)
	}
	conn, err := transport.ListenAddr(bindAddrFor(peer), DefaultSendTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "opening client socket")
	}
	return &Client{conn: conn, fwd: transport.NewForwarder(conn, peer)}, nil
}

func bindAddrFor(peer *net.UDPAddr) string {
	switch {
	case peer.IP.IsLoopback() && peer.IP.To4() != nil:
		return "127.0.0.1:0"
	case peer.IP.IsLoopback():
		return "[::1]:0"
	default:
		return ":0"
	}
}

// NewFromEnv targets the agent on this host, see AgentAddrFromEnv.
func NewFromEnv() (*Client, error) {
	addr, err := AgentAddrFromEnv()
	if err != nil {
		return nil, err
	}
	return New(addr)
}

func (c *Client) Addr() string {
	return c.fwd.Peer().String()
}

func (c *Client) Send(req protocol.Request) error {
	if err := c.fwd.Relay(req); err != nil {
		return errors.Wrapf(err, "sending %s", req)
	}
	return nil
}

func (c *Client) Register(pid int32) error   { return c.Send(protocol.NewRegister(pid)) }
func (c *Client) Unregister(pid int32) error { return c.Send(protocol.NewUnregister(pid)) }
func (c *Client) CommBegin() error           { return c.Send(protocol.NewCommBegin()) }
func (c *Client) CommEnd() error             { return c.Send(protocol.NewCommEnd()) }

// RegisterSelf registers the calling process.
func (c *Client) RegisterSelf() error {
	return c.Register(int32(os.Getpid()))
}

func (c *Client) UnregisterSelf() error {
	return c.Unregister(int32(os.Getpid()))
}

// InComm brackets fn with CommBegin and CommEnd. CommEnd is sent even when fn
// fails; fn's error takes precedence over a failed CommEnd.
func (c *Client) InComm(fn func() error) (err error) {
	if err := c.CommBegin(); err != nil {
		return err
	}
	defer func() {
		if endErr := c.CommEnd(); err == nil {
			err = endErr
		}
	}()
	return fn()
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// AgentAddrFromEnv returns localhost:$COSCHED_AGENT_PORT, or the default
// agent port when unset.
func AgentAddrFromEnv() (string, error) {
	return agentAddr(os.LookupEnv)
}

func agentAddr(lookup config.LookupFunc) (string, error) {
	port := protocol.DefaultAgentPort
	if v, ok := lookup(config.EnvAgentPort); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return "", &config.ConfigError{Field: config.EnvAgentPort, Reason: "not a port: " + v}
		}
		port = p
	}
	return net.JoinHostPort("localhost", strconv.Itoa(port)), nil
}
