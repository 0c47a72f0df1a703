package transport

import (
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/cosched/common/stats"
	"github.com/twitter/cosched/protocol"
)

// Broadcaster sends one identical datagram to every peer.
type Broadcaster struct {
	conn  *Conn
	peers []*net.UDPAddr
	stat  stats.StatsReceiver
}

func NewBroadcaster(conn *Conn, peers []*net.UDPAddr, stat stats.StatsReceiver) *Broadcaster {
	stat.Gauge(stats.CoordAgentCountGauge).Update(int64(len(peers)))
	return &Broadcaster{conn: conn, peers: peers, stat: stat}
}

func (b *Broadcaster) Peers() []*net.UDPAddr {
	return b.peers
}

// Broadcast encodes req once and sends it to every peer in order. A failed
// destination is logged and skipped; the failures are returned.
func (b *Broadcaster) Broadcast(req protocol.Request) []*SendError {
	defer b.stat.Latency(stats.CoordBroadcastLatency_ms).Time().Stop()

	buf := protocol.Encode(req)
	var failed []*SendError
	for _, peer := range b.peers {
		if err := b.conn.send(buf[:], peer); err != nil {
			serr := &SendError{Addr: peer, Req: req, Err: err}
			failed = append(failed, serr)
			b.stat.Counter(stats.CoordSendErrCounter).Inc(1)
			log.WithFields(log.Fields{"req": req, "peer": peer, "err": err}).Error("broadcast send failed")
			continue
		}
		log.WithFields(log.Fields{"req": req, "peer": peer}).Debug("sent request")
	}
	return failed
}

// Forwarder sends every request to a single fixed peer.
type Forwarder struct {
	conn *Conn
	peer *net.UDPAddr
}

func NewForwarder(conn *Conn, peer *net.UDPAddr) *Forwarder {
	return &Forwarder{conn: conn, peer: peer}
}

func (f *Forwarder) Relay(req protocol.Request) error {
	return f.conn.SendTo(req, f.peer)
}

func (f *Forwarder) Peer() *net.UDPAddr {
	return f.peer
}
