// Package agent runs on every compute node. It keeps the registry of local
// worker pids, relays every request it receives to the coordinator, and turns
// the coordinator's Stop and Cont into SIGSTOP and SIGCONT for each
// registered pid.
package agent

//go:generate mockgen -source=agent.go -package=agent -destination=agent_mock.go

import (
	"net"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/cosched/common/stats"
	"github.com/twitter/cosched/protocol"
	"github.com/twitter/cosched/transport"
)

// Receiver reads requests from workers and from the coordinator.
// *transport.Conn implements it.
type Receiver interface {
	Recv() (protocol.Request, *net.UDPAddr, error)
	Close() error
}

// Relayer forwards a request to the coordinator.
// *transport.Forwarder implements it.
type Relayer interface {
	Relay(req protocol.Request) error
}

type Options struct {
	MaxSignalConcurrency int
	// drop pids whose process no longer exists after a failed signal
	PruneDead bool
}

type Agent struct {
	recv     Receiver
	relay    Relayer
	registry *Registry
	fanout   *fanout
	opts     Options
	stat     stats.StatsReceiver
	drops    *transport.DropLog
	stopped  atomic.Bool
}

func NewAgent(recv Receiver, relay Relayer, sig Signaler, opts Options, stat stats.StatsReceiver) *Agent {
	if opts.MaxSignalConcurrency <= 0 {
		opts.MaxSignalConcurrency = DefaultMaxSignalConcurrency
	}
	return &Agent{
		recv:     recv,
		relay:    relay,
		registry: NewRegistry(),
		fanout:   newFanout(sig, opts.MaxSignalConcurrency, stat),
		opts:     opts,
		stat:     stat,
		drops:    transport.NewDropLog(time.Second, 10),
	}
}

func (a *Agent) Registry() *Registry {
	return a.registry
}

// Run handles requests until the socket fails or Stop is called. A socket
// failure is returned as a *transport.ReceiveError; Stop makes Run return nil.
func (a *Agent) Run() error {
	log.WithFields(log.Fields{
		"maxSignalConcurrency": a.opts.MaxSignalConcurrency,
		"pruneDead":            a.opts.PruneDead,
	}).Info("agent running")
	for {
		req, from, err := a.recv.Recv()
		if err != nil {
			switch err.(type) {
			case *protocol.DecodeError:
				a.stat.Counter(stats.AgentRecvCounter).Inc(1)
				a.stat.Counter(stats.AgentDecodeErrCounter).Inc(1)
				a.drops.Drop(err, from)
				continue
			}
			if a.stopped.Load() {
				log.Info("agent stopped")
				return nil
			}
			log.WithFields(log.Fields{"err": err}).Error("agent receive failed")
			return err
		}
		a.stat.Counter(stats.AgentRecvCounter).Inc(1)
		a.Handle(req, from)
	}
}

// Stop makes Run return and closes the socket.
func (a *Agent) Stop() {
	a.stopped.Store(true)
	a.recv.Close()
}

// Handle relays req to the coordinator, then applies its local effect.
func (a *Agent) Handle(req protocol.Request, from *net.UDPAddr) {
	log.WithFields(log.Fields{"from": from, "req": req}).Debug("received request")

	if err := a.relay.Relay(req); err != nil {
		a.stat.Counter(stats.AgentRelayErrCounter).Inc(1)
		log.WithFields(log.Fields{"req": req, "err": err}).Error("relay to coordinator failed")
	} else {
		a.stat.Counter(stats.AgentRelayCounter).Inc(1)
	}

	switch req.Kind {
	case protocol.Register:
		if !a.registry.Register(req.Pid) {
			log.WithFields(log.Fields{"pid": req.Pid}).Debug("pid already registered")
		}
		a.updateRegistered()
	case protocol.Unregister:
		if err := a.registry.Unregister(req.Pid); err != nil {
			a.stat.Counter(stats.AgentUnknownPidCounter).Inc(1)
			log.WithFields(log.Fields{"pid": req.Pid, "err": err}).Warn("unregister ignored")
		}
		a.updateRegistered()
	case protocol.Stop, protocol.Cont:
		a.signalAll(req.Kind)
	}
}

func (a *Agent) signalAll(kind protocol.Kind) {
	pids := a.registry.Pids()
	if len(pids) == 0 {
		return
	}
	failed := a.fanout.Deliver(kind, pids)
	for _, serr := range failed {
		log.WithFields(log.Fields{
			"pid":  serr.Pid,
			"kind": serr.Kind,
			"err":  serr.Err,
		}).Error("signal delivery failed")
		if a.opts.PruneDead && serr.Gone() {
			if a.registry.Unregister(serr.Pid) == nil {
				a.stat.Counter(stats.AgentPrunedCounter).Inc(1)
				log.WithFields(log.Fields{"pid": serr.Pid}).Info("pruned exited process")
			}
		}
	}
	if len(failed) > 0 {
		a.updateRegistered()
	}
}

func (a *Agent) updateRegistered() {
	a.stat.Gauge(stats.AgentRegisteredGauge).Update(int64(a.registry.Len()))
}
