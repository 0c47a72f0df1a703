package coordinator

//go:generate mockgen -source=coordinator.go -package=coordinator -destination=coordinator_mock.go

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/cosched/common/stats"
	"github.com/twitter/cosched/protocol"
	"github.com/twitter/cosched/transport"
)

// Receiver reads requests relayed by the node agents.
// *transport.Conn implements it.
type Receiver interface {
	Recv() (protocol.Request, *net.UDPAddr, error)
	Close() error
}

// Broadcaster sends a request to every node agent.
// *transport.Broadcaster implements it.
type Broadcaster interface {
	Broadcast(req protocol.Request) []*transport.SendError
}

// Coordinator decides when the job runs and when it is suspended.
//
// It has two duties running concurrently: the receive loop applies
// CommBegin/CommEnd to the communication counter, and the control loop wakes
// every CheckInterval, evaluates the Timeslice and broadcasts Stop or Cont
// on a phase change. The counter is the only state they share. phase and
// since belong to the control loop.
type Coordinator struct {
	recv      Receiver
	bcast     Broadcaster
	timeslice Timeslice
	stat      stats.StatsReceiver
	drops     *transport.DropLog
	now       func() time.Time

	counter CommCounter

	phase Phase
	since time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
	started  atomic.Bool
	loopDone chan struct{}
}

func NewCoordinator(recv Receiver, bcast Broadcaster, ts Timeslice, stat stats.StatsReceiver) *Coordinator {
	c := &Coordinator{
		recv:      recv,
		bcast:     bcast,
		timeslice: ts,
		stat:      stat,
		drops:     transport.NewDropLog(time.Second, 10),
		now:       time.Now,
		phase:     Running,
		stopCh:    make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	c.since = c.now()
	return c
}

// Run starts the control loop and receives until the socket fails or Stop is
// called. A socket failure is returned as a *transport.ReceiveError; Stop
// makes Run return nil. Before Run returns, a suspended job is resumed.
func (c *Coordinator) Run() error {
	c.since = c.now()
	c.stat.Gauge(stats.CoordJobRunningGauge).Update(1)
	c.started.Store(true)
	if c.timeslice.Disabled() {
		log.WithFields(log.Fields{"guaranteed": c.timeslice.Guaranteed}).
			Warn("guaranteed timeslice is negative, job switching is off")
		close(c.loopDone)
	} else {
		log.Infof("coordinator running with %s", c.timeslice)
		go c.loop()
	}
	defer func() {
		c.halt()
		<-c.loopDone
	}()
	return c.receiveLoop()
}

// Stop ends both loops and closes the socket. The socket is closed only after
// the control loop has exited, since its final Cont goes out on it.
func (c *Coordinator) Stop() {
	c.stopped.Store(true)
	c.halt()
	if c.started.Load() {
		<-c.loopDone
	}
	c.recv.Close()
}

func (c *Coordinator) halt() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// InFlight returns the current communication counter.
func (c *Coordinator) InFlight() int64 {
	return c.counter.Load()
}

func (c *Coordinator) loop() {
	defer close(c.loopDone)
	ticker := time.NewTicker(c.timeslice.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			c.release()
			return
		case <-ticker.C:
		}
		c.step(c.now())
	}
}

// release resumes the job if the loop is leaving it suspended
func (c *Coordinator) release() {
	if c.phase != Suspended {
		return
	}
	log.Info("resuming suspended job before exit")
	c.bcast.Broadcast(protocol.NewCont())
	c.stat.Counter(stats.CoordContCounter).Inc(1)
	c.stat.Gauge(stats.CoordJobRunningGauge).Update(1)
	c.phase = Running
}

// run one control loop iteration as of now
func (c *Coordinator) step(now time.Time) {
	inFlight := c.counter.Load()
	c.stat.Gauge(stats.CoordCommInFlightGauge).Update(inFlight)

	elapsed := now.Sub(c.since)
	next, changed := c.timeslice.Next(c.phase, elapsed, inFlight)
	if !changed {
		return
	}

	var req protocol.Request
	if next == Suspended {
		req = protocol.NewStop()
		c.stat.Counter(stats.CoordStopCounter).Inc(1)
		c.stat.Gauge(stats.CoordJobRunningGauge).Update(0)
	} else {
		req = protocol.NewCont()
		c.stat.Counter(stats.CoordContCounter).Inc(1)
		c.stat.Gauge(stats.CoordJobRunningGauge).Update(1)
	}
	log.WithFields(log.Fields{
		"from":     c.phase,
		"to":       next,
		"elapsed":  elapsed,
		"inFlight": inFlight,
	}).Debug("phase change")

	c.bcast.Broadcast(req)
	c.phase = next
	c.since = now
}

func (c *Coordinator) receiveLoop() error {
	for {
		req, from, err := c.recv.Recv()
		if err != nil {
			switch err.(type) {
			case *protocol.DecodeError:
				c.stat.Counter(stats.CoordRecvCounter).Inc(1)
				c.stat.Counter(stats.CoordDecodeErrCounter).Inc(1)
				c.drops.Drop(err, from)
				continue
			}
			if c.stopped.Load() {
				log.Info("coordinator stopped")
				return nil
			}
			log.WithFields(log.Fields{"err": err}).Error("coordinator receive failed")
			return err
		}
		c.stat.Counter(stats.CoordRecvCounter).Inc(1)
		c.handle(req, from)
	}
}

func (c *Coordinator) handle(req protocol.Request, from *net.UDPAddr) {
	switch req.Kind {
	case protocol.CommBegin:
		n := c.counter.Begin()
		c.stat.Counter(stats.CoordCommBeginCounter).Inc(1)
		log.WithFields(log.Fields{"from": from, "inFlight": n}).Trace("comm begin")
	case protocol.CommEnd:
		n := c.counter.End()
		c.stat.Counter(stats.CoordCommEndCounter).Inc(1)
		if n < 0 {
			log.WithFields(log.Fields{"from": from, "inFlight": n}).Debug("communication counter below zero")
		}
	default:
		c.stat.Counter(stats.CoordIgnoredCounter).Inc(1)
		log.WithFields(log.Fields{"from": from, "req": req}).Debug("received request")
	}
}
