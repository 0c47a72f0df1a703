package agent

import (
	"net"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/twitter/cosched/common/stats"
	"github.com/twitter/cosched/protocol"
	"github.com/twitter/cosched/transport"
)

func newTestAgent(recv Receiver, relay Relayer, sig Signaler, opts Options) (*Agent, stats.StatsRegistry) {
	reg := stats.NewFinagleStatsRegistry()
	stat := stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return reg })
	return NewAgent(recv, relay, sig, opts, stat), reg
}

func TestOptionsDefaultConcurrency(t *testing.T) {
	a, _ := newTestAgent(nil, nil, nil, Options{})
	assert.Equal(t, DefaultMaxSignalConcurrency, a.opts.MaxSignalConcurrency)

	a, _ = newTestAgent(nil, nil, nil, Options{MaxSignalConcurrency: -3})
	assert.Equal(t, DefaultMaxSignalConcurrency, a.opts.MaxSignalConcurrency)

	a, _ = newTestAgent(nil, nil, nil, Options{MaxSignalConcurrency: 8})
	assert.Equal(t, 8, a.opts.MaxSignalConcurrency)
}

func TestRegisterStopUnregisterStop(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	relay := NewMockRelayer(mockCtrl)
	sig := NewMockSignaler(mockCtrl)
	a, reg := newTestAgent(nil, relay, sig, Options{})

	gomock.InOrder(
		relay.EXPECT().Relay(protocol.NewRegister(42)).Return(nil),
		relay.EXPECT().Relay(protocol.NewStop()).Return(nil),
		relay.EXPECT().Relay(protocol.NewUnregister(42)).Return(nil),
		relay.EXPECT().Relay(protocol.NewStop()).Return(nil),
	)
	sig.EXPECT().Suspend(int32(42)).Return(nil).Times(1)

	a.Handle(protocol.NewRegister(42), nil)
	assert.Equal(t, []int32{42}, a.Registry().Pids())

	a.Handle(protocol.NewStop(), nil)

	a.Handle(protocol.NewUnregister(42), nil)
	assert.Empty(t, a.Registry().Pids())

	// no targets left, so no further Suspend
	a.Handle(protocol.NewStop(), nil)

	stats.VerifyStats("e2e", reg, t, map[string]stats.Rule{
		stats.AgentRelayCounter:     {Checker: stats.Int64EqTest, Value: 4},
		stats.AgentSignalCounter:    {Checker: stats.Int64EqTest, Value: 1},
		stats.AgentRegisteredGauge:  {Checker: stats.Int64EqTest, Value: 0},
		stats.AgentSignalErrCounter: {Checker: stats.DoesNotExistTest, Value: nil},
	})
}

func TestContResumesEveryPid(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	relay := NewMockRelayer(mockCtrl)
	relay.EXPECT().Relay(gomock.Any()).Return(nil).AnyTimes()
	sig := NewMockSignaler(mockCtrl)
	a, _ := newTestAgent(nil, relay, sig, Options{MaxSignalConcurrency: 2})

	for _, pid := range []int32{1, 2, 3, 4, 5} {
		a.Handle(protocol.NewRegister(pid), nil)
		sig.EXPECT().Resume(pid).Return(nil)
	}
	a.Handle(protocol.NewCont(), nil)
}

func TestCommRequestsAreRelayedOnly(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	relay := NewMockRelayer(mockCtrl)
	sig := NewMockSignaler(mockCtrl)
	a, _ := newTestAgent(nil, relay, sig, Options{})

	relay.EXPECT().Relay(protocol.NewRegister(3)).Return(nil)
	relay.EXPECT().Relay(protocol.NewCommBegin()).Return(nil)
	relay.EXPECT().Relay(protocol.NewCommEnd()).Return(nil)

	a.Handle(protocol.NewRegister(3), nil)
	a.Handle(protocol.NewCommBegin(), nil)
	a.Handle(protocol.NewCommEnd(), nil)
	assert.Equal(t, []int32{3}, a.Registry().Pids())
}

func TestRelayFailureStillAppliesLocally(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	relay := NewMockRelayer(mockCtrl)
	relay.EXPECT().Relay(gomock.Any()).Return(&transport.SendError{Err: net.ErrClosed}).AnyTimes()
	sig := NewMockSignaler(mockCtrl)
	sig.EXPECT().Suspend(int32(9)).Return(nil)
	a, reg := newTestAgent(nil, relay, sig, Options{})

	a.Handle(protocol.NewRegister(9), nil)
	a.Handle(protocol.NewStop(), nil)
	assert.True(t, a.Registry().Contains(9))

	stats.VerifyStats("relay", reg, t, map[string]stats.Rule{
		stats.AgentRelayErrCounter: {Checker: stats.Int64EqTest, Value: 2},
		stats.AgentRelayCounter:    {Checker: stats.DoesNotExistTest, Value: nil},
	})
}

func TestUnregisterUnknownPid(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	relay := NewMockRelayer(mockCtrl)
	relay.EXPECT().Relay(gomock.Any()).Return(nil).AnyTimes()
	a, reg := newTestAgent(nil, relay, NewMockSignaler(mockCtrl), Options{})

	a.Handle(protocol.NewRegister(1), nil)
	a.Handle(protocol.NewUnregister(2), nil)
	assert.Equal(t, []int32{1}, a.Registry().Pids())

	stats.VerifyStats("unknown", reg, t, map[string]stats.Rule{
		stats.AgentUnknownPidCounter: {Checker: stats.Int64EqTest, Value: 1},
		stats.AgentRegisteredGauge:   {Checker: stats.Int64EqTest, Value: 1},
	})
}

// fakeSignaler records deliveries and fails the pids in errs.
type fakeSignaler struct {
	mu        sync.Mutex
	suspended []int32
	resumed   []int32
	errs      map[int32]error
}

func (f *fakeSignaler) Suspend(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suspended = append(f.suspended, pid)
	return f.errs[pid]
}

func (f *fakeSignaler) Resume(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, pid)
	return f.errs[pid]
}

type nopRelayer struct{}

func (nopRelayer) Relay(protocol.Request) error { return nil }

func TestSignalFailureIsIsolated(t *testing.T) {
	sig := &fakeSignaler{errs: map[int32]error{2: unix.EPERM}}
	a, reg := newTestAgent(nil, nopRelayer{}, sig, Options{PruneDead: true})
	for _, pid := range []int32{1, 2, 3} {
		a.Handle(protocol.NewRegister(pid), nil)
	}

	a.Handle(protocol.NewStop(), nil)
	assert.ElementsMatch(t, []int32{1, 2, 3}, sig.suspended)
	// EPERM is not ESRCH, the pid stays
	assert.Equal(t, []int32{1, 2, 3}, a.Registry().Pids())

	stats.VerifyStats("isolated", reg, t, map[string]stats.Rule{
		stats.AgentSignalCounter:    {Checker: stats.Int64EqTest, Value: 3},
		stats.AgentSignalErrCounter: {Checker: stats.Int64EqTest, Value: 1},
		stats.AgentPrunedCounter:    {Checker: stats.DoesNotExistTest, Value: nil},
	})
}

func TestPruneDead(t *testing.T) {
	sig := &fakeSignaler{errs: map[int32]error{2: unix.ESRCH}}
	a, reg := newTestAgent(nil, nopRelayer{}, sig, Options{PruneDead: true})
	for _, pid := range []int32{1, 2, 3} {
		a.Handle(protocol.NewRegister(pid), nil)
	}

	a.Handle(protocol.NewStop(), nil)
	assert.Equal(t, []int32{1, 3}, a.Registry().Pids())

	a.Handle(protocol.NewCont(), nil)
	assert.ElementsMatch(t, []int32{1, 3}, sig.resumed)

	stats.VerifyStats("prune", reg, t, map[string]stats.Rule{
		stats.AgentPrunedCounter:   {Checker: stats.Int64EqTest, Value: 1},
		stats.AgentRegisteredGauge: {Checker: stats.Int64EqTest, Value: 2},
	})
}

func TestNoPruneKeepsDeadPids(t *testing.T) {
	sig := &fakeSignaler{errs: map[int32]error{2: unix.ESRCH}}
	a, _ := newTestAgent(nil, nopRelayer{}, sig, Options{PruneDead: false})
	a.Handle(protocol.NewRegister(2), nil)
	a.Handle(protocol.NewStop(), nil)
	a.Handle(protocol.NewStop(), nil)
	assert.Equal(t, []int32{2, 2}, sig.suspended)
	assert.Equal(t, []int32{2}, a.Registry().Pids())
}

type recvResult struct {
	req protocol.Request
	err error
}

// fakeReceiver hands out queued results, then blocks until closed.
type fakeReceiver struct {
	ch     chan recvResult
	closed chan struct{}
	once   sync.Once
}

func newFakeReceiver(results ...recvResult) *fakeReceiver {
	f := &fakeReceiver{ch: make(chan recvResult, len(results)), closed: make(chan struct{})}
	for _, r := range results {
		f.ch <- r
	}
	return f
}

func (f *fakeReceiver) Recv() (protocol.Request, *net.UDPAddr, error) {
	select {
	case r := <-f.ch:
		return r.req, nil, r.err
	case <-f.closed:
		return protocol.Request{}, nil, &transport.ReceiveError{Err: net.ErrClosed}
	}
}

func (f *fakeReceiver) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func TestRunDropsUndecodable(t *testing.T) {
	fatal := &transport.ReceiveError{Err: net.ErrClosed}
	recv := newFakeReceiver(
		recvResult{req: protocol.NewRegister(5)},
		recvResult{err: &protocol.DecodeError{Len: 12}},
		recvResult{req: protocol.NewRegister(6)},
		recvResult{err: fatal},
	)
	a, reg := newTestAgent(recv, nopRelayer{}, &fakeSignaler{}, Options{})

	assert.Equal(t, fatal, a.Run())
	assert.Equal(t, []int32{5, 6}, a.Registry().Pids())

	stats.VerifyStats("run", reg, t, map[string]stats.Rule{
		stats.AgentRecvCounter:      {Checker: stats.Int64EqTest, Value: 3},
		stats.AgentDecodeErrCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestStopEndsRun(t *testing.T) {
	recv := newFakeReceiver()
	a, _ := newTestAgent(recv, nopRelayer{}, &fakeSignaler{}, Options{})

	done := make(chan error)
	go func() { done <- a.Run() }()
	a.Stop()
	assert.NoError(t, <-done)
}
