package agent

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/twitter/cosched/common/stats"
	"github.com/twitter/cosched/protocol"
)

const DefaultMaxSignalConcurrency = 64

// fanout delivers one Stop or Cont to a set of pids, one goroutine per pid,
// with at most max deliveries in flight. Deliver returns once every target
// has been attempted.
type fanout struct {
	sig  Signaler
	sem  *semaphore.Weighted
	stat stats.StatsReceiver
}

func newFanout(sig Signaler, max int, stat stats.StatsReceiver) *fanout {
	if max <= 0 {
		max = DefaultMaxSignalConcurrency
	}
	return &fanout{sig: sig, sem: semaphore.NewWeighted(int64(max)), stat: stat}
}

func (f *fanout) Deliver(kind protocol.Kind, pids []int32) []*SignalError {
	defer f.stat.Latency(stats.AgentFanoutLatency_ms).Time().Stop()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []*SignalError
	)
	ctx := context.Background()
	for _, pid := range pids {
		if err := f.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(pid int32) {
			defer wg.Done()
			defer f.sem.Release(1)
			f.stat.Counter(stats.AgentSignalCounter).Inc(1)
			if err := deliver(f.sig, kind, pid); err != nil {
				f.stat.Counter(stats.AgentSignalErrCounter).Inc(1)
				mu.Lock()
				failed = append(failed, err.(*SignalError))
				mu.Unlock()
			}
		}(pid)
	}
	wg.Wait()
	return failed
}
