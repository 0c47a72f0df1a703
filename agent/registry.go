package agent

import (
	"fmt"
	"sync"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

// RegistryError is returned when Unregister names a pid that is not in the
// registry. The registry is left unchanged.
type RegistryError struct {
	Pid int32
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("pid %d is not registered", e.Pid)
}

// Registry is the set of worker pids known to be alive on this node, kept in
// order of first registration.
type Registry struct {
	mu   sync.RWMutex
	pids *linkedhashset.Set
}

func NewRegistry() *Registry {
	return &Registry{pids: linkedhashset.New()}
}

// Register adds pid and reports whether it was new.
func (r *Registry) Register(pid int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pids.Contains(pid) {
		return false
	}
	r.pids.Add(pid)
	return true
}

func (r *Registry) Unregister(pid int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.pids.Contains(pid) {
		return &RegistryError{Pid: pid}
	}
	r.pids.Remove(pid)
	return nil
}

func (r *Registry) Contains(pid int32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pids.Contains(pid)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pids.Size()
}

// Pids returns a snapshot of the registered pids in registration order.
func (r *Registry) Pids() []int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pids := make([]int32, 0, r.pids.Size())
	for _, v := range r.pids.Values() {
		pids = append(pids, v.(int32))
	}
	return pids
}
