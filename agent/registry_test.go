package agent

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// ops > 0 register pid op, ops < 0 unregister pid -op, 0 is skipped
func replay(r *Registry, ops []int) map[int32]bool {
	want := map[int32]bool{}
	for _, op := range ops {
		switch {
		case op > 0:
			r.Register(int32(op))
			want[int32(op)] = true
		case op < 0:
			r.Unregister(int32(-op))
			delete(want, int32(-op))
		}
	}
	return want
}

func TestRegistryReplay(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("registry holds exactly the pids whose last op was Register", prop.ForAll(
		func(ops []int) bool {
			r := NewRegistry()
			want := replay(r, ops)
			pids := r.Pids()
			if len(pids) != len(want) || r.Len() != len(want) {
				return false
			}
			seen := map[int32]bool{}
			for _, pid := range pids {
				if !want[pid] || seen[pid] {
					return false
				}
				seen[pid] = true
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-8, 8)),
	))
	properties.TestingRun(t)
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Register(7))
	assert.False(t, r.Register(7))
	assert.Equal(t, []int32{7}, r.Pids())
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry()
	for _, pid := range []int32{30, 10, 20, 10} {
		r.Register(pid)
	}
	assert.Equal(t, []int32{30, 10, 20}, r.Pids())

	assert.NoError(t, r.Unregister(10))
	r.Register(10)
	assert.Equal(t, []int32{30, 20, 10}, r.Pids())
}

func TestUnregisterAbsent(t *testing.T) {
	r := NewRegistry()
	r.Register(1)

	err := r.Unregister(2)
	if assert.IsType(t, &RegistryError{}, err) {
		assert.Equal(t, int32(2), err.(*RegistryError).Pid)
	}
	assert.Equal(t, []int32{1}, r.Pids())
	assert.True(t, r.Contains(1))
	assert.False(t, r.Contains(2))
}

func TestPidsIsSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register(1)
	pids := r.Pids()
	r.Register(2)
	assert.Equal(t, []int32{1}, pids)
}
