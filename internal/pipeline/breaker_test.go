package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestBreaker_Lifecycle(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	b := NewBreaker(2, 10*time.Second)
	b.now = clk.now

	var transitions []string
	b.OnStateChange(func(from, to State) { transitions = append(transitions, from.String()+"->"+to.String()) })

	fail := errors.New("fail")
	calls := 0
	failing := func() error { calls++; return fail }
	ok := func() error { calls++; return nil }

	assert.ErrorIs(t, b.Call(failing), fail)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Call(failing), fail)
	assert.Equal(t, StateOpen, b.State())

	// 熔断期内不调用
	assert.ErrorIs(t, b.Call(ok), ErrCircuitOpen)
	assert.Equal(t, 2, calls)

	clk.t = clk.t.Add(10 * time.Second)
	require.NoError(t, b.Call(ok))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Call(ok))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
	assert.Equal(t, int64(1), b.Trips())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	b := NewBreaker(1, time.Second)
	b.now = clk.now

	fail := errors.New("fail")
	_ = b.Call(func() error { return fail })
	require.Equal(t, StateOpen, b.State())

	clk.t = clk.t.Add(time.Second)
	assert.ErrorIs(t, b.Call(func() error { return fail }), fail)
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, int64(2), b.Trips())
	assert.ErrorIs(t, b.Call(func() error { return nil }), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker(2, time.Second)
	fail := errors.New("fail")
	_ = b.Call(func() error { return fail })
	_ = b.Call(func() error { return nil })
	_ = b.Call(func() error { return fail })
	assert.Equal(t, StateClosed, b.State())
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(0, 0)
	assert.Equal(t, 5, b.threshold)
	assert.Equal(t, 30*time.Second, b.cooldown)
	assert.Equal(t, "unknown", State(9).String())
}
