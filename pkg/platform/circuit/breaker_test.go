package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// step is one Record call and what it should report.
type step struct {
	fail      bool
	wantUse   bool
	wantOpen  bool
	wantClose bool
	wantState State
}

func failure(use, opened bool, state State) step {
	return step{fail: true, wantUse: use, wantOpen: opened, wantState: state}
}

func success(use, closed bool, state State) step {
	return step{wantUse: use, wantClose: closed, wantState: state}
}

func TestBreaker_StateChanges(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens once at the failure threshold",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				failure(false, false, StateClosed),
				failure(false, false, StateClosed),
				failure(true, true, StateOpen),
				failure(true, false, StateOpen),
			},
		},
		{
			name: "closes once at the success threshold",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				failure(true, true, StateOpen),
				success(false, false, StateOpen),
				success(true, true, StateClosed),
				success(true, false, StateClosed),
			},
		},
		{
			name: "a success while closed clears the failure run",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				failure(false, false, StateClosed),
				success(true, false, StateClosed),
				failure(false, false, StateClosed),
				failure(true, true, StateOpen),
			},
		},
		{
			name: "a failure while open clears the success run",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				failure(true, true, StateOpen),
				success(false, false, StateOpen),
				failure(true, false, StateOpen),
				success(false, false, StateOpen),
				success(true, true, StateClosed),
			},
		},
		{
			name: "reopens after closing",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(1)},
			steps: []step{
				failure(true, true, StateOpen),
				success(true, true, StateClosed),
				failure(true, true, StateOpen),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("redis", tt.opts...)
			for i, st := range tt.steps {
				var use bool
				var change StateChange
				if st.fail {
					use, change = b.RecordFailure()
				} else {
					use, change = b.RecordSuccess()
				}
				assert.Equal(t, st.wantUse, use, "step %d", i)
				assert.Equal(t, StateChange{Opened: st.wantOpen, Closed: st.wantClose}, change, "step %d", i)
				assert.Equal(t, st.wantState, b.State(), "step %d", i)
			}
		})
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := New("kafka-audit", WithFailureThreshold(0), WithCooldown(-time.Second))
	assert.Equal(t, "kafka-audit", b.Name())
	assert.False(t, b.IsOpen())

	for range 4 {
		_, change := b.RecordFailure()
		assert.False(t, change.Opened)
	}
	_, change := b.RecordFailure()
	assert.True(t, change.Opened, "non-positive options keep the default threshold of five")
}

func TestBreaker_ResetClosesWithoutReporting(t *testing.T) {
	b := New("redis", WithFailureThreshold(1), WithSuccessThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())

	use, change := b.RecordSuccess()
	assert.True(t, use)
	assert.False(t, change.Closed, "already closed by Reset")
}

func TestBreaker_CooldownGatesProbes(t *testing.T) {
	now := time.Date(2023, 4, 20, 5, 30, 0, 0, time.UTC)
	b := New("kafka", WithFailureThreshold(1), WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }))

	assert.True(t, b.Allow())
	_, change := b.RecordFailure()
	assert.True(t, change.Opened)
	assert.False(t, b.Allow())

	now = now.Add(time.Minute)
	assert.True(t, b.Allow(), "probe allowed once the cooldown elapses")
	assert.True(t, b.IsOpen())

	// a failed probe restarts the cooldown
	b.RecordFailure()
	assert.False(t, b.Allow())
	now = now.Add(59 * time.Second)
	assert.False(t, b.Allow())
	now = now.Add(time.Second)
	assert.True(t, b.Allow())
}
