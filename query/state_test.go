package query

import "testing"

func TestClassifyLegalCombinations(t *testing.T) {
	tests := []struct {
		name string
		r    rawState
		want state
	}{
		{
			name: "pending",
			r:    rawState{isPending: true},
			want: statePending,
		},
		{
			name: "in progress",
			r:    rawState{isAttempted: true, hasAnyLease: true, hasActiveLease: true},
			want: stateInProgress,
		},
		{
			name: "missing",
			r:    rawState{isAttempted: true, hasAnyLease: true, hasActiveLease: false},
			want: stateMissing,
		},
		{
			name: "failed",
			r:    rawState{isAttempted: true, hasFailedAttempts: true, hasErrors: true},
			want: stateFailed,
		},
		{
			name: "succeeded",
			r:    rawState{isAttempted: true, isSucceeded: true},
			want: stateSucceeded,
		},
		{
			name: "dead",
			r:    rawState{isAttempted: true, hasErrors: true, isDead: true},
			want: stateDead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.r.classify()
			if got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyPanicsOnIllegalCombination(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected classify to panic on an illegal state vector")
		}
	}()

	// pending and succeeded simultaneously: no lifecycle row matches this.
	rawState{isPending: true, isSucceeded: true}.classify()
}
