package vl53l3cx

import (
	"testing"

	"go.viam.com/test"
)

func TestCycleStateTransitions(t *testing.T) {
	states := []CycleState{Idle, Started, Ready}
	legal := map[[2]CycleState]bool{
		{Idle, Started}:  true,
		{Started, Ready}: true,
		{Ready, Idle}:    true,
		{Ready, Started}: true,
	}
	for _, from := range states {
		for _, to := range states {
			test.That(t, CanTransition(from, to), test.ShouldEqual, legal[[2]CycleState{from, to}])
		}
	}
	test.That(t, CanTransition(CycleState(7), Idle), test.ShouldBeFalse)

	test.That(t, Idle.String(), test.ShouldEqual, "idle")
	test.That(t, Started.String(), test.ShouldEqual, "started")
	test.That(t, Ready.String(), test.ShouldEqual, "ready")
	test.That(t, CycleState(7).String(), test.ShouldEqual, "unknown")
}
