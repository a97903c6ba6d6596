package utils

import (
	"testing"

	"go.viam.com/test"
)

func TestGuard(t *testing.T) {
	run := func(fail bool) (cleaned bool) {
		guard := NewGuard(func() { cleaned = true })
		defer guard.OnFail()
		if fail {
			return
		}
		guard.Success()
		return
	}
	test.That(t, run(true), test.ShouldBeTrue)
	test.That(t, run(false), test.ShouldBeFalse)
}
