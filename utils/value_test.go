package utils

import (
	"testing"

	"go.viam.com/test"
)

func TestAssertType(t *testing.T) {
	one := 1
	_, err := AssertType[string](one)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldEqual, "expected string but got int")

	table, err := AssertType[map[string]interface{}](map[string]interface{}{"erode": 3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, table["erode"], test.ShouldEqual, 3)

	_, err = AssertType[map[string]interface{}](int64(4))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "but got int64")
}
