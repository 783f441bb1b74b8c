//go:build windows || no_cgo

package solver

import (
	"testing"

	"go.viam.com/test"
)

func TestNloptUnsupported(t *testing.T) {
	_, err := NewNlopt(DefaultOptions(), nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "nlopt")
}
