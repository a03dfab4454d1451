package errx

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestWrapMatchesSentinelAndCause(t *testing.T) {
	err := Wrap(errSentinel, io.EOF)
	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "sentinel: EOF", err.Error())
}

func TestWrapNilCause(t *testing.T) {
	assert.Same(t, errSentinel, Wrap(errSentinel, nil))
}

func TestWithFormatsContext(t *testing.T) {
	err := With(errSentinel, ": stream %d", 7)
	assert.ErrorIs(t, err, errSentinel)
	assert.Equal(t, "sentinel: stream 7", err.Error())
}

func TestWithWrapsExtraCause(t *testing.T) {
	err := With(errSentinel, " %s: %w", "urn:pkg:foo", io.ErrClosedPipe)
	assert.ErrorIs(t, err, errSentinel)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
