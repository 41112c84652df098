package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsClassifiesByKind(t *testing.T) {
	err := New(NotFound, "job 42")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrAlreadyExists))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(New(NotFound, "x")))
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(OutOfMemory, cause)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.Equal(t, OutOfMemory, KindOf(err))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "invalid-argument: bad duration", New(InvalidArgument, "bad duration").Error())
	assert.Equal(t, "not-found", New(NotFound, "").Error())
}
