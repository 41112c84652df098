package restype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternReusesHandleAndCountsRefs(t *testing.T) {
	Reset()
	a := Intern("core")
	b := Intern("core")
	assert.Equal(t, a, b)
	assert.Equal(t, 2, RefCount(a))
	assert.Equal(t, "core", Name(a))
}

func TestReleaseFinalizesAtZero(t *testing.T) {
	Reset()
	id := Intern("gpu")
	Release(id)
	assert.Equal(t, 0, RefCount(id))
	assert.Equal(t, "", Name(id))
}

func TestDistinctNamesGetDistinctHandles(t *testing.T) {
	Reset()
	core := Intern("core")
	gpu := Intern("gpu")
	assert.NotEqual(t, core, gpu)
}
