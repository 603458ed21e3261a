// pkg/utils/utils_test.go

package utils

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlloc(t *testing.T) {
	before := AllocMemory()
	b := Alloc(4096)
	assert.Len(t, b, 4096)
	assert.Equal(t, before+4096, AllocMemory())
	Free(b)
	assert.Equal(t, before, AllocMemory())
}

func TestLogger(t *testing.T) {
	l := GetLogger("utils-test")
	assert.Same(t, l, GetLogger("utils-test"))

	SetLogLevel(logrus.DebugLevel)
	assert.Equal(t, logrus.DebugLevel, l.Level)
	SetLogLevel(logrus.InfoLevel)

	out := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, SetOutFile(out))
	l.Infof("hello %d", 1)
	assert.True(t, Exists(out))
}
