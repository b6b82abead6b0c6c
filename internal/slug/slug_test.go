package slug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("Maiden Voyage", Derive("Maiden Voyage"))
	assert.Equal("fallback", Derive("", "   ", "fallback"))
	assert.Equal("a b", Derive("  a\t\nb  "))
	assert.Equal("what now", Derive(`what/now`))
	assert.Equal("title", Derive("title..."))
}

func TestDeriveFallsBackToTimestamp(t *testing.T) {
	assert := assert.New(t)
	// Nothing survives cleaning, so a time-based name is generated.
	got := Derive("", "???", "***")
	assert.True(strings.HasPrefix(got, "download-"), got)
}

func TestDeriveTruncates(t *testing.T) {
	assert := assert.New(t)
	got := Derive(strings.Repeat("x", 100))
	assert.Len(got, maxSlugLen)

	// Truncation never leaves a trailing dot or space.
	got = Derive(strings.Repeat("x", maxSlugLen-1) + ". tail")
	assert.False(strings.HasSuffix(got, "."))
	assert.False(strings.HasSuffix(got, " "))
}

func TestCreateDir(t *testing.T) {
	assert := assert.New(t)
	base := t.TempDir()

	first, err := CreateDir(base, "title")
	require.NoError(t, err)
	assert.Equal(filepath.Join(base, "title"), first)

	second, err := CreateDir(base, "title")
	require.NoError(t, err)
	assert.Equal(filepath.Join(base, "title-1"), second)

	third, err := CreateDir(base, "title")
	require.NoError(t, err)
	assert.Equal(filepath.Join(base, "title-2"), third)

	for _, dir := range []string{first, second, third} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(info.IsDir())
	}
}

func TestCreateDirMakesBase(t *testing.T) {
	assert := assert.New(t)
	base := filepath.Join(t.TempDir(), "nested", "saves")
	dir, err := CreateDir(base, "title")
	require.NoError(t, err)
	assert.Equal(filepath.Join(base, "title"), dir)
}
