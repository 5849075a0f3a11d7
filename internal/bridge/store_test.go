package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAttachmentFollowsBinding(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, ok := s.Attached("k")
	require.False(t, ok)

	s.Attach("k", "s1")
	id, ok := s.Attached("k")
	require.True(t, ok)
	assert.Equal(t, "s1", id)

	s.Bind("k", "s2")
	id, _ = s.Attached("k")
	assert.Equal(t, "s2", id)

	id, ok = s.Detach("k")
	require.True(t, ok)
	assert.Equal(t, "s2", id)
	_, ok = s.Detach("k")
	assert.False(t, ok)

	bound, ok := s.Binding("k")
	require.True(t, ok)
	assert.Equal(t, "s2", bound)
}

func TestStoreClearRemovesAttachment(t *testing.T) {
	t.Parallel()

	s := NewStore()
	assert.False(t, s.Clear("k"))

	s.Attach("k", "s1")
	assert.True(t, s.Clear("k"))
	_, ok := s.Binding("k")
	assert.False(t, ok)
	_, ok = s.Attached("k")
	assert.False(t, ok)

	s.Bind("k", "s3")
	_, ok = s.Attached("k")
	assert.False(t, ok)
}

func TestStoreKeysAreIndependent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Attach("a", "s1")
	s.Bind("b", "s2")
	s.Clear("a")

	id, ok := s.Binding("b")
	require.True(t, ok)
	assert.Equal(t, "s2", id)

	s.Reset()
	_, ok = s.Binding("b")
	assert.False(t, ok)
}
