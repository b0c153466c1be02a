package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSize(t *testing.T) {
	t.Parallel()

	_, err := New[string](0)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = New[string](-1)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestGetAdd(t *testing.T) {
	t.Parallel()

	c, err := New[[]string](4)
	require.NoError(t, err)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Add("a", nil, []string{"x", "y"})
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, got)
}

func TestAdd_EmptyValueIsAHit(t *testing.T) {
	t.Parallel()

	c, err := New[[]string](4)
	require.NoError(t, err)

	c.Add("a", nil, nil)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestCapacity_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c, err := New[int](2)
	require.NoError(t, err)

	assert.False(t, c.Add("a", nil, 1))
	assert.False(t, c.Add("b", nil, 2))

	// Touch a so b becomes least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	assert.True(t, c.Add("c", nil, 3))
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCapacity_NeverExceeded(t *testing.T) {
	t.Parallel()

	c, err := New[int](10)
	require.NoError(t, err)

	for i := range 100 {
		c.Add(Key("file.ts", "function_declaration", uint32(i)), nil, i)
		assert.LessOrEqual(t, c.Len(), 10)
	}
	assert.Equal(t, 10, c.Len())
}

func TestInvalidate_ByFilePath(t *testing.T) {
	t.Parallel()

	c, err := New[int](10)
	require.NoError(t, err)

	k1 := Key("/a.ts", "program", 0)
	k2 := Key(k1, "function_declaration", 10)
	other := Key("/b.ts", "program", 0)

	c.Add(k1, []string{"/a.ts"}, 1)
	c.Add(k2, []string{"/a.ts", k1}, 2)
	c.Add(other, []string{"/b.ts"}, 3)

	assert.Equal(t, 2, c.Invalidate("/a.ts"))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(other)
	assert.True(t, ok)
}

func TestInvalidate_ByKeyDropsDescendants(t *testing.T) {
	t.Parallel()

	c, err := New[int](10)
	require.NoError(t, err)

	k1 := Key("/a.ts", "program", 0)
	k2 := Key(k1, "function_declaration", 10)
	k3 := Key(k2, "arrow_function", 40)

	c.Add(k1, []string{"/a.ts"}, 1)
	c.Add(k2, []string{"/a.ts", k1}, 2)
	c.Add(k3, []string{"/a.ts", k1, k2}, 3)

	assert.Equal(t, 2, c.Invalidate(k2))
	_, ok := c.Get(k1)
	assert.True(t, ok)
	_, ok = c.Get(k3)
	assert.False(t, ok)
}

func TestAdd_CopiesAncestors(t *testing.T) {
	t.Parallel()

	c, err := New[int](10)
	require.NoError(t, err)

	ancestors := []string{"/a.ts"}
	c.Add("k", ancestors, 1)
	ancestors[0] = "/b.ts"

	assert.Equal(t, 0, c.Invalidate("/b.ts"))
	assert.Equal(t, 1, c.Invalidate("/a.ts"))
}

func TestRemoveFunc_ByValue(t *testing.T) {
	t.Parallel()

	c, err := New[int](10)
	require.NoError(t, err)

	c.Add("a", nil, 1)
	c.Add("b", nil, 2)
	c.Add("c", nil, 3)

	n := c.RemoveFunc(func(_ string, _ []string, v int) bool { return v%2 == 1 })
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())
}

func TestPurge(t *testing.T) {
	t.Parallel()

	c, err := New[int](10)
	require.NoError(t, err)
	c.Add("a", nil, 1)
	c.Purge()
	assert.Zero(t, c.Len())
}
