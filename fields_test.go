package xstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFormatValue tests the stored string form of scalar values.
func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{int64(-7), "-7"},
		{uint8(255), "255"},
		{1.5, "1.5"},
		{float32(0.25), "0.25"},
		{true, "1"},
		{false, "0"},
	}
	for _, tt := range tests {
		got, err := FormatValue(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := FormatValue(map[string]int{"a": 1})
	require.Error(t, err)
	_, err = FormatValue(nil)
	require.Error(t, err)
}

// TestFields_Validate tests rejected field maps.
func TestFields_Validate(t *testing.T) {
	require.NoError(t, Fields{"a": 1}.Validate())
	require.ErrorIs(t, Fields{}.Validate(), ErrInvalidField)
	require.ErrorIs(t, Fields{"": "x"}.Validate(), ErrInvalidField)
	require.ErrorIs(t, Fields{"a": []string{"x"}}.Validate(), ErrInvalidField)
}

// TestFields_Accessors tests typed reads of stored values.
func TestFields_Accessors(t *testing.T) {
	f := Fields{"n": "12", "x": "2.5", "b": "1", "s": "hi", "raw": int64(3)}

	n, err := f.Int64("n")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	n, err = f.Int64("raw")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	x, err := f.Float64("x")
	require.NoError(t, err)
	assert.Equal(t, 2.5, x)

	b, err := f.Bool("b")
	require.NoError(t, err)
	assert.True(t, b)

	assert.Equal(t, "hi", f.String("s"))
	assert.Equal(t, []byte("hi"), f.Bytes("s"))
	assert.Nil(t, f.Bytes("missing"))

	_, err = f.Int64("missing")
	require.ErrorIs(t, err, ErrFieldNotFound)
	_, err = f.Int64("s")
	require.ErrorIs(t, err, ErrInvalidField)
	_, err = f.Bool("s")
	require.ErrorIs(t, err, ErrInvalidField)
}

// TestFields_Strings tests rendering a whole map.
func TestFields_Strings(t *testing.T) {
	got, err := Fields{"a": 1, "b": true, "c": "x"}.Strings()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "1", "c": "x"}, got)

	_, err = Fields{"a": struct{}{}}.Strings()
	require.ErrorIs(t, err, ErrInvalidField)
}

// TestFields_Clone tests copies are independent.
func TestFields_Clone(t *testing.T) {
	f := Fields{"a": "1"}
	c := f.Clone()
	c["a"] = "2"
	assert.Equal(t, "1", f.String("a"))
	assert.Nil(t, Fields(nil).Clone())
}
