package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsTimeOrdered(t *testing.T) {
	a, b := New(), New()
	assert.Equal(t, 7, int(a.Version()))
	assert.Less(t, a.String(), b.String())
}

func TestParseOptional(t *testing.T) {
	got, err := ParseOptional(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	blank := "  "
	got, err = ParseOptional(&blank)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := New()
	s := " " + want.String() + " "
	got, err = ParseOptional(&s)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	bad := "not-a-uuid"
	_, err = ParseOptional(&bad)
	assert.Error(t, err)
}
