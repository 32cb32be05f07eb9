package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolError_KindSpecificConstructors(t *testing.T) {
	me := NewMissingEntities([]string{"a", "b"})
	assert.Equal(t, KindMissingEntities, me.Kind)
	assert.Equal(t, []string{"a", "b"}, me.Names)

	ae := NewAlreadyExists("dup")
	assert.Equal(t, KindAlreadyExists, ae.Kind)
	assert.Equal(t, "dup", ae.Name)

	nf := NewNotFound("ghost")
	assert.Equal(t, KindNotFound, nf.Kind)

	inv := NewInvalid("name", "must not be empty")
	assert.Equal(t, KindInvalid, inv.Kind)
	assert.Equal(t, "name", inv.Field)
}

func TestAsToolError_PassesThroughExistingToolError(t *testing.T) {
	orig := NewNotFound("x")
	wrapped := fmt.Errorf("create_relation: %w", orig)

	got := AsToolError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, KindNotFound, got.Kind)
}

func TestAsToolError_MapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{fmt.Errorf("op: %w", ErrNotFound), KindNotFound},
		{fmt.Errorf("op: %w", ErrAlreadyExists), KindAlreadyExists},
		{fmt.Errorf("op: %w", ErrConflict), KindConflict},
		{fmt.Errorf("op: %w", ErrProviderUnavailable), KindProviderUnavailable},
		{errors.New("boom"), KindInternal},
	}
	for _, c := range cases {
		got := AsToolError(c.err)
		assert.Equal(t, c.kind, got.Kind)
	}
}

func TestAsToolError_Nil(t *testing.T) {
	assert.Nil(t, AsToolError(nil))
}
