package slogx

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAttrs(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		attr := Error(errors.New("boom"))
		assert.Equal(t, "error", attr.Key)
		assert.Equal(t, "boom", attr.Value.String())
		assert.Equal(t, "<nil>", Error(nil).Value.String())
	})

	t.Run("run id", func(t *testing.T) {
		assert.Equal(t, "global", RunID(uuid.Nil).Value.String())
		id := uuid.New()
		attr := RunID(id)
		assert.Equal(t, KeyRunID, attr.Key)
		assert.Equal(t, id.String(), attr.Value.String())
	})

	t.Run("node id", func(t *testing.T) {
		attr := NodeID("chat-1")
		assert.Equal(t, KeyNodeID, attr.Key)
		assert.Equal(t, "chat-1", attr.Value.String())
	})

	t.Run("stringer", func(t *testing.T) {
		id := uuid.New()
		assert.Equal(t, id.String(), Stringer("id", id).Value.String())
	})
}
