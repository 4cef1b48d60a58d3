package fault

import (
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(Conflict, "already locked")
	assert.Equal(t, "already locked", err.Error())
	assert.ErrorIs(t, err, Conflict)
	assert.NotErrorIs(t, err, NotFound)

	wrapped := fmt.Errorf("lock date: %w", err)
	assert.Equal(t, Conflict, KindOf(wrapped))
	assert.Equal(t, "conflict", Name(KindOf(wrapped)))

	assert.Nil(t, KindOf(errors.New("connection reset")))
	assert.Equal(t, "internal", Name(nil))
}
