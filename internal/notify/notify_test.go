package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledIsNop(t *testing.T) {
	n := New(false, nil)
	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.Notify(context.Background(), Notification{Summary: "x"}))
	assert.NoError(t, n.Close())
}
