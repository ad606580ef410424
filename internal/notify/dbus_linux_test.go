//go:build linux

package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObject answers Notify calls and records their arguments.
type fakeObject struct {
	dbus.BusObject
	calls [][]interface{}
	next  uint32
	err   error
}

func (f *fakeObject) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	f.calls = append(f.calls, append([]interface{}{method}, args...))
	if f.err != nil {
		return &dbus.Call{Err: f.err}
	}
	f.next++
	return &dbus.Call{Body: []interface{}{f.next}}
}

func newTestDBus(obj dbus.BusObject) *DBus {
	return &DBus{obj: obj, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestDBusNotify(t *testing.T) {
	obj := &fakeObject{}
	d := newTestDBus(obj)
	ctx := context.Background()

	require.NoError(t, d.Notify(ctx, Notification{Summary: "PDF saved", Body: "a_signed_by_X.pdf", Timeout: 5 * time.Second}))
	require.NoError(t, d.Notify(ctx, Notification{Summary: "again", Urgency: UrgencyCritical}))
	require.Len(t, obj.calls, 2)

	first := obj.calls[0]
	assert.Equal(t, NotificationsInterface+".Notify", first[0])
	assert.Equal(t, AppName, first[1])
	assert.Equal(t, uint32(0), first[2])
	assert.Equal(t, "PDF saved", first[4])
	assert.Equal(t, int32(5000), first[8])

	second := obj.calls[1]
	assert.Equal(t, uint32(1), second[2], "replaces the previous notification")
	assert.Equal(t, int32(-1), second[8])
	hints := second[7].(map[string]dbus.Variant)
	assert.Equal(t, byte(UrgencyCritical), hints["urgency"].Value())
}

func TestDBusNotifyError(t *testing.T) {
	d := newTestDBus(&fakeObject{err: errors.New("no server")})
	assert.Error(t, d.Notify(context.Background(), Notification{Summary: "x"}))
	assert.NoError(t, d.Close())
}
