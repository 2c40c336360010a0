package notify

import (
	"sync"

	"github.com/godbus/dbus/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battwatt/pkg/telemetry"
)

const (
	dbusName = "org.freedesktop.Notifications"
	dbusPath = "/org/freedesktop/Notifications"

	appName = "battwatt"
	appIcon = "battery"
)

// caller is the part of dbus.BusObject we use.
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBusNotifier keeps one desktop notification up to date. Every Notify
// replaces the previous bubble instead of stacking a new one.
type DBusNotifier struct {
	mu   sync.Mutex
	obj  caller
	conn *dbus.Conn
	id   uint32
}

// NewDBusNotifier connects to the session bus.
func NewDBusNotifier() (*DBusNotifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to connect to session bus")
	}
	return &DBusNotifier{
		obj:  conn.Object(dbusName, dbusPath),
		conn: conn,
	}, nil
}

func newNotifier(obj caller) *DBusNotifier {
	return &DBusNotifier{obj: obj}
}

// Notify shows or updates the notification.
func (n *DBusNotifier) Notify(v telemetry.NotificationView) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	hints := map[string]dbus.Variant{
		// low urgency, never pops over fullscreen apps
		"urgency":   dbus.MakeVariant(byte(0)),
		"transient": dbus.MakeVariant(false),
	}

	var id uint32
	err := n.obj.Call(dbusName+".Notify", 0,
		appName, n.id, appIcon, v.Summary, v.Body(), []string{}, hints, int32(0),
	).Store(&id)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to send notification")
	}

	if n.id != id {
		logrus.WithField("id", id).Debug("notification created")
	}
	n.id = id
	return nil
}

// Close removes the notification and releases the bus connection.
func (n *DBusNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var err error
	if n.id != 0 {
		err = n.obj.Call(dbusName+".CloseNotification", 0, n.id).Err
		n.id = 0
	}
	if n.conn != nil {
		if cerr := n.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return pkgerrors.Wrap(err, "failed to close notification")
}
