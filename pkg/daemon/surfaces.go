package daemon

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// publishTimeout bounds one round of widget publishing.
const publishTimeout = 5 * time.Second

// every calls fn on each interval until ctx is done. interval is re-read
// after every call so a config reload takes effect.
func every(ctx context.Context, interval func() time.Duration, fn func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval()):
		}
		fn(ctx)
	}
}

// widgetLoop pushes the latest snapshot to the widget publishers.
func (d *Daemon) widgetLoop(ctx context.Context) {
	if d.publisher.Len() == 0 {
		logrus.Debug("no widget publisher configured")
		return
	}

	logrus.WithField("publishers", d.publisher.Len()).Debugln("widget loop starts")
	defer logrus.Debugln("widget loop stopped")

	every(ctx, d.conf.WidgetInterval, d.publishWidget)
}

func (d *Daemon) publishWidget(ctx context.Context) {
	snap, ok := d.monitor.Latest()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := d.publisher.Publish(ctx, snap); err != nil {
		logrus.WithError(err).Warn("failed to publish widget")
	}
}

// notificationLoop keeps the desktop notification up to date.
func (d *Daemon) notificationLoop(ctx context.Context) {
	logrus.Debugln("notification loop starts")
	defer logrus.Debugln("notification loop stopped")

	every(ctx, d.conf.NotificationInterval, d.updateNotification)
}

func (d *Daemon) updateNotification(_ context.Context) {
	snap, ok := d.monitor.Latest()
	if !ok {
		return
	}

	if err := d.notifier.Notify(snap.Notification()); err != nil {
		logrus.WithError(err).Warn("failed to update notification")
	}
}
