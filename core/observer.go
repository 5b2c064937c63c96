package core

import (
	"context"

	"github.com/signalsfoundry/csma-simulator/internal/logging"
	"github.com/signalsfoundry/csma-simulator/timectrl"
)

// Event describes one contention outcome as seen by observers.
type Event struct {
	Kind      EventKind
	At        timectrl.Slot
	StationID string
	// Contenders lists every station that attempted in the round.
	Contenders       []string
	Retries          int
	Delay            timectrl.Slot
	ContentionWindow int
	Backoff          int
}

// Observer receives contention outcomes synchronously from the driver. It must
// not mutate simulator state.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// LogObserver writes every outcome at debug level.
func LogObserver(log logging.Logger) Observer {
	if log == nil {
		log = logging.Noop()
	}
	return ObserverFunc(func(ctx context.Context, ev Event) {
		fields := []logging.Field{
			logging.String("station", ev.StationID),
			logging.Int64("slot", int64(ev.At)),
		}
		switch ev.Kind {
		case EventSuccess:
			log.Debug(ctx, "frame delivered", append(fields,
				logging.Int64("delay_slots", int64(ev.Delay)),
				logging.Int("retries", ev.Retries),
			)...)
		case EventCollision:
			log.Debug(ctx, "collision at access point", append(fields,
				logging.Strings("contenders", ev.Contenders),
				logging.Int("retries", ev.Retries),
				logging.Int("cw", ev.ContentionWindow),
				logging.Int("backoff", ev.Backoff),
			)...)
		case EventDrop:
			log.Debug(ctx, "frame dropped after retry limit", append(fields,
				logging.Int("retries", ev.Retries),
			)...)
		}
	})
}

type multiObserver []Observer

func (m multiObserver) Observe(ctx context.Context, ev Event) {
	for _, o := range m {
		o.Observe(ctx, ev)
	}
}
