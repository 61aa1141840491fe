package events

import (
	"context"
	"errors"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

/* =========================================================
   Logrus adapters
========================================================= */

type LogAuditTrail struct {
	Log logrus.FieldLogger
}

func (a LogAuditTrail) Record(_ context.Context, evt Event) error {
	a.Log.WithFields(fields(evt)).Info("audit")
	return nil
}

type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) Notify(_ context.Context, evt Event) error {
	n.Log.WithFields(fields(evt)).Debug("notify")
	return nil
}

func fields(evt Event) logrus.Fields {
	f := logrus.Fields{
		"event_id":  evt.ID.String(),
		"kind":      string(evt.Kind),
		"actor_id":  evt.ActorID.String(),
		"operation": evt.Operation,
	}
	if evt.ApplicationID != nil {
		f["application_id"] = evt.ApplicationID.String()
	}
	if evt.BudgetID != nil {
		f["budget_id"] = evt.BudgetID.String()
	}
	if evt.FromStatus != "" || evt.ToStatus != "" {
		f["from"] = evt.FromStatus
		f["to"] = evt.ToStatus
	}
	if evt.Stage != "" {
		f["stage"] = evt.Stage
		f["outcome"] = evt.Outcome
	}
	return f
}

/* =========================================================
   Redis publisher
========================================================= */

// RedisNotifier publishes events as JSON on a pub/sub channel; the mailer
// and push workers subscribe to it.
type RedisNotifier struct {
	Client  *redis.Client
	Channel string
}

func (n RedisNotifier) Notify(ctx context.Context, evt Event) error {
	if n.Client == nil {
		return errors.New("redis notifier: no client")
	}
	body, err := sonic.Marshal(evt)
	if err != nil {
		return err
	}
	return n.Client.Publish(ctx, n.Channel, body).Err()
}

/* =========================================================
   In-memory recorder
========================================================= */

// Recorder keeps events in memory. FailRecord / FailNotify make the
// corresponding call return that error.
type Recorder struct {
	mu         sync.Mutex
	audited    []Event
	notified   []Event
	FailRecord error
	FailNotify error
}

func (r *Recorder) Record(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailRecord != nil {
		return r.FailRecord
	}
	r.audited = append(r.audited, evt)
	return nil
}

func (r *Recorder) Notify(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNotify != nil {
		return r.FailNotify
	}
	r.notified = append(r.notified, evt)
	return nil
}

func (r *Recorder) Audited() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.audited...)
}

func (r *Recorder) Notified() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.notified...)
}

// AuditedKind filters audited events by kind.
func (r *Recorder) AuditedKind(kind Kind) []Event {
	var out []Event
	for _, e := range r.Audited() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
