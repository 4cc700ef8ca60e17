package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
	"github.com/dukerupert/gymops/internal/notification"
	"github.com/sethvargo/go-retry"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// SubscriptionStore is the part of store.PushStore the dispatcher needs.
type SubscriptionStore interface {
	ListForNotification(notifType string) ([]model.PushSubscription, error)
	RecordSent(notifType, refID, day string) (bool, error)
	ReleaseSent(notifType, refID, day string) error
	DeleteByEndpoint(endpoint string) error
}

// Dispatcher pushes urgent maintenance notifications to operators' devices.
// Each schedule is pushed at most once per notification type per day, so
// a restart that empties the in-memory feed does not re-push. The daily
// claim is taken before sending and given back when no device could be
// reached, so the next scan tries again.
type Dispatcher struct {
	sender  Sender
	subs    SubscriptionStore
	clock   clock.Clock
	logger  *slog.Logger
	backoff func() retry.Backoff
}

func NewDispatcher(sender Sender, subs SubscriptionStore, c clock.Clock, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:  sender,
		subs:    subs,
		clock:   c,
		logger:  logger.With("component", "push_dispatcher"),
		backoff: defaultBackoff,
	}
}

// Backoffs are stateful, so each delivery gets a fresh one.
func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(2, retry.NewExponential(250*time.Millisecond))
}

// Notify is registered as a scanner hook. Only critical and high
// notifications are pushed.
func (d *Dispatcher) Notify(n notification.Notification) {
	if n.Priority != model.PriorityCritical && n.Priority != model.PriorityHigh {
		return
	}

	refID := fmt.Sprintf("schedule-%d", n.ScheduleID)
	day := clock.Format(d.clock.Today())
	first, err := d.subs.RecordSent(n.Type, refID, day)
	if err != nil {
		d.logger.Error("record sent", "ref", refID, "error", err)
		return
	}
	if !first {
		return
	}

	sent, err := d.deliver(n, refID)
	if err != nil {
		d.logger.Warn("push not delivered, releasing claim", "ref", refID, "error", err)
		if err := d.subs.ReleaseSent(n.Type, refID, day); err != nil {
			d.logger.Error("release sent", "ref", refID, "error", err)
		}
		return
	}
	d.logger.Debug("notification pushed", "ref", refID, "type", n.Type, "devices", sent)
}

// deliver sends n to every subscribed device, retrying the devices that
// failed. It returns an error only when no device received the push and
// at least one failed for a reason other than expiry.
func (d *Dispatcher) deliver(n notification.Notification, refID string) (int, error) {
	subs, err := d.subs.ListForNotification(n.Type)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	payload := Payload{
		Title:    n.Title,
		Body:     n.Message,
		URL:      fmt.Sprintf("/schedules/%d", n.ScheduleID),
		Tag:      refID,
		Priority: n.Priority,
	}

	sent := 0
	pending := subs
	err = retry.Do(context.Background(), d.backoff(), func(ctx context.Context) error {
		var failed []model.PushSubscription
		var lastErr error
		for i := range pending {
			sub := &pending[i]
			err := d.sender.Send(sub, payload)
			switch {
			case err == nil:
				sent++
			case errors.Is(err, ErrExpired):
				d.logger.Info("removing expired subscription", "subscription_id", sub.ID)
				if err := d.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
					d.logger.Error("delete expired subscription", "error", err)
				}
			default:
				d.logger.Warn("send push", "subscription_id", sub.ID, "error", err)
				failed = append(failed, *sub)
				lastErr = err
			}
		}
		pending = failed
		if lastErr != nil {
			return retry.RetryableError(lastErr)
		}
		return nil
	})
	if err != nil && sent == 0 {
		return 0, fmt.Errorf("send to %d devices: %w", len(pending), err)
	}
	return sent, nil
}
