package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dkellner/starnotify/internal/metrics"
	"github.com/dkellner/starnotify/internal/model"
)

const defaultConcurrency = 8

// SubscriptionSource is the slice of the subscription store the dispatcher
// needs: a snapshot of active subscriptions and removal of dead endpoints.
// The dispatcher never mutates records in any other way.
type SubscriptionSource interface {
	ListActive() ([]model.Subscription, error)
	Remove(endpoint string) error
}

// DeliveryReport aggregates the outcome of one dispatch cycle. It is
// observability data; a webhook request succeeds regardless of these counts.
type DeliveryReport struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Removed   int `json:"removed"`
}

// Dispatcher fans a payload out to every active subscription. Deliveries are
// independent: they run concurrently, one endpoint's failure never blocks the
// others, and there is no retry within a cycle — the next event is the retry.
type Dispatcher struct {
	service     *Service
	subs        SubscriptionSource
	concurrency int
	logger      *slog.Logger
}

func NewDispatcher(service *Service, subs SubscriptionSource, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		service:     service,
		subs:        subs,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
}

// Deliver sends the payload to every active subscription and returns the
// aggregate report. Endpoints the push service reports gone (404/410) are
// removed from the store; transient failures are counted and left alone.
// The error return covers only the store read — per-endpoint failures live
// in the report.
func (d *Dispatcher) Deliver(ctx context.Context, payload Payload) (DeliveryReport, error) {
	subs, err := d.subs.ListActive()
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("list subscriptions: %w", err)
	}

	report := DeliveryReport{Attempted: len(subs)}
	if len(subs) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, sub := range subs {
		g.Go(func() error {
			err := d.service.Send(ctx, &sub, payload)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Succeeded++
				metrics.Deliveries.WithLabelValues("success").Inc()
			case errors.Is(err, ErrExpired):
				if rmErr := d.subs.Remove(sub.Endpoint); rmErr != nil {
					d.logger.Error("remove expired subscription", "endpoint", sub.Endpoint, "error", rmErr)
					report.Failed++
					metrics.Deliveries.WithLabelValues("failed").Inc()
					return nil
				}
				d.logger.Info("removed expired subscription", "endpoint", sub.Endpoint)
				report.Removed++
				metrics.Deliveries.WithLabelValues("removed").Inc()
			default:
				d.logger.Warn("push delivery failed", "endpoint", sub.Endpoint, "error", err)
				report.Failed++
				metrics.Deliveries.WithLabelValues("failed").Inc()
			}
			return nil
		})
	}

	g.Wait()
	return report, nil
}
