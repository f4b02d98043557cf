package reconcile

import (
	"context"
	"errors"
	"time"

	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	reconcileService = "reconcile-engine"
	useCaseReconcile = "payment.reconcile"
	spanPrefix       = "UC."
	gatewayPeer      = "payment-gateway"
	fetchStatusOp    = "fetch_status"
)

// ErrOrderNotFound is returned on the poll path when the order id is unknown.
// The webhook path never returns it; stale gateway events for orders that do
// not exist locally are acknowledged so the gateway stops retrying.
var ErrOrderNotFound = errors.New("reconcile: order not found")

// Source identifies which delivery channel carried the status report.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourcePoll    Source = "poll"
)

// Result classifies what a reconciliation call did.
type Result string

const (
	// ResultConfirmed: this call won the pending -> paid transition and
	// decremented inventory.
	ResultConfirmed Result = "confirmed"
	// ResultAlreadyProcessed: the order had already left pending; nothing to do.
	ResultAlreadyProcessed Result = "already_processed"
	// ResultFailed: this call settled the order as payment-failed.
	ResultFailed Result = "failed"
	// ResultCancelled: user dropped out at the gateway; order cancelled.
	ResultCancelled Result = "cancelled"
	// ResultPending: the report was non-terminal (or unavailable); no mutation.
	ResultPending Result = "pending"
	// ResultAmountMismatch: the reported amount contradicts the stored total;
	// escalated, never applied.
	ResultAmountMismatch Result = "amount_mismatch"
	// ResultUnknownOrder: webhook for an order that does not exist locally.
	ResultUnknownOrder Result = "unknown_order"
)

// Event is the unit of work fed into the engine, regardless of whether a
// webhook pushed it or a verification poll pulled it.
type Event struct {
	OrderID        string
	GatewayOrderID string
	Status         dompay.GatewayStatus
	AmountReported int64
	Source         Source
}

// Outcome carries the classification plus the order's latest view so both
// entry points can answer callers consistently, win or no-op.
type Outcome struct {
	Result Result
	Order  *domain.Order
}

// Engine funnels webhook and poll reports through one reconciliation
// function. The only synchronization it relies on is the order repository's
// conditional payment transition and the inventory repository's conditional
// decrement.
type Engine struct {
	orders    domain.Repository
	inventory dominv.Repository
	gateway   dompay.Gateway
	publisher domoutbox.Publisher

	tel          observability.Telemetry
	log          observability.Logger
	outcomes     observability.Counter
	durHistogram observability.Histogram
	invDrift     observability.Counter
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewEngine(
	orders domain.Repository,
	inventory dominv.Repository,
	gateway dompay.Gateway,
	publisher domoutbox.Publisher,
	tel observability.Telemetry,
) *Engine {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Engine{
		orders:       orders,
		inventory:    inventory,
		gateway:      gateway,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", reconcileService)),
		outcomes:     tel.Counter(observability.MReconcileOutcomes),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
		invDrift:     tel.Counter(observability.MInventoryInconsistency),
		extCounter:   tel.Counter(observability.MExternalRequests),
		extHistogram: tel.Histogram(observability.MExternalRequestDuration),
	}
}

// Verify is the poll path: resolve the order locally, ask the gateway for the
// session's current status, and feed the answer through Apply. A gateway
// failure or timeout mutates nothing and reports the order as still pending.
func (e *Engine) Verify(ctx context.Context, orderID string) (*Outcome, error) {
	logger := logctx.FromOr(ctx, e.log).With(
		observability.F("use_case", useCaseReconcile),
		observability.F("source", string(SourcePoll)),
	)

	ord, err := e.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	// Terminal orders need no gateway round trip; the stored state is final.
	if ord.PaymentStatus != domain.PaymentPending {
		return e.outcome(resultForSettled(ord), ord, SourcePoll), nil
	}

	// No session was ever opened; there is nothing to ask the gateway about.
	if ord.GatewayOrderID == "" {
		return e.outcome(ResultPending, ord, SourcePoll), nil
	}

	start := time.Now()
	report, err := e.gateway.FetchStatus(ctx, ord.GatewayOrderID)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	e.extCounter.Add(1,
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", fetchStatusOp),
		observability.L("outcome", outcome),
	)
	e.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", fetchStatusOp),
	)
	if err != nil {
		logger.Warn("gateway_fetch_status_failed",
			observability.F("order_id", ord.ID),
			observability.F("error", err.Error()),
		)
		return e.outcome(ResultPending, ord, SourcePoll), nil
	}

	return e.Apply(ctx, Event{
		OrderID:        ord.ID,
		GatewayOrderID: ord.GatewayOrderID,
		Status:         report.Status,
		AmountReported: report.AmountReported,
		Source:         SourcePoll,
	})
}

// Apply runs the reconciliation algorithm. It is safe to call any number of
// times, from any number of goroutines, for the same order: at most one call
// ever wins the terminal transition and touches inventory.
func (e *Engine) Apply(ctx context.Context, evt Event) (_ *Outcome, err error) {
	logger := logctx.FromOr(ctx, e.log).With(
		observability.F("use_case", useCaseReconcile),
		observability.F("source", string(evt.Source)),
	)

	ctx, span := e.tel.Tracer().Start(ctx, spanPrefix+"Reconcile",
		attribute.String("use_case", useCaseReconcile),
		attribute.String("reconcile.source", string(evt.Source)),
		attribute.String("reconcile.reported_status", string(evt.Status)),
	)
	start := time.Now()
	defer func() {
		span.End()
		e.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCaseReconcile),
		)
	}()

	ord, err := e.resolve(ctx, evt)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if evt.Source == SourceWebhook {
				// A stale or test event; acknowledge so the gateway does not
				// retry forever for an order that will never exist here.
				logger.Warn("webhook_unknown_order",
					observability.F("gateway_order_id", evt.GatewayOrderID),
				)
				return e.outcome(ResultUnknownOrder, nil, evt.Source), nil
			}
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	logger = logger.With(observability.F("order_id", ord.ID))
	span.SetAttributes(attribute.String("order.id", ord.ID))

	switch evt.Status {
	case dompay.GatewayStatusPaid:
		return e.applyPaid(ctx, logger, ord, evt)
	case dompay.GatewayStatusFailed, dompay.GatewayStatusExpired:
		return e.applyFailed(ctx, logger, ord, evt, domain.StatusPending, ResultFailed)
	case dompay.GatewayStatusUserDropped:
		return e.applyFailed(ctx, logger, ord, evt, domain.StatusCancelled, ResultCancelled)
	default:
		// Non-terminal report; nothing to converge yet.
		return e.outcome(ResultPending, ord, evt.Source), nil
	}
}

func (e *Engine) resolve(ctx context.Context, evt Event) (*domain.Order, error) {
	if evt.OrderID != "" {
		return e.orders.Get(ctx, evt.OrderID)
	}
	return e.orders.GetByGatewayOrderID(ctx, evt.GatewayOrderID)
}

func (e *Engine) applyPaid(ctx context.Context, logger observability.Logger, ord *domain.Order, evt Event) (*Outcome, error) {
	// The gateway is untrusted input: an amount that contradicts the stored
	// total is a fraud/integrity signal, escalated instead of applied.
	if evt.AmountReported != ord.TotalAmount {
		logger.Error("payment_amount_mismatch",
			observability.F("expected", ord.TotalAmount),
			observability.F("reported", evt.AmountReported),
		)
		return e.outcome(ResultAmountMismatch, ord, evt.Source), nil
	}

	won, err := e.orders.TransitionPayment(ctx, ord.ID, domain.PaymentPending, domain.PaymentPaid, domain.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if !won {
		// The other channel converged the order first. Normal, not an error.
		latest, gerr := e.orders.Get(ctx, ord.ID)
		if gerr != nil {
			return nil, gerr
		}
		logger.Info("reconcile_noop",
			observability.F("payment_status", string(latest.PaymentStatus)),
		)
		return e.outcome(ResultAlreadyProcessed, latest, evt.Source), nil
	}

	// Only the winner books inventory, exactly once per line. A failed
	// decrement is drift to investigate, not a reason to unwind payment:
	// money has already moved.
	for _, item := range ord.Items {
		ok, derr := e.inventory.TryDecrement(ctx, item.ProductID, item.Quantity)
		if derr != nil || !ok {
			e.invDrift.Add(1, observability.L("product_id", item.ProductID))
			fields := []observability.Field{
				observability.F("product_id", item.ProductID),
				observability.F("quantity", item.Quantity),
			}
			if derr != nil {
				fields = append(fields, observability.F("error", derr.Error()))
			}
			logger.Warn("inventory_decrement_inconsistency", fields...)
		}
	}

	latest, err := e.orders.Get(ctx, ord.ID)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, logger, domain.NewOrderConfirmedEvent(latest, string(evt.Source)))
	logger.Info("order_confirmed",
		observability.F("total_amount", latest.TotalAmount),
	)
	return e.outcome(ResultConfirmed, latest, evt.Source), nil
}

func (e *Engine) applyFailed(ctx context.Context, logger observability.Logger, ord *domain.Order, evt Event, next domain.Status, result Result) (*Outcome, error) {
	// Guarded identically to the paid path: a failure report must never
	// downgrade an order the other channel already confirmed.
	won, err := e.orders.TransitionPayment(ctx, ord.ID, domain.PaymentPending, domain.PaymentFailed, next)
	if err != nil {
		return nil, err
	}

	latest, gerr := e.orders.Get(ctx, ord.ID)
	if gerr != nil {
		return nil, gerr
	}
	if !won {
		logger.Info("reconcile_noop",
			observability.F("payment_status", string(latest.PaymentStatus)),
		)
		return e.outcome(ResultAlreadyProcessed, latest, evt.Source), nil
	}

	e.publish(ctx, logger, domain.NewOrderPaymentFailedEvent(latest, string(evt.Status), string(evt.Source)))
	logger.Info("order_payment_failed",
		observability.F("reported_status", string(evt.Status)),
	)
	return e.outcome(result, latest, evt.Source), nil
}

func (e *Engine) publish(ctx context.Context, logger observability.Logger, event domoutbox.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", event.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func (e *Engine) outcome(result Result, ord *domain.Order, source Source) *Outcome {
	e.outcomes.Add(1,
		observability.L("source", string(source)),
		observability.L("result", string(result)),
	)
	return &Outcome{Result: result, Order: ord}
}

func resultForSettled(ord *domain.Order) Result {
	switch ord.PaymentStatus {
	case domain.PaymentPaid, domain.PaymentRefunded:
		return ResultAlreadyProcessed
	case domain.PaymentFailed:
		if ord.Status == domain.StatusCancelled {
			return ResultCancelled
		}
		return ResultFailed
	default:
		return ResultPending
	}
}
