package order

import (
	"context"
	"errors"
	"fmt"
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
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	spanPrefix         = "UC."
	gatewayPeer        = "payment-gateway"
	openSessionOp      = "open_session"
	publishTimeout     = 300 * time.Millisecond
)

var (
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
)

// Service owns the order creation workflow: read-only stock validation,
// price/title snapshotting, persistence, and the best-effort payment session.
type Service struct {
	orders    domain.Repository
	inventory dominv.Repository
	gateway   dompay.Gateway
	publisher domoutbox.Publisher
	idGen     IDGenerator
	currency  string
	returnURL string

	tel          observability.Telemetry
	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewService(
	orders domain.Repository,
	inventory dominv.Repository,
	gateway dompay.Gateway,
	publisher domoutbox.Publisher,
	idGen IDGenerator,
	currency string,
	returnURL string,
	tel observability.Telemetry,
) *Service {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Service{
		orders:       orders,
		inventory:    inventory,
		gateway:      gateway,
		publisher:    publisher,
		idGen:        idGen,
		currency:     currency,
		returnURL:    returnURL,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", orderService)),
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
		extCounter:   tel.Counter(observability.MExternalRequests),
		extHistogram: tel.Histogram(observability.MExternalRequestDuration),
	}
}

type LineInput struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	CustomerID      string
	Items           []LineInput
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	Phone           string
}

type CreateOrderResult struct {
	Order *domain.Order
	// Session is nil when the gateway could not open a payment session; the
	// order still exists and settles out of band.
	Session *dompay.Session
}

// CreateOrder validates the requested lines against inventory without
// reserving anything, persists the order, then tries to open a payment
// session. A gateway failure never undoes the order record.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (_ *CreateOrderResult, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseOrderCreate))

	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseOrderCreate),
		attribute.String("order.customer_id", input.CustomerID),
		attribute.Int("order.lines", len(input.Items)),
	)
	start := time.Now()
	outcome := "success"

	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
		}
		span.End()
		s.reqCounter.Add(1,
			observability.L("use_case", useCaseOrderCreate),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("use_case", useCaseOrderCreate),
		)
	}()

	if input.CustomerID == "" {
		return nil, errors.New("order: customer id is required")
	}
	if len(input.Items) == 0 {
		return nil, domain.ErrNoItems
	}

	// Read-only availability check; stock is decremented only when payment
	// confirms, so abandoned checkouts never hold inventory hostage.
	items := make([]domain.Item, 0, len(input.Items))
	for _, line := range input.Items {
		product, perr := s.inventory.Get(ctx, line.ProductID)
		if perr != nil {
			logger.Warn("product_lookup_failed",
				observability.F("product_id", line.ProductID),
				observability.F("error", perr.Error()),
			)
			return nil, perr
		}
		if perr := product.Orderable(line.Quantity); perr != nil {
			return nil, perr
		}
		items = append(items, domain.Item{
			ProductID: product.ProductID,
			Title:     product.Title,
			UnitPrice: product.UnitPrice,
			ImageURL:  product.ImageURL,
			Quantity:  line.Quantity,
		})
	}

	// The id exists before the gateway call so the order can be persisted
	// even when the gateway is down.
	orderID := s.idGen.NewID()
	entity, derr := domain.New(orderID, input.CustomerID, items, domain.Details{
		PaymentMethod:   input.PaymentMethod,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		Phone:           input.Phone,
	})
	if derr != nil {
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ierr := s.orders.Insert(ctx, entity); ierr != nil {
		logger.Error("order_insert_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", ierr.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrRepository, ierr)
	}

	session := s.openSession(ctx, logger, entity)

	s.publishCreated(ctx, logger, entity)

	span.SetAttributes(attribute.String("order.id", entity.ID))
	logger.Info("order_created",
		observability.F("order_id", entity.ID),
		observability.F("total_amount", entity.TotalAmount),
		observability.F("payment_session", session != nil),
	)
	return &CreateOrderResult{Order: entity, Session: session}, nil
}

// openSession is best effort: the order already exists and an unreachable
// gateway must not take checkout down with it.
func (s *Service) openSession(ctx context.Context, logger observability.Logger, entity *domain.Order) *dompay.Session {
	if s.gateway == nil {
		return nil
	}

	start := time.Now()
	session, err := s.gateway.OpenSession(ctx, dompay.SessionRequest{
		OrderID:    entity.ID,
		Amount:     entity.TotalAmount,
		Currency:   s.currency,
		CustomerID: entity.CustomerID,
		Phone:      entity.Phone,
		ReturnURL:  s.returnURL,
	})

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.extCounter.Add(1,
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", openSessionOp),
		observability.L("outcome", outcome),
	)
	s.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", openSessionOp),
	)

	if err != nil {
		logger.Warn("payment_session_open_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", err.Error()),
		)
		return nil
	}

	if aerr := s.orders.AttachSession(ctx, entity.ID, session.GatewayOrderID, session.SessionID); aerr != nil {
		logger.Error("payment_session_attach_failed",
			observability.F("order_id", entity.ID),
			observability.F("error", aerr.Error()),
		)
		return nil
	}
	entity.GatewayOrderID = session.GatewayOrderID
	entity.PaymentSessionID = session.SessionID
	return session
}

func (s *Service) publishCreated(ctx context.Context, logger observability.Logger, entity *domain.Order) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if perr := s.publisher.Publish(pubCtx, domain.NewOrderCreatedEvent(entity)); perr != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", domain.OrderCreatedEvent{}.EventName()),
			observability.F("order_id", entity.ID),
			observability.F("error", perr.Error()),
		)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, errors.New("order: id is required")
	}
	return s.orders.Get(ctx, id)
}
