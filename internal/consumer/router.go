package consumer

import (
	"context"
	"log"

	"example.com/activity/internal/domain"
)

// Event type vocabulary published by the upstream services. These strings are
// the wire contract; the verbatim value doubles as the recorded activity type.
const (
	EventProductCreated         = "product.productCreated.v1"
	EventProductUpdated         = "product.productUpdated.v1"
	EventProductDeleted         = "product.productDeleted.v1"
	EventUserRegistered         = "users.userCreated.v1"
	EventOrderCreated           = "orders.orderCreated.v1"
	EventOrderConfirmed         = "orders.orderConfirmed.v1"
	EventOrderCompleted         = "orders.orderCompleted.v1"
	EventStockUpdated           = "inventory.stockUpdated.v1"
	EventStockReserved          = "inventory.stockReserved.v1"
	EventStockReservationFailed = "inventory.stockReservationFailed.v1"
)

const (
	entityTypeProduct = "product"
	entityTypeUser    = "user"
	entityTypeOrder   = "order"
)

// Appender is the slice of the domain service the router needs.
type Appender interface {
	AppendActivity(ctx context.Context, entityID, entityType, activityType string, activityTime int64) (domain.Activity, error)
}

// binding describes how one event type maps onto appended records.
type binding struct {
	entityType string
	entityID   func(EventData) string
	// order events also record an activity on the user's timeline when the
	// payload carries a userId
	fanOutUser bool
}

func productID(d EventData) string   { return d.ProductID }
func userID(d EventData) string      { return d.UserID }
func orderNumber(d EventData) string { return d.OrderNumber }

var routes = map[string]binding{
	EventProductCreated:         {entityType: entityTypeProduct, entityID: productID},
	EventProductUpdated:         {entityType: entityTypeProduct, entityID: productID},
	EventProductDeleted:         {entityType: entityTypeProduct, entityID: productID},
	EventUserRegistered:         {entityType: entityTypeUser, entityID: userID},
	EventOrderCreated:           {entityType: entityTypeOrder, entityID: orderNumber, fanOutUser: true},
	EventOrderConfirmed:         {entityType: entityTypeOrder, entityID: orderNumber, fanOutUser: true},
	EventOrderCompleted:         {entityType: entityTypeOrder, entityID: orderNumber, fanOutUser: true},
	EventStockUpdated:           {entityType: entityTypeProduct, entityID: productID},
	EventStockReserved:          {entityType: entityTypeOrder, entityID: orderNumber},
	EventStockReservationFailed: {entityType: entityTypeOrder, entityID: orderNumber},
}

// Router dispatches decoded events onto activity appends via a fixed table.
type Router struct {
	appender Appender
	logger   *log.Logger
}

// NewRouter constructs a Router. A nil logger falls back to a prefixed default.
func NewRouter(appender Appender, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.New(log.Writer(), "[router] ", log.LstdFlags)
	}
	return &Router{appender: appender, logger: logger}
}

// Handle implements the processor Handler contract.
func (r *Router) Handle(ctx context.Context, event Event) error {
	_, err := r.Route(ctx, event)
	return err
}

// Route executes the append calls derived from one event, in table order, and
// returns how many records were appended. An unrecognised event type appends
// nothing and is not an error; the message is still acknowledged.
func (r *Router) Route(ctx context.Context, event Event) (int, error) {
	route, ok := routes[event.Type]
	if !ok {
		r.logger.Printf("unhandled event type %q (event_id=%s)", event.Type, event.ID)
		return 0, nil
	}

	appended := 0
	if _, err := r.appender.AppendActivity(ctx, route.entityID(event.Data), route.entityType, event.Type, event.OccurredAt); err != nil {
		return appended, err
	}
	appended++

	if route.fanOutUser {
		if event.Data.UserID == "" {
			r.logger.Printf("event %q has no userId, skipping user activity (event_id=%s)", event.Type, event.ID)
			return appended, nil
		}
		if _, err := r.appender.AppendActivity(ctx, event.Data.UserID, entityTypeUser, event.Type, event.OccurredAt); err != nil {
			return appended, err
		}
		appended++
	}

	return appended, nil
}
