package lifecycle

import "time"

const (
	EventOrderNotification    = "order_notification"
	EventNewOrderAvailable    = "new_order_available"
	EventOrderTaken           = "order_taken"
	EventDriverAssigned       = "driver_assigned"
	EventDriverLocationUpdate = "driver_location_update"
)

const (
	OrderTakenReasonAssigned  = "assigned"
	OrderTakenReasonCancelled = "cancelled"
)

type Notification struct {
	Title   string
	Message string
}

// Shown verbatim by the clients.
var notifications = map[Status]Notification{
	StatusPending: {
		Title:   "Order placed",
		Message: "Your order has been placed and is waiting for the restaurant to confirm it.",
	},
	StatusConfirmed: {
		Title:   "Order confirmed",
		Message: "The restaurant has confirmed your order.",
	},
	StatusPreparing: {
		Title:   "Preparing your order",
		Message: "The restaurant is preparing your food.",
	},
	StatusReadyForPickup: {
		Title:   "Ready for pickup",
		Message: "Your order is ready and waiting for a driver.",
	},
	StatusOutForDelivery: {
		Title:   "Out for delivery",
		Message: "Your driver has picked up the order and is on the way.",
	},
	StatusDelivered: {
		Title:   "Order delivered",
		Message: "Your order has been delivered. Enjoy your meal!",
	},
	StatusCancelled: {
		Title:   "Order cancelled",
		Message: "Your order has been cancelled.",
	},
}

func NotificationFor(status Status) Notification {
	return notifications[status]
}

type OrderNotification struct {
	OrderId        string    `json:"orderId"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previousStatus"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

type NewOrderAvailable struct {
	OrderId      string `json:"orderId"`
	RestaurantId string `json:"restaurantId"`
	Title        string `json:"title"`
	Message      string `json:"message"`
}

type OrderTaken struct {
	OrderId  string `json:"orderId"`
	DriverId string `json:"driverId,omitempty"`
	Reason   string `json:"reason"`
}

type DriverAssigned struct {
	OrderId    string `json:"orderId"`
	DriverId   string `json:"driverId"`
	DriverName string `json:"driverName,omitempty"`
}

type DriverLocationUpdate struct {
	OrderId   string    `json:"orderId"`
	DriverId  string    `json:"driverId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}
