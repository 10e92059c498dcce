package lifecycle

import (
	"errors"
	"time"

	"github.com/goevery/tracker/internal/ierr"
	"github.com/goevery/tracker/pkg/wire"
)

// Order is the read-only view of an order owned by the data store.
type Order struct {
	Id           string
	Status       Status
	CustomerId   string
	RestaurantId string
	DriverId     string
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Driver is the presence record of a driver. Availability is not read:
// membership of the drivers room is the live pool.
type Driver struct {
	Id       string
	Name     string
	Location *Coordinates
}

type Publication struct {
	Room  string
	Event string
	Data  any
}

type Plan struct {
	TargetRooms  []string
	Publications []Publication
}

func (p *Plan) add(room string, event string, data any) {
	p.Publications = append(p.Publications, Publication{
		Room:  room,
		Event: event,
		Data:  data,
	})

	for _, target := range p.TargetRooms {
		if target == room {
			return
		}
	}

	p.TargetRooms = append(p.TargetRooms, room)
}

// PublicationsTo returns the publications addressed to room, in order.
func (p Plan) PublicationsTo(room string) []Publication {
	var publications []Publication
	for _, publication := range p.Publications {
		if publication.Room == room {
			publications = append(publications, publication)
		}
	}

	return publications
}

// Transition computes what to publish when order moves from its current
// status to newStatus. order.Status is the status before the change. It has
// no side effects.
func Transition(order Order, newStatus Status, driver *Driver, now time.Time) (Plan, error) {
	if err := validateOrder(order); err != nil {
		return Plan{}, err
	}

	if err := ValidateTransition(order.Status, newStatus); err != nil {
		return Plan{}, err
	}

	var plan Plan

	notification := NotificationFor(newStatus)
	orderNotification := OrderNotification{
		OrderId:        order.Id,
		Status:         newStatus,
		PreviousStatus: order.Status,
		Title:          notification.Title,
		Message:        notification.Message,
		Timestamp:      now,
	}

	for _, room := range orderRooms(order) {
		plan.add(room, EventOrderNotification, orderNotification)
	}

	switch newStatus {
	case StatusReadyForPickup:
		plan.add(wire.DriversRoom, EventNewOrderAvailable, NewOrderAvailable{
			OrderId:      order.Id,
			RestaurantId: order.RestaurantId,
			Title:        "New delivery available",
			Message:      "An order is ready for pickup.",
		})
	case StatusOutForDelivery:
		driverId := order.DriverId
		if driverId == "" && driver != nil {
			driverId = driver.Id
		}

		plan.add(wire.DriversRoom, EventOrderTaken, OrderTaken{
			OrderId:  order.Id,
			DriverId: driverId,
			Reason:   OrderTakenReasonAssigned,
		})

		if driverId != "" {
			assigned := DriverAssigned{
				OrderId:  order.Id,
				DriverId: driverId,
			}
			if driver != nil {
				assigned.DriverName = driver.Name
			}

			for _, room := range orderRooms(order) {
				plan.add(room, EventDriverAssigned, assigned)
			}
			plan.add(wire.UserRoom(driverId), EventDriverAssigned, assigned)
		}

		if driver != nil && driver.Location != nil {
			order.DriverId = driverId
			for _, publication := range locationPublications(order, *driver, now) {
				plan.add(publication.Room, publication.Event, publication.Data)
			}
		}
	case StatusCancelled:
		if order.Status == StatusReadyForPickup {
			plan.add(wire.DriversRoom, EventOrderTaken, OrderTaken{
				OrderId: order.Id,
				Reason:  OrderTakenReasonCancelled,
			})
		}
	}

	return plan, nil
}

// LocationUpdate computes the driver_location_update publications for an
// order being delivered. It returns an empty plan when the order is not out
// for delivery or the driver has no known coordinates.
func LocationUpdate(order Order, driver Driver, now time.Time) Plan {
	var plan Plan

	if order.Status != StatusOutForDelivery || driver.Location == nil {
		return plan
	}

	for _, publication := range locationPublications(order, driver, now) {
		plan.add(publication.Room, publication.Event, publication.Data)
	}

	return plan
}

func locationPublications(order Order, driver Driver, now time.Time) []Publication {
	update := DriverLocationUpdate{
		OrderId:   order.Id,
		DriverId:  driver.Id,
		Latitude:  driver.Location.Latitude,
		Longitude: driver.Location.Longitude,
		Timestamp: now,
	}

	return []Publication{
		{Room: wire.UserRoom(order.CustomerId), Event: EventDriverLocationUpdate, Data: update},
		{Room: wire.RestaurantRoom(order.RestaurantId), Event: EventDriverLocationUpdate, Data: update},
	}
}

func orderRooms(order Order) []string {
	return []string{
		wire.UserRoom(order.CustomerId),
		wire.RestaurantRoom(order.RestaurantId),
		wire.OrderRoom(order.Id),
	}
}

func validateOrder(order Order) error {
	switch {
	case order.Id == "":
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("order id is required"))
	case order.CustomerId == "":
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("order customer id is required"))
	case order.RestaurantId == "":
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("order restaurant id is required"))
	}

	return nil
}
