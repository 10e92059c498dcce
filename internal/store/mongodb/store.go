package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/goevery/tracker/internal/ierr"
	"github.com/goevery/tracker/internal/lifecycle"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type Order struct {
	Id           string `bson:"_id"`
	Status       string `bson:"status"`
	CustomerId   string `bson:"customerId"`
	RestaurantId string `bson:"restaurantId"`
	DriverId     string `bson:"driverId,omitempty"`
}

type Location struct {
	Latitude  float64 `bson:"latitude"`
	Longitude float64 `bson:"longitude"`
}

type Driver struct {
	Id       string    `bson:"_id"`
	Name     string    `bson:"name"`
	Location *Location `bson:"location,omitempty"`
}

type Store struct {
	orders  *mongo.Collection
	drivers *mongo.Collection
}

func NewStore(client *mongo.Client, database string) *Store {
	db := client.Database(database)

	return &Store{
		orders:  db.Collection("orders"),
		drivers: db.Collection("drivers"),
	}
}

func (s *Store) GetOrder(ctx context.Context, orderId string) (lifecycle.Order, error) {
	var order Order

	err := s.orders.FindOne(ctx, bson.M{"_id": orderId}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return lifecycle.Order{}, ierr.New(ierr.ErrorCodeNotFound, fmt.Errorf("order %s not found", orderId))
	}
	if err != nil {
		return lifecycle.Order{}, fmt.Errorf("failed to load order %s: %w", orderId, err)
	}

	return order.toLifecycle(), nil
}

func (s *Store) GetDriver(ctx context.Context, driverId string) (lifecycle.Driver, error) {
	var driver Driver

	err := s.drivers.FindOne(ctx, bson.M{"_id": driverId}).Decode(&driver)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return lifecycle.Driver{}, ierr.New(ierr.ErrorCodeNotFound, fmt.Errorf("driver %s not found", driverId))
	}
	if err != nil {
		return lifecycle.Driver{}, fmt.Errorf("failed to load driver %s: %w", driverId, err)
	}

	return driver.toLifecycle(), nil
}

func (s *Store) ActiveDeliveries(ctx context.Context, driverId string) ([]lifecycle.Order, error) {
	filter := bson.M{
		"driverId": driverId,
		"status":   string(lifecycle.StatusOutForDelivery),
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(50)

	cursor, err := s.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries of driver %s: %w", driverId, err)
	}

	var documents []Order
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("failed to decode deliveries of driver %s: %w", driverId, err)
	}

	orders := make([]lifecycle.Order, len(documents))
	for i, document := range documents {
		orders[i] = document.toLifecycle()
	}

	return orders, nil
}

func (o Order) toLifecycle() lifecycle.Order {
	return lifecycle.Order{
		Id:           o.Id,
		Status:       lifecycle.Status(o.Status),
		CustomerId:   o.CustomerId,
		RestaurantId: o.RestaurantId,
		DriverId:     o.DriverId,
	}
}

func (d Driver) toLifecycle() lifecycle.Driver {
	driver := lifecycle.Driver{
		Id:   d.Id,
		Name: d.Name,
	}

	if d.Location != nil {
		driver.Location = &lifecycle.Coordinates{
			Latitude:  d.Location.Latitude,
			Longitude: d.Location.Longitude,
		}
	}

	return driver
}
