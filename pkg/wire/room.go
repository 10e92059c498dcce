package wire

import "strings"

const (
	userRoomPrefix       = "user_"
	restaurantRoomPrefix = "restaurant_"
	orderRoomPrefix      = "order_"

	// DriversRoom is the pool of idle drivers waiting for a job.
	DriversRoom = "drivers"
)

// UserRoom is a subscriber's personal room; every connection joins it on open.
func UserRoom(userId string) string {
	return userRoomPrefix + userId
}

func RestaurantRoom(restaurantId string) string {
	return restaurantRoomPrefix + restaurantId
}

func OrderRoom(orderId string) string {
	return orderRoomPrefix + orderId
}

func IsUserRoom(room string) bool {
	return strings.HasPrefix(room, userRoomPrefix)
}
