package domain

import "time"

// Storage keys. Items and the update timestamp live and die together:
// both are removed as soon as the cart becomes empty.
const (
	KeyItems     = "cart:items"
	KeyUpdatedAt = "cart:updated_at"
)

// DefaultTTL is the rolling expiration window for the whole cart,
// anchored at the last mutation, not per item.
const DefaultTTL = time.Hour

// VariantKey identifies a unique purchasable line in the cart.
type VariantKey struct {
	ProductID   string
	ColorCode   int
	StorageCode int
}

// LineItem is one cart row. Product fields are a display snapshot taken
// at add time; later catalog price changes do not reach the cart.
type LineItem struct {
	ProductID    string    `json:"product_id"`
	ProductName  string    `json:"product_name"`
	ProductImage string    `json:"product_image"`
	ProductPrice float64   `json:"product_price"`
	ColorCode    int       `json:"color_code"`
	ColorName    string    `json:"color_name"`
	StorageCode  int       `json:"storage_code"`
	StorageName  string    `json:"storage_name"`
	Quantity     int       `json:"quantity"`
	AddedAt      time.Time `json:"added_at"`
}

// Key returns the variant key of the line item
func (i LineItem) Key() VariantKey {
	return VariantKey{
		ProductID:   i.ProductID,
		ColorCode:   i.ColorCode,
		StorageCode: i.StorageCode,
	}
}

// TotalCount sums the quantities of a line item sequence
func TotalCount(items []LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

// NotificationKind distinguishes the two user-visible cart events.
type NotificationKind string

const (
	// NotificationExpired fires when the rolling TTL drops the cart.
	NotificationExpired NotificationKind = "cart.expired"
	// NotificationSessionReset fires when the server-side session count
	// shows the session was invalidated underneath the client.
	NotificationSessionReset NotificationKind = "cart.session_reset"
)

// Notification is a one-time user-visible cart event.
type Notification struct {
	Kind NotificationKind `json:"kind"`
	// Count is the number of units dropped by the event.
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}
