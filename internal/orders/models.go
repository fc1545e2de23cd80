package orders

import "time"

type Order struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	Status      Status      `json:"status"`
	Currency    string      `json:"currency"`
	TotalCents  int         `json:"total_cents"`
	Provider    string      `json:"provider"`
	ProviderRef *string     `json:"provider_ref,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Items       []OrderItem `json:"items,omitempty"`
}

// OrderItem is a frozen line snapshot: unit_cents and name_snap are captured
// at order-creation time and never follow later catalog edits.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitCents int    `json:"unit_cents"`
	NameSnap  string `json:"name_snap"`
}

// NewItem is the input for one line of a new order.
type NewItem struct {
	ProductID string
	Quantity  int
	UnitCents int
	NameSnap  string
}
