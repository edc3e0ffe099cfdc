package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// JSONMap is a loosely typed document stored as jsonb in PostgreSQL and as an
// object in SurrealDB. Compensation records keep prior entity state in it.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into JSONMap", value)
	}
	return json.Unmarshal(raw, j)
}

// ToJSONMap converts any JSON-serializable value into a JSONMap.
func ToJSONMap(v any) (JSONMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m JSONMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode converts the map back into a typed value.
func (j JSONMap) Decode(target any) error {
	raw, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

// Timestamps in both stores are kept at microsecond precision, which is what
// PostgreSQL timestamptz can hold.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// User is an account. Timestamps are assigned by the caller so that both
// stores receive identical values.
type User struct {
	ID           UserID    `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username" validate:"required,min=3,max=50"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	PasswordHash string    `gorm:"not null" json:"password_hash" validate:"required"`
	FirstName    string    `json:"first_name" validate:"max=100"`
	LastName     string    `json:"last_name" validate:"max=100"`
	IsSeller     bool      `gorm:"not null;default:false" json:"is_seller"`
	SuperAdmin   bool      `gorm:"not null;default:false" json:"super_admin"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// Redacted returns a copy safe to log or serve.
func (u User) Redacted() User {
	if u.PasswordHash != "" {
		u.PasswordHash = "[REDACTED]"
	}
	return u
}

type Category struct {
	ID        CategoryID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string      `gorm:"not null" json:"name" validate:"required,max=100"`
	ParentID  *CategoryID `gorm:"type:uuid" json:"parent_id,omitempty"`
	CreatedAt time.Time   `gorm:"autoCreateTime:false" json:"created_at"`
}

type Product struct {
	ID                ProductID  `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID          UserID     `gorm:"type:uuid;not null;index" json:"seller_id" validate:"required"`
	CategoryID        CategoryID `gorm:"type:uuid;not null;index" json:"category_id" validate:"required"`
	Name              string     `gorm:"not null" json:"name" validate:"required,max=200"`
	Description       string     `gorm:"type:text" json:"description"`
	Price             float64    `gorm:"type:numeric(12,2);not null" json:"price" validate:"gte=0"`
	InventoryQuantity int        `gorm:"not null;default:0" json:"inventory_quantity" validate:"gte=0"`
	CreatedAt         time.Time  `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// CartItem is one product line in a user's cart. A user holds at most one
// item per product.
type CartItem struct {
	ID        CartItemID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    UserID     `gorm:"type:uuid;not null;uniqueIndex:idx_cart_user_product" json:"user_id" validate:"required"`
	ProductID ProductID  `gorm:"type:uuid;not null;uniqueIndex:idx_cart_user_product" json:"product_id" validate:"required"`
	Quantity  int        `gorm:"not null" json:"quantity" validate:"gt=0"`
	CreatedAt time.Time  `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime:false" json:"updated_at"`
}

type Order struct {
	ID          OrderID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      UserID      `gorm:"type:uuid;not null;index" json:"user_id" validate:"required"`
	TotalAmount float64     `gorm:"type:numeric(12,2);not null" json:"total_amount" validate:"gte=0"`
	Status      OrderStatus `gorm:"not null" json:"status"`
	Items       []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items" validate:"dive"`
	CreatedAt   time.Time   `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime:false" json:"updated_at"`
}

type OrderItem struct {
	ID          OrderItemID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID     OrderID     `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   ProductID   `gorm:"type:uuid;not null" json:"product_id" validate:"required"`
	Quantity    int         `gorm:"not null" json:"quantity" validate:"gt=0"`
	PriceAtTime float64     `gorm:"type:numeric(12,2);not null" json:"price_at_time" validate:"gte=0"`
}

// ComputeTotal sums quantity times price over the order's items.
func (o *Order) ComputeTotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += float64(item.Quantity) * item.PriceAtTime
	}
	return total
}
