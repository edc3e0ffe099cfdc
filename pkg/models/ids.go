package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// recordIDTag is the CBOR tag SurrealDB uses for RecordIDs.
const recordIDTag = 8

// kind binds an ID type to the SurrealDB table its records live in.
type kind interface {
	table() string
	label() string
}

type userKind struct{}
type productKind struct{}
type categoryKind struct{}
type cartItemKind struct{}
type orderKind struct{}
type orderItemKind struct{}

func (userKind) table() string      { return "users" }
func (userKind) label() string      { return "user" }
func (productKind) table() string   { return "products" }
func (productKind) label() string   { return "product" }
func (categoryKind) table() string  { return "categories" }
func (categoryKind) label() string  { return "category" }
func (cartItemKind) table() string  { return "cart_items" }
func (cartItemKind) label() string  { return "cart item" }
func (orderKind) table() string     { return "orders" }
func (orderKind) label() string     { return "order" }
func (orderItemKind) table() string { return "order_items" }
func (orderItemKind) label() string { return "order item" }

// ID is a UUID that knows which table it belongs to. The same value is a
// uuid column in PostgreSQL and a RecordID in SurrealDB, so both stores
// address a record by the same identity.
type ID[K kind] struct {
	uuid uuid.UUID
}

type (
	UserID      = ID[userKind]
	ProductID   = ID[productKind]
	CategoryID  = ID[categoryKind]
	CartItemID  = ID[cartItemKind]
	OrderID     = ID[orderKind]
	OrderItemID = ID[orderItemKind]
)

func NewUserID() UserID           { return UserID{uuid: uuid.New()} }
func NewProductID() ProductID     { return ProductID{uuid: uuid.New()} }
func NewCategoryID() CategoryID   { return CategoryID{uuid: uuid.New()} }
func NewCartItemID() CartItemID   { return CartItemID{uuid: uuid.New()} }
func NewOrderID() OrderID         { return OrderID{uuid: uuid.New()} }
func NewOrderItemID() OrderItemID { return OrderItemID{uuid: uuid.New()} }

func ParseUserID(s string) (UserID, error)           { return parseID[userKind](s) }
func ParseProductID(s string) (ProductID, error)     { return parseID[productKind](s) }
func ParseCategoryID(s string) (CategoryID, error)   { return parseID[categoryKind](s) }
func ParseCartItemID(s string) (CartItemID, error)   { return parseID[cartItemKind](s) }
func ParseOrderID(s string) (OrderID, error)         { return parseID[orderKind](s) }
func ParseOrderItemID(s string) (OrderItemID, error) { return parseID[orderItemKind](s) }

func parseID[K kind](s string) (ID[K], error) {
	id, err := uuid.Parse(s)
	if err != nil {
		var k K
		return ID[K]{}, fmt.Errorf("invalid %s ID: %w", k.label(), err)
	}
	return ID[K]{uuid: id}, nil
}

func (i ID[K]) UUID() uuid.UUID { return i.uuid }
func (i ID[K]) String() string  { return i.uuid.String() }
func (i ID[K]) IsZero() bool    { return i.uuid == uuid.Nil }

// Table returns the SurrealDB table name for this ID type.
func (i ID[K]) Table() string {
	var k K
	return k.table()
}

func (i ID[K]) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: i.Table(),
		ID:    i.uuid.String(),
	}
}

func (i ID[K]) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.uuid.String())
}

func (i *ID[K]) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		i.uuid = uuid.Nil
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	i.uuid = id
	return nil
}

func (i ID[K]) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  recordIDTag,
		Content: []any{i.Table(), i.uuid.String()},
	})
}

func (i *ID[K]) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, i.Table(), &i.uuid)
}

func (i ID[K]) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}
	return i.uuid.String(), nil
}

func (i *ID[K]) Scan(value any) error {
	return scanUUID(value, &i.uuid)
}

func (ID[K]) GormDataType() string { return "uuid" }

func scanUUID(value any, target *uuid.UUID) error {
	switch v := value.(type) {
	case nil:
		*target = uuid.Nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	case [16]byte:
		*target = uuid.UUID(v)
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// unmarshalCBORID decodes a tag-8 [table, id] RecordID and checks the table.
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}
	if tag.Number != recordIDTag {
		return fmt.Errorf("expected RecordID tag (%d), got %d", recordIDTag, tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}
	table, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}
	if table != expectedTable {
		return fmt.Errorf("RecordID table mismatch: expected %s, got %s", expectedTable, table)
	}

	raw, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: id must be a string, got %T", arr[1])
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid UUID in RecordID: %w", err)
	}
	*target = id
	return nil
}
