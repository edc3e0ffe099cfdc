package coordinator

import (
	"errors"
	"fmt"

	"github.com/surrealdb/surrealshift/pkg/store"
)

var (
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInvalidStatus         = errors.New("invalid order status")
	ErrInvalidParent         = errors.New("invalid parent category")
)

// NotFoundError reports a write addressed to a record the store does not
// hold. It matches store.ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == store.ErrNotFound }
