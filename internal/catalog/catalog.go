package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrInvalidService  = errors.New("invalid service")
)

// Service is a purchasable offering. Price is in minor currency units
// (cents), always positive. Name is the case-sensitive catalog key.
type Service struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Catalog is the authoritative name -> price mapping. Upsert overwrites an
// existing price for the same name; nothing else about a service changes
// after the fact, orders keep their own snapshot.
type Catalog interface {
	Upsert(ctx context.Context, name string, price int64) error
	Remove(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (Service, error)
	List(ctx context.Context) ([]Service, error)
}

func validate(name string, price int64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidService)
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be positive, got %d", ErrInvalidService, price)
	}
	return nil
}
