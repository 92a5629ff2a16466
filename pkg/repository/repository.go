package repository

import (
	"context"

	"github.com/smallbiznis/sims/pkg/db/option"
)

// Repository is a thin generic gorm store. Filters are struct conditions:
// zero-valued fields are ignored.
type Repository[T any] interface {
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, query *T) (int64, error)
	Create(ctx context.Context, resource *T) error
}
