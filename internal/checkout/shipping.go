package checkout

import (
	"context"
	"fmt"
	"strings"

	d "github.com/jyush98/jason-co-ecom-sub003/internal/domain"
)

var ErrUnknownShippingMethod = fmt.Errorf("%w: unknown shipping method", d.ErrValidation)

// ShippingQuoter lists the methods available for a destination.
type ShippingQuoter interface {
	Methods(ctx context.Context, destination d.Address) ([]d.ShippingMethod, error)
}

// StaticQuoter offers the same configured methods for every domestic destination.
type StaticQuoter struct {
	methods []d.ShippingMethod
}

func NewStaticQuoter(methods []d.ShippingMethod) *StaticQuoter {
	out := make([]d.ShippingMethod, len(methods))
	copy(out, methods)
	return &StaticQuoter{methods: out}
}

func (q *StaticQuoter) Methods(_ context.Context, destination d.Address) ([]d.ShippingMethod, error) {
	if c := strings.ToUpper(strings.TrimSpace(destination.Country)); c != "" && c != "US" && c != "USA" {
		return []d.ShippingMethod{}, nil
	}
	out := make([]d.ShippingMethod, len(q.methods))
	copy(out, q.methods)
	return out, nil
}

// FindMethod resolves id among the methods offered for destination.
func FindMethod(ctx context.Context, q ShippingQuoter, destination d.Address, id string) (d.ShippingMethod, error) {
	methods, err := q.Methods(ctx, destination)
	if err != nil {
		return d.ShippingMethod{}, &d.CollaboratorError{Service: "shipping", Err: err}
	}
	for _, m := range methods {
		if m.ID == id {
			return m, nil
		}
	}
	return d.ShippingMethod{}, fmt.Errorf("%w %q", ErrUnknownShippingMethod, id)
}
