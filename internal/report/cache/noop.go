package cache

import (
	"context"

	id "fasela/pkg/domain"
)

// Noop never stores anything.
type Noop struct{}

func (Noop) Generation(context.Context, id.OrganizationID) (int64, error) { return 0, nil }

func (Noop) Get(context.Context, id.OrganizationID, int64, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, id.OrganizationID, int64, string, []byte) error { return nil }

func (Noop) Invalidate(context.Context, id.OrganizationID) {}
