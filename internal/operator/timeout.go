package operator

import (
	"context"
	"time"
)

// CallTimeout bounds ctx by d, the options-provided read timeout for one
// external call (pcs_read_timeout, hsm_read_timeout, ...). A non-positive
// d leaves ctx unbounded rather than creating an instantly-expiring
// context, which matters before the options provider has ever observed
// a record and is still serving the zero value for a field added later.
func CallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
