package email

import (
	"context"
)

// Service delivers email. Implementations must respect ctx deadlines;
// callers treat failures as best-effort.
type Service interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
