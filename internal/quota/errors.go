package quota

import (
	"fmt"

	"github.com/hugh/brokerdesk/internal/apperr"
)

// LimitExceededError reports a rejected reservation together with the
// numbers a caller needs to explain it.
type LimitExceededError struct {
	Resource  Resource
	Max       int
	Current   int
	Remaining int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: %d of %d in use", e.Resource, e.Current, e.Max)
}

func (e *LimitExceededError) Is(target error) bool {
	return target == apperr.ErrLimitExceeded
}

func (e *LimitExceededError) UserMessage() string {
	return fmt.Sprintf("%s limit reached (%d of %d used, %d remaining); upgrade the subscription to add more",
		e.Resource, e.Current, e.Max, e.Remaining)
}
