package access

import (
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/tenancy"
)

// Require turns a deny into apperr.ErrUnauthorized.
func Require(p tenancy.Principal, op Operation, t Target) error {
	if d := Authorize(p, op, t); !d.Allowed {
		return apperr.Unauthorized("%s not permitted (%s)", op, d.Reason)
	}
	return nil
}

// Guard applies the existence-hiding policy: a principal that may not view
// the resource gets NotFound, one that may view but not perform op gets
// Unauthorized. When op is the view operation itself only the first check
// applies.
func Guard(p tenancy.Principal, view, op Operation, t Target, resource string) error {
	if d := Authorize(p, view, t); !d.Allowed {
		return apperr.NotFound("%s not found", resource)
	}
	if op == view {
		return nil
	}
	return Require(p, op, t)
}
