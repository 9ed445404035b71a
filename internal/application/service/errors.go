package service

import (
	"errors"
	"fmt"

	"github.com/brightpath/screening-lifecycle/internal/domain/apperr"
	domainwf "github.com/brightpath/screening-lifecycle/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// mapMachineErr translates transition-table rejections into the
// service error taxonomy. Anything the table refuses is an InvalidState
// from the caller's point of view.
func mapMachineErr(err error) error {
	if errors.Is(err, domainwf.ErrIllegalTransition) ||
		errors.Is(err, domainwf.ErrUnknownEvent) ||
		errors.Is(err, domainwf.ErrGuardFailed) {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidState, err)
	}
	return err
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", apperr.ErrNotFound, kind, id)
}
