package errors

import (
	"github.com/pkg/errors"
)

var (
	Wrapf     = errors.Wrapf
	Errorf    = errors.Errorf
	New       = errors.New
	WithStack = errors.WithStack
	Is        = errors.Is
	As        = errors.As
)

// WrapKindf marks err with kind and annotates it with a stack and message.
func WrapKindf(err error, kind error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(Mark(err, kind), format, args...)
}
