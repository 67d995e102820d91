package replay

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedInstruction is returned for opcodes the machine does not
	// execute, such as branches and wide arithmetic.
	ErrUnsupportedInstruction = errors.New("unsupported instruction")

	// ErrUncaught is returned when a thrown object reaches the end of the
	// method without a matching handler.
	ErrUncaught = errors.New("uncaught exception")

	// ErrVerify is returned when an instruction finds operands of the wrong
	// kind or count on the stack.
	ErrVerify = errors.New("verification failed")

	// ErrNoSuchMethod is returned for calls with no host binding.
	ErrNoSuchMethod = errors.New("no such method")
)

// UncaughtError carries the object that escaped the method.
type UncaughtError struct {
	Exception *Object
	PC        int
}

func (e *UncaughtError) Error() string {
	if e.Exception.Message != "" {
		return fmt.Sprintf("%v: %s: %s (at %d)", ErrUncaught, e.Exception.Class, e.Exception.Message, e.PC)
	}
	return fmt.Sprintf("%v: %s (at %d)", ErrUncaught, e.Exception.Class, e.PC)
}

func (e *UncaughtError) Unwrap() error {
	return ErrUncaught
}

func verifyError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrVerify, fmt.Sprintf(format, args...))
}
