package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

// usageError marks mistakes in how the command was invoked, so Execute can
// re-print usage for those and stay quiet about it for runtime failures.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func wrapUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

// usageArgs adapts a cobra argument validator so its failures count as
// usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if validate == nil {
			return nil
		}
		if err := validate(cmd, args); err != nil {
			return wrapUsageError(err)
		}
		return nil
	}
}

func isUsageError(err error) bool {
	var ue *usageError
	if errors.As(err, &ue) {
		return true
	}

	// Cobra reports unknown subcommands as plain errors without any
	// marker type.
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command ")
}
