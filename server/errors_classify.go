package server

import (
	"errors"
	"fmt"
	"os"
)

func isNotExist(err error) bool   { return errors.Is(err, os.ErrNotExist) || os.IsNotExist(err) }
func isPermission(err error) bool { return errors.Is(err, os.ErrPermission) || os.IsPermission(err) }
func isExist(err error) bool      { return errors.Is(err, os.ErrExist) || os.IsExist(err) }

// formatLog renders a logf-style call into a single message string for
// slog's message argument by applying args to format's verbs with
// fmt.Sprintf; structured fields are attached separately by session.log().
func formatLog(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
