package pool

import (
	"fmt"

	"github.com/mkarls/redisgw/internal/logging"
)

// nullPlaceholder stands in for missing backend error text.
const nullPlaceholder = "(null)"

// formatBounded renders a diagnostic line with a single %s substitution,
// substituting nullPlaceholder when arg is empty, and bounds the result to
// max bytes. Overlong backend error text is truncated, never escalated.
func formatBounded(format, arg string, max int) string {
	if arg == "" {
		arg = nullPlaceholder
	}
	return logging.Truncate(fmt.Sprintf(format, arg), max)
}
