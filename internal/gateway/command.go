package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

// parseCommand splits a /COMMAND/arg1/arg2 path into backend command
// arguments. Each segment is URL-unescaped, so keys may contain slashes
// when encoded as %2F. Empty trailing segments are kept: /SET/key/ sets
// an empty value.
func parseCommand(path string) ([]string, error) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil, ErrEmptyCommand
	}

	segments := strings.Split(trimmed, "/")
	args := make([]string, 0, len(segments))
	for _, seg := range segments {
		arg, err := url.PathUnescape(seg)
		if err != nil {
			return nil, fmt.Errorf("unescape argument %q: %w", seg, err)
		}
		args = append(args, arg)
	}

	if args[0] == "" {
		return nil, ErrEmptyCommand
	}
	return args, nil
}
