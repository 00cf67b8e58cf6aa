package gateway

import (
	"encoding/json"
	"strings"

	"github.com/mkarls/redisgw/internal/resp"
)

// renderReply encodes a backend reply as the gateway's JSON body: an
// object keyed by the command name (uppercased).
//
//	status  -> [true, "OK"]
//	error   -> [false, "ERR ..."]
//	integer -> number
//	bulk    -> string
//	nil     -> null
//	array   -> list (recursive)
func renderReply(cmd string, reply *resp.Reply) ([]byte, error) {
	return json.Marshal(map[string]any{
		strings.ToUpper(cmd): replyValue(reply),
	})
}

func replyValue(reply *resp.Reply) any {
	if reply == nil {
		return nil
	}
	switch reply.Type {
	case resp.TypeStatus:
		return []any{true, reply.Str}
	case resp.TypeError:
		return []any{false, reply.Str}
	case resp.TypeInteger:
		return reply.Int
	case resp.TypeBulk:
		return reply.Str
	case resp.TypeArray:
		values := make([]any, 0, len(reply.Elems))
		for _, e := range reply.Elems {
			values = append(values, replyValue(e))
		}
		return values
	default:
		return nil
	}
}
