package redisstream

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xstream"
)

// toEntry copies a stream message into an Entry, normalizing values to strings.
func toEntry(msg redis.XMessage) xstream.Entry {
	f := make(xstream.Fields, len(msg.Values))
	for k, v := range msg.Values {
		f[k] = asString(v)
	}
	return xstream.Entry{ID: msg.ID, Fields: f}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
