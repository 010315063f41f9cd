package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/syncroom/internal/repository/room"
)

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}

func (r repo) ttlSeconds() int64 {
	secs := int64(r.expireDuration.Seconds())
	if secs < 1 {
		secs = 1
	}

	return secs
}

// scriptResult maps the -1 sentinel of the room scripts to room.ErrRoomNotFound.
func (r repo) scriptResult(res any) (any, error) {
	if n, ok := res.(int64); ok && n == -1 {
		return nil, room.ErrRoomNotFound
	}

	return res, nil
}

func (r repo) flatToMap(res any) (map[string]string, error) {
	values, ok := res.([]any)
	if !ok || len(values)%2 != 0 {
		return nil, fmt.Errorf("unexpected hash reply: %v", res)
	}

	m := make(map[string]string, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		k, _ := values[i].(string)
		v, _ := values[i+1].(string)
		m[k] = v
	}

	return m, nil
}

func (r repo) fieldToBool(field string) bool {
	return field == "1"
}

func (r repo) fieldToInt64(field string) int64 {
	i, _ := strconv.ParseInt(field, 10, 64)
	return i
}

func (r repo) fieldToFloat64(field string) float64 {
	f, _ := strconv.ParseFloat(field, 64)
	return f
}

func (r repo) boolToField(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

func (r repo) float64ToField(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
