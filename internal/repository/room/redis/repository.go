package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc             *redis.Client
	logger         *slog.Logger
	expireDuration time.Duration
	now            func() time.Time
}

func NewRepo(rc *redis.Client, logger *slog.Logger, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		logger:         logger,
		expireDuration: expireDuration,
		now:            time.Now,
	}
}

// All keys of a room, in the order the scripts below expect them as KEYS.
const (
	roomKeyIdx = iota
	videoKeyIdx
	permissionsKeyIdx
	participantsKeyIdx
	usernamesKeyIdx
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) getVideoKey(roomId string) string {
	return "room:" + roomId + ":video"
}

func (r repo) getPermissionsKey(roomId string) string {
	return "room:" + roomId + ":permissions"
}

func (r repo) getParticipantsKey(roomId string) string {
	return "room:" + roomId + ":participants"
}

func (r repo) getUsernamesKey(roomId string) string {
	return "room:" + roomId + ":usernames"
}

func (r repo) getRoomKeys(roomId string) []string {
	return []string{
		r.getRoomKey(roomId),
		r.getVideoKey(roomId),
		r.getPermissionsKey(roomId),
		r.getParticipantsKey(roomId),
		r.getUsernamesKey(roomId),
	}
}

// Every script returns -1 when the room hash does not exist and refreshes the TTL
// of all room keys otherwise.

var addParticipantScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1
	end

	local added = 0
	if not redis.call('ZSCORE', KEYS[4], ARGV[2]) then
		local maxScore = redis.call('ZREVRANGE', KEYS[4], 0, 0, 'WITHSCORES')
		local nextScore = 1
		if #maxScore > 0 then
			nextScore = tonumber(maxScore[2]) + 1
		end
		redis.call('ZADD', KEYS[4], nextScore, ARGV[2])
		redis.call('HSET', KEYS[5], ARGV[2], ARGV[3])
		added = 1
	end

	for i, key in ipairs(KEYS) do
		redis.call('EXPIRE', key, ARGV[1])
	end

	return added
`)

var removeParticipantScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1
	end

	local removed = 0
	if redis.call('HGET', KEYS[1], 'owner_id') ~= ARGV[2] then
		removed = redis.call('ZREM', KEYS[4], ARGV[2])
		redis.call('HDEL', KEYS[5], ARGV[2])
	end

	for i, key in ipairs(KEYS) do
		redis.call('EXPIRE', key, ARGV[1])
	end

	return removed
`)

// ARGV[2] is the 1-based index into KEYS of the hash to write, the rest are
// field/value pairs. Returns the written hash as a flat HGETALL reply.
var setHashScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1
	end

	local target = KEYS[tonumber(ARGV[2])]
	redis.call('HSET', target, unpack(ARGV, 3))

	for i, key in ipairs(KEYS) do
		redis.call('EXPIRE', key, ARGV[1])
	end

	return redis.call('HGETALL', target)
`)
