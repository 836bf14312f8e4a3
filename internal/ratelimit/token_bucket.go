package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "pixelpost:ratelimit"

var ErrInvalidReply = errors.New("invalid rate limit reply")

// gcraScript stores one theoretical arrival time (TAT) per key, in
// milliseconds. A request of cost n pushes the TAT forward by n intervals and
// is admitted while the TAT stays within one window of now.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local tat = tonumber(redis.call("GET", KEYS[1]))
if tat == nil or tat < now then
  tat = now
end

local next_tat = tat + cost * interval
local allow_at = next_tat - window
if now < allow_at then
  local left = math.floor((now - (tat - window)) / interval)
  return {0, math.max(left, 0), math.ceil(allow_at - now)}
end

redis.call("SET", KEYS[1], tostring(next_tat), "PX", math.max(1, math.ceil(next_tat - now)))
return {1, math.floor((now - allow_at) / interval), 0}
`)

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type BucketOptions struct {
	// Capacity is the number of cost units a subject may spend per Window.
	Capacity int
	Window   time.Duration
	Prefix   string
}

// Bucket meters request cost per subject in Redis. Cost units refill
// continuously at Capacity per Window, and a full bucket holds Capacity units.
type Bucket struct {
	client     redis.UniversalClient
	capacity   int64
	intervalMS float64
	windowMS   int64
	prefix     string
	now        func() time.Time
}

func NewBucket(client redis.UniversalClient, opts BucketOptions) (*Bucket, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if opts.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive")
	}
	if opts.Window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	windowMS := max(opts.Window.Milliseconds(), 1)
	return &Bucket{
		client:     client,
		capacity:   int64(opts.Capacity),
		intervalMS: float64(windowMS) / float64(opts.Capacity),
		windowMS:   windowMS,
		prefix:     prefix,
		now:        time.Now,
	}, nil
}

// Take spends cost units from subject's bucket. Costs above capacity are
// clamped so an oversized request can still pass once the bucket is full.
func (b *Bucket) Take(ctx context.Context, subject string, cost int64) (Decision, error) {
	cost = min(max(cost, 1), b.capacity)
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}

	reply, err := gcraScript.Run(ctx, b.client,
		[]string{b.prefix + ":" + subject},
		b.now().UnixMilli(),
		strconv.FormatFloat(b.intervalMS, 'f', -1, 64),
		b.windowMS,
		cost,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate rate limit: %w", err)
	}
	return decisionFromReply(reply)
}

func decisionFromReply(reply []int64) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("%w: %d values", ErrInvalidReply, len(reply))
	}
	if reply[0] != 0 && reply[0] != 1 {
		return Decision{}, fmt.Errorf("%w: allowed=%d", ErrInvalidReply, reply[0])
	}
	return Decision{
		Allowed:    reply[0] == 1,
		Remaining:  max(reply[1], 0),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// CostForBytes converts a request size into cost units: one unit per started
// unitBytes, and one unit when the size is unknown.
func CostForBytes(size, unitBytes int64) int64 {
	if size <= 0 || unitBytes <= 0 {
		return 1
	}
	return (size + unitBytes - 1) / unitBytes
}
