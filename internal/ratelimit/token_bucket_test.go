package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewBucketValidates(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	if _, err := NewBucket(nil, BucketOptions{Capacity: 10, Window: time.Second}); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewBucket(client, BucketOptions{Window: time.Second}); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if _, err := NewBucket(client, BucketOptions{Capacity: 10}); err == nil {
		t.Fatal("expected error for zero window")
	}

	b, err := NewBucket(client, BucketOptions{Capacity: 120, Window: time.Minute})
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}
	if b.prefix != DefaultKeyPrefix {
		t.Fatalf("unexpected default prefix %q", b.prefix)
	}
	if b.intervalMS != 500 || b.windowMS != 60000 {
		t.Fatalf("unexpected interval %v window %v", b.intervalMS, b.windowMS)
	}
}

func TestDecisionFromReply(t *testing.T) {
	d, err := decisionFromReply([]int64{1, 7, 0})
	if err != nil {
		t.Fatalf("decision: %v", err)
	}
	if !d.Allowed || d.Remaining != 7 || d.RetryAfter != 0 {
		t.Fatalf("unexpected decision %+v", d)
	}

	d, err = decisionFromReply([]int64{0, -3, 1500})
	if err != nil {
		t.Fatalf("decision: %v", err)
	}
	if d.Allowed || d.Remaining != 0 || d.RetryAfter != 1500*time.Millisecond {
		t.Fatalf("unexpected decision %+v", d)
	}

	if _, err := decisionFromReply([]int64{1}); !errors.Is(err, ErrInvalidReply) {
		t.Fatalf("expected ErrInvalidReply for short reply, got %v", err)
	}
	if _, err := decisionFromReply([]int64{2, 0, 0}); !errors.Is(err, ErrInvalidReply) {
		t.Fatalf("expected ErrInvalidReply for bad flag, got %v", err)
	}
}

func TestCostForBytes(t *testing.T) {
	const mib = 1 << 20
	cases := []struct {
		size int64
		want int64
	}{
		{-1, 1},
		{0, 1},
		{1, 1},
		{mib, 1},
		{mib + 1, 2},
		{10 * mib, 10},
	}
	for _, tc := range cases {
		if got := CostForBytes(tc.size, mib); got != tc.want {
			t.Fatalf("CostForBytes(%d) = %d, want %d", tc.size, got, tc.want)
		}
	}
	if got := CostForBytes(5*mib, 0); got != 1 {
		t.Fatalf("expected unit cost for zero unit, got %d", got)
	}
}
