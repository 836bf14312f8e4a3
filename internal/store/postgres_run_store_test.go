package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dunamismax/pixelpost/internal/domain"
	"github.com/dunamismax/pixelpost/internal/id"
)

func TestPostgresRunStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("PIXELPOST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PIXELPOST_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewPostgresRunStore(ctx, dsn)
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	defer s.Close()

	run := domain.Run{
		ID:          id.New("run"),
		Origin:      domain.RunOriginHTTP,
		Status:      domain.RunStatusSucceeded,
		Source:      "upload",
		Destination: "response.png",
		Codec:       "png",
		Request:     domain.DefaultTransformRequest(),
		Stages:      []string{"saturation", "mirror_horizontal"},
		OutputWidth: 20,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.Create(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok, err := s.Get(ctx, run.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Request != run.Request || len(got.Stages) != 2 || got.OutputWidth != 20 {
		t.Fatalf("unexpected run %+v", got)
	}

	runs, err := s.List(ctx, 5)
	if err != nil || len(runs) == 0 {
		t.Fatalf("list: %d runs err=%v", len(runs), err)
	}
}
