package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dunamismax/pixelpost/internal/storage"
)

type ObjectStoreFetcher struct {
	Storage *storage.Client
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, loc Location) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if loc.Scheme != SchemeS3 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocation, loc.Scheme)
	}
	return f.Storage.ReadObject(ctx, loc.Bucket, loc.Key)
}

// ObjectStoreEmitter uploads the encoded image with the codec's content type,
// creating the bucket on first use. Without Overwrite an existing key gets a
// numeric suffix, like LocalFileEmitter. The existence check and the upload
// are separate requests, so two writers racing for one key may still collide.
type ObjectStoreEmitter struct {
	Storage   *storage.Client
	Overwrite bool
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, loc Location, encoded Encoded) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}
	if loc.Scheme != SchemeS3 {
		return Output{}, fmt.Errorf("%w: %s", ErrUnsupportedLocation, loc.Scheme)
	}

	if err := e.Storage.EnsureBucket(ctx, loc.Bucket); err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}

	key := loc.Key
	if !e.Overwrite {
		var err error
		if key, err = e.availableKey(ctx, loc.Bucket, loc.Key); err != nil {
			return Output{}, fmt.Errorf("%w: %v", ErrEncodeFailure, err)
		}
	}

	if err := e.Storage.WriteObject(ctx, loc.Bucket, key, encoded.Data, encoded.Codec.ContentType()); err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}

	written := Location{Scheme: SchemeS3, Bucket: loc.Bucket, Key: key}
	return Output{
		Location: written.String(),
		Codec:    encoded.Codec,
		Bytes:    len(encoded.Data),
		Width:    encoded.Width,
		Height:   encoded.Height,
	}, nil
}

func (e ObjectStoreEmitter) availableKey(ctx context.Context, bucket, key string) (string, error) {
	for i := 0; i < maxCollisionSuffix; i++ {
		candidate := numberedName(key, i)
		exists, err := e.Storage.ObjectExists(ctx, bucket, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free key for s3://%s/%s", bucket, key)
}
