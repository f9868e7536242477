package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/trainhub-backend/internal/platform/gcp"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

func stubBucketService(t *testing.T, fn func(context.Context, *logger.Logger, gcp.BucketConfig) (gcp.BucketService, error)) {
	t.Helper()
	prev := newBucketService
	newBucketService = fn
	t.Cleanup(func() { newBucketService = prev })
}

func TestResolveBucketServiceDisabledWithoutBucket(t *testing.T) {
	stubBucketService(t, func(context.Context, *logger.Logger, gcp.BucketConfig) (gcp.BucketService, error) {
		t.Fatalf("constructor must not be called")
		return nil, nil
	})
	b, err := resolveBucketService(context.Background(), logger.Nop(), Config{})
	if err != nil || b != nil {
		t.Fatalf("expected disabled storage, got %v %v", b, err)
	}
}

func TestResolveBucketServiceClassifiesConfigErrors(t *testing.T) {
	stubBucketService(t, func(context.Context, *logger.Logger, gcp.BucketConfig) (gcp.BucketService, error) {
		t.Fatalf("constructor must not be called")
		return nil, nil
	})
	cases := []struct {
		name string
		cfg  Config
		want StorageBootstrapErrorCode
	}{
		{"invalid mode", Config{EvidenceBucketName: "ev", ObjectStorageMode: "s3"}, StorageBootstrapErrorInvalidMode},
		{"missing emulator host", Config{EvidenceBucketName: "ev", ObjectStorageMode: "gcs_emulator"}, StorageBootstrapErrorMissingEmulatorHost},
		{"invalid emulator host", Config{EvidenceBucketName: "ev", ObjectStorageMode: "gcs_emulator", StorageEmulatorHost: "fake-gcs:4443"}, StorageBootstrapErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolveBucketService(context.Background(), logger.Nop(), tc.cfg)
			var got *StorageBootstrapError
			if !errors.As(err, &got) {
				t.Fatalf("expected StorageBootstrapError, got %T (%v)", err, err)
			}
			if got.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
			}
		})
	}
}

func TestResolveBucketServiceConnectFailure(t *testing.T) {
	var seen gcp.BucketConfig
	stubBucketService(t, func(_ context.Context, _ *logger.Logger, cfg gcp.BucketConfig) (gcp.BucketService, error) {
		seen = cfg
		return nil, errors.New("dial tcp: refused")
	})
	_, err := resolveBucketService(context.Background(), logger.Nop(), Config{
		EvidenceBucketName:  "evidence",
		StorageEmulatorHost: "http://fake-gcs:4443",
	})
	var got *StorageBootstrapError
	if !errors.As(err, &got) || got.Code != StorageBootstrapErrorConnectFailed {
		t.Fatalf("expected connect_failed, got %v", err)
	}
	if seen.Bucket != "evidence" || seen.Storage.Mode != gcp.ObjectStorageModeGCSEmulator {
		t.Fatalf("unexpected bucket config %+v", seen)
	}
}
