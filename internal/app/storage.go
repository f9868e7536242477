package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/trainhub-backend/internal/platform/gcp"
	"github.com/yungbote/trainhub-backend/internal/platform/logger"
)

var newBucketService = gcp.NewBucketService

type StorageBootstrapErrorCode string

const (
	StorageBootstrapErrorInvalidMode         StorageBootstrapErrorCode = "invalid_mode"
	StorageBootstrapErrorMissingEmulatorHost StorageBootstrapErrorCode = "missing_emulator_host"
	StorageBootstrapErrorInvalidEmulatorHost StorageBootstrapErrorCode = "invalid_emulator_host"
	StorageBootstrapErrorConnectFailed       StorageBootstrapErrorCode = "connect_failed"
)

type StorageBootstrapError struct {
	Code         StorageBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageBootstrapError) Error() string {
	if e == nil {
		return "evidence storage bootstrap failed"
	}
	return fmt.Sprintf("evidence storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code, e.Mode, e.EmulatorHost, e.Cause)
}

func (e *StorageBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveBucketService returns nil without error when no evidence bucket is configured;
// uploads then fail with a precondition error while the rest of the API keeps working.
func resolveBucketService(ctx context.Context, log *logger.Logger, cfg Config) (gcp.BucketService, error) {
	if cfg.EvidenceBucketName == "" {
		log.Warn("EVIDENCE_BUCKET_NAME not set; evidence uploads are disabled")
		return nil, nil
	}
	storageCfg, err := gcp.ResolveObjectStorageConfig(cfg.ObjectStorageMode, cfg.StorageEmulatorHost)
	if err != nil {
		classified := classifyStorageError(storageCfg, err)
		log.Error("Evidence storage config invalid", "mode", cfg.ObjectStorageMode, "error", classified)
		return nil, classified
	}
	log.Info("Selecting evidence storage", "mode", storageCfg.Mode, "mode_source", storageCfg.ModeSource())

	bucket, err := newBucketService(ctx, log, gcp.BucketConfig{
		Bucket:        cfg.EvidenceBucketName,
		PublicBaseURL: cfg.EvidencePublicURL,
		Storage:       storageCfg,
	})
	if err != nil {
		classified := classifyStorageError(storageCfg, err)
		log.Error("Evidence storage bootstrap failed", "mode", storageCfg.Mode, "error", classified)
		return nil, classified
	}
	return bucket, nil
}

func classifyStorageError(storageCfg gcp.ObjectStorageConfig, err error) error {
	code := StorageBootstrapErrorConnectFailed
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ObjectStorageConfigErrorInvalidMode:
			code = StorageBootstrapErrorInvalidMode
		case gcp.ObjectStorageConfigErrorMissingEmulatorHost:
			code = StorageBootstrapErrorMissingEmulatorHost
		case gcp.ObjectStorageConfigErrorInvalidEmulatorHost:
			code = StorageBootstrapErrorInvalidEmulatorHost
		}
	}
	return &StorageBootstrapError{
		Code:         code,
		Mode:         string(storageCfg.Mode),
		EmulatorHost: storageCfg.EmulatorHost,
		Cause:        err,
	}
}
