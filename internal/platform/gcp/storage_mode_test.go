package gcp

import (
	"errors"
	"testing"
)

func TestResolveObjectStorageConfig(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		host     string
		want     ObjectStorageMode
		inferred bool
		errCode  ObjectStorageConfigErrorCode
	}{
		{name: "default gcs", want: ObjectStorageModeGCS},
		{name: "explicit gcs ignores host", mode: "gcs", host: "http://fake-gcs:4443", want: ObjectStorageModeGCS},
		{name: "explicit emulator", mode: "GCS_EMULATOR", host: "http://fake-gcs:4443/", want: ObjectStorageModeGCSEmulator},
		{name: "inferred emulator", host: "http://fake-gcs:4443", want: ObjectStorageModeGCSEmulator, inferred: true},
		{name: "invalid mode", mode: "local", errCode: ObjectStorageConfigErrorInvalidMode},
		{name: "emulator without host", mode: "gcs_emulator", errCode: ObjectStorageConfigErrorMissingEmulatorHost},
		{name: "emulator host without scheme", mode: "gcs_emulator", host: "fake-gcs:4443", errCode: ObjectStorageConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ResolveObjectStorageConfig(tc.mode, tc.host)
			if tc.errCode != "" {
				var cfgErr *ObjectStorageConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected ObjectStorageConfigError, got %v", err)
				}
				if cfgErr.Code != tc.errCode {
					t.Fatalf("code: want=%q got=%q", tc.errCode, cfgErr.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveObjectStorageConfig: %v", err)
			}
			if cfg.Mode != tc.want {
				t.Fatalf("mode: want=%q got=%q", tc.want, cfg.Mode)
			}
			if cfg.Inferred != tc.inferred {
				t.Fatalf("inferred: want=%v got=%v", tc.inferred, cfg.Inferred)
			}
		})
	}
}

func TestObjectStorageConfigHelpers(t *testing.T) {
	cfg := ObjectStorageConfig{Mode: ObjectStorageModeGCS}
	if cfg.IsEmulatorMode() {
		t.Fatalf("gcs config should not be emulator mode")
	}
	if got := cfg.ModeSource(); got != "explicit_or_default" {
		t.Fatalf("ModeSource: want=%q got=%q", "explicit_or_default", got)
	}
	cfg = ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, Inferred: true}
	if !cfg.IsEmulatorMode() {
		t.Fatalf("gcs_emulator config should be emulator mode")
	}
	if got := cfg.ModeSource(); got != "emulator_host" {
		t.Fatalf("ModeSource: want=%q got=%q", "emulator_host", got)
	}
}
