package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

var (
	redactKeyParts = []string{"token", "authorization", "password", "secret", "cookie", "api_key", "apikey", "email"}
	hashKeyParts   = []string{"user_id", "trainee_id", "trainer_id", "actor_id"}
)

type redactSettings struct {
	enabled bool
	salt    string
}

var (
	settingsOnce sync.Once
	settings     redactSettings
)

func currentSettings() redactSettings {
	settingsOnce.Do(func() {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			settings.enabled = false
		default:
			settings.enabled = true
		}
		settings.salt = strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))
	})
	return settings
}

func levelFromEnv() zapcore.Level {
	lvl := zapcore.DebugLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
			return zapcore.DebugLevel
		}
	}
	return lvl
}

// scrub rewrites a zap key/value list so credentials never reach the sink and
// user identifiers are replaced by a salted digest.
func scrub(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	s := currentSettings()
	if !s.enabled {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			out = append(out, kv[i])
			break
		}
		name := stringify(kv[i])
		out = append(out, name, scrubValue(s, strings.ToLower(strings.TrimSpace(name)), kv[i+1]))
	}
	return out
}

func scrubValue(s redactSettings, key string, val interface{}) interface{} {
	switch {
	case key != "" && containsAny(key, redactKeyParts):
		return redacted
	case key != "" && containsAny(key, hashKeyParts):
		return digest(s.salt, stringify(val))
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = scrubValue(s, strings.ToLower(strings.TrimSpace(k)), inner)
		}
		return out
	case string:
		if looksLikeJWT(v) {
			return redacted
		}
	}
	return val
}

func containsAny(key string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}

func digest(salt, raw string) string {
	if raw == "" {
		return ""
	}
	h := sha256.New()
	_, _ = h.Write([]byte(salt))
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
