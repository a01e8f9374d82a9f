package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIDCMS_PORT", "")
	t.Setenv("VIDCMS_STORAGE_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port 8080 got %d", cfg.AppPort)
	}
	if cfg.Storage.Driver != DriverLocal {
		t.Fatalf("expected local storage driver got %q", cfg.Storage.Driver)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl %v", cfg.AccessTokenTTL)
	}
	if len(cfg.Upload.AllowedMIME) == 0 {
		t.Fatal("expected default MIME allowlist")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIDCMS_PORT", "9090")
	t.Setenv("VIDCMS_FEED_CACHE_TTL", "30s")
	t.Setenv("VIDCMS_ALLOWED_MIME", "video/mp4, video/webm ,")
	t.Setenv("VIDCMS_S3_USE_SSL", "false")
	t.Setenv("VIDCMS_MAX_UPLOAD_MB", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 9090 {
		t.Fatalf("expected port override got %d", cfg.AppPort)
	}
	if cfg.FeedCacheTTL != 30*time.Second {
		t.Fatalf("expected ttl override got %v", cfg.FeedCacheTTL)
	}
	if len(cfg.Upload.AllowedMIME) != 2 || cfg.Upload.AllowedMIME[1] != "video/webm" {
		t.Fatalf("unexpected MIME list %v", cfg.Upload.AllowedMIME)
	}
	if cfg.Storage.UseSSL {
		t.Fatal("expected ssl disabled")
	}
	if cfg.Upload.MaxUploadMB != 512 {
		t.Fatalf("expected fallback upload limit got %d", cfg.Upload.MaxUploadMB)
	}
	if cfg.Upload.MaxUploadBytes() != 512*1024*1024 {
		t.Fatalf("unexpected byte limit %d", cfg.Upload.MaxUploadBytes())
	}
}

func TestValidate(t *testing.T) {
	base := Config{AppPort: 8080, JWTSecret: "x", Storage: ObjectStoreConfig{Driver: DriverLocal, LocalDir: "uploads"}}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}

	cases := map[string]func(c *Config){
		"unknownDriver": func(c *Config) { c.Storage.Driver = "ftp" },
		"s3NoBucket":    func(c *Config) { c.Storage.Driver = DriverS3 },
		"minioNoBucket": func(c *Config) { c.Storage.Driver = DriverMinio },
		"badPort":       func(c *Config) { c.AppPort = 0 },
		"noSecret":      func(c *Config) { c.JWTSecret = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCheckServeSecrets(t *testing.T) {
	strong := "0123456789abcdef0123456789abcdef"
	cases := []struct {
		name    string
		secret  string
		dev     bool
		wantErr bool
	}{
		{"defaultRejected", DefaultJWTSecret, false, true},
		{"shortRejected", "short-secret", false, true},
		{"strongAccepted", strong, false, false},
		{"defaultInDevMode", DefaultJWTSecret, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{JWTSecret: tc.secret, DevMode: tc.dev}
			err := cfg.CheckServeSecrets()
			if (err != nil) != tc.wantErr {
				t.Fatalf("CheckServeSecrets() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadDefaultSecretNeedsDevMode(t *testing.T) {
	t.Setenv("VIDCMS_JWT_SECRET", "")
	t.Setenv("VIDCMS_DEV_MODE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != DefaultJWTSecret || cfg.DevMode {
		t.Fatalf("unexpected defaults secret=%q dev=%v", cfg.JWTSecret, cfg.DevMode)
	}
	if err := cfg.CheckServeSecrets(); err == nil {
		t.Fatal("default secret must not pass outside dev mode")
	}

	t.Setenv("VIDCMS_DEV_MODE", "true")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.CheckServeSecrets(); err != nil {
		t.Fatalf("dev mode should accept the default secret: %v", err)
	}
}
