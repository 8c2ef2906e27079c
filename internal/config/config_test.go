package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_BACKEND_HOST", "backend.internal")

		result := ResolveEnvVars("http://${TEST_BACKEND_HOST}:8000")
		if result != "http://backend.internal:8000" {
			t.Errorf("expected http://backend.internal:8000, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("defaults without a config file", func(t *testing.T) {
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Server.URL != "http://localhost:8000" {
			t.Errorf("server.url = %s", cfg.Server.URL)
		}
		if cfg.Poll.Interval != 2500*time.Millisecond {
			t.Errorf("poll.interval = %s, want 2.5s", cfg.Poll.Interval)
		}
		if cfg.Health.Attempts != 3 || cfg.Health.Timeout != 3*time.Second || cfg.Health.Delay != 500*time.Millisecond {
			t.Errorf("health = %+v", cfg.Health)
		}
		if cfg.JobGroup.Backend != "file" || cfg.JobGroup.Redis.Key != "docwatch:jobgroup" {
			t.Errorf("job_group = %+v", cfg.JobGroup)
		}
		if len(cfg.Extractors) != 2 || cfg.Extractors[0].Badge != "Docling" {
			t.Errorf("extractors = %+v", cfg.Extractors)
		}
		if mgr.ConfigFile() != "" {
			t.Errorf("ConfigFile() = %s, want empty", mgr.ConfigFile())
		}
	})

	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
server:
  url: "http://processing:9000"
poll:
  interval: 750ms
job_group:
  backend: redis
  redis:
    addr: "redis:6379"
extractors:
  - match: textract
    badge: AWS
`)

		mgr, err := NewManager(configFile, "")
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Server.URL != "http://processing:9000" {
			t.Errorf("expected http://processing:9000, got %s", cfg.Server.URL)
		}
		if cfg.Poll.Interval != 750*time.Millisecond {
			t.Errorf("poll.interval = %s, want 750ms", cfg.Poll.Interval)
		}
		if cfg.JobGroup.Backend != "redis" || cfg.JobGroup.Redis.Addr != "redis:6379" {
			t.Errorf("job_group = %+v", cfg.JobGroup)
		}
		if len(cfg.Extractors) != 1 || cfg.Extractors[0].Match != "textract" {
			t.Errorf("extractors = %+v", cfg.Extractors)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("DOCWATCH_SERVER_URL", "http://from-env:8000")

		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if got := mgr.Get().Server.URL; got != "http://from-env:8000" {
			t.Errorf("server.url = %s, want env value", got)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		configFile := writeConfig(t, `
job_group:
  backend: etcd
`)
		if _, err := NewManager(configFile, ""); err == nil {
			t.Error("expected error for unknown job group backend")
		}
	})

	t.Run("rejects malformed file", func(t *testing.T) {
		configFile := writeConfig(t, "server: [")
		if _, err := NewManager(configFile, ""); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})
}

func TestManager_Set(t *testing.T) {
	mgr, err := NewManager("", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if err := mgr.Set("server.url", "http://override:1234"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := mgr.Get().Server.URL; got != "http://override:1234" {
		t.Errorf("server.url = %s", got)
	}

	if err := mgr.Set("poll.interval", "0s"); err == nil {
		t.Error("expected error for zero poll interval")
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager("", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager("", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Call Get concurrently to verify no race conditions
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Poll.Interval
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, `
poll:
  interval: 2s
`)

	mgr, err := NewManager(configFile, "")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if got := mgr.Get().Poll.Interval; got != 2*time.Second {
		t.Errorf("initial interval mismatch: expected 2s, got %s", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Int64

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(int64(cfg.Poll.Interval))
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("poll:\n  interval: 5s\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Poll.Interval; got != 5*time.Second {
		t.Errorf("config not updated: expected 5s, got %s", got)
	}
	if got := time.Duration(lastValue.Load()); got != 5*time.Second {
		t.Errorf("callback received wrong value: expected 5s, got %s", got)
	}
}

func TestConfig_Conversions(t *testing.T) {
	t.Setenv("TEST_REDIS_PW", "hunter2")

	cfg := &Config{
		Server:   ServerCfg{URL: "http://x"},
		Poll:     PollCfg{Interval: time.Second},
		Health:   HealthCfg{Attempts: 5, Timeout: time.Second, Delay: 10 * time.Millisecond},
		JobGroup: JobGroupCfg{Backend: "redis"},
	}
	cfg.JobGroup.Redis.Password = "${TEST_REDIS_PW}"

	probe := cfg.ProbeConfig()
	if probe.Attempts != 5 || probe.Timeout != time.Second || probe.Delay != 10*time.Millisecond {
		t.Errorf("ProbeConfig() = %+v", probe)
	}

	jg := cfg.JobGroupConfig("/tmp/jobgroup.yaml")
	if jg.Backend != "redis" || jg.Path != "/tmp/jobgroup.yaml" || jg.Redis.Password != "hunter2" {
		t.Errorf("JobGroupConfig() = %+v", jg)
	}
	if cfg.JobGroup.Redis.Password != "${TEST_REDIS_PW}" {
		t.Error("JobGroupConfig() mutated the config")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerCfg{URL: "http://x"},
			Poll:   PollCfg{Interval: time.Second},
			Health: HealthCfg{Attempts: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing url", func(c *Config) { c.Server.URL = "" }, true},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }, true},
		{"zero attempts", func(c *Config) { c.Health.Attempts = 0 }, true},
		{"bad backend", func(c *Config) { c.JobGroup.Backend = "s3" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
