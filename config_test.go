package sudocache

import "testing"

func TestConfigLoadYAML(t *testing.T) {
	data := []byte(`
store:
  backend: sqlite
  subtree: prod-rules
  sqlite_dsn: "file:cache.db"
  ristretto_num_counter: 65536
  ristretto_max_cost: 4194304
  ristretto_buffer: 64
logging:
  driver: slog
`)
	cfg, err := NewConfigLoader().LoadYAML(data)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Subtree != "prod-rules" {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Logging.Driver != "slog" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.Store.Backend = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("sqlite without dsn should fail validation")
	}

	cfg.Store.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("redis without addr should fail validation")
	}

	cfg.Store.Backend = "etcd"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown backend should fail validation")
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "redis"
	cfg.Store.RedisAddr = "localhost:6379"

	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	loaded, err := NewConfigLoader().LoadJSON(data)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if loaded.Store.RedisAddr != "localhost:6379" {
		t.Fatalf("redis addr lost: %+v", loaded.Store)
	}
}
