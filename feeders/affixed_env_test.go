package feeders

import (
	"errors"
	"testing"
	"time"
)

func TestAffixedEnvFeeder(t *testing.T) {
	type Config struct {
		Addr    string        `env:"SERVER_ADDR"`
		Port    int           `env:"SMTP_PORT"`
		Watch   bool          `env:"CATALOG_WATCH"`
		Timeout time.Duration `env:"API_TIMEOUT"`
		Brokers []string      `env:"KAFKA_BROKERS"`
		Nested  struct {
			Level string `env:"LOG_LEVEL"`
		}
		Untagged string
	}

	t.Run("with prefix", func(t *testing.T) {
		t.Setenv("STOREFRONT_SERVER_ADDR", ":9090")
		t.Setenv("STOREFRONT_SMTP_PORT", "2525")
		t.Setenv("STOREFRONT_CATALOG_WATCH", "true")
		t.Setenv("STOREFRONT_API_TIMEOUT", "3s")
		t.Setenv("STOREFRONT_KAFKA_BROKERS", "k1:9092, k2:9092,")
		t.Setenv("STOREFRONT_LOG_LEVEL", "debug")

		config := Config{Untagged: "kept"}
		if err := NewAffixedEnvFeeder("storefront", "").Feed(&config); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if config.Addr != ":9090" {
			t.Errorf("Expected Addr to be ':9090', got '%s'", config.Addr)
		}
		if config.Port != 2525 {
			t.Errorf("Expected Port to be 2525, got %d", config.Port)
		}
		if !config.Watch {
			t.Errorf("Expected Watch to be true")
		}
		if config.Timeout != 3*time.Second {
			t.Errorf("Expected Timeout to be 3s, got %v", config.Timeout)
		}
		if len(config.Brokers) != 2 || config.Brokers[0] != "k1:9092" || config.Brokers[1] != "k2:9092" {
			t.Errorf("Expected two brokers, got %v", config.Brokers)
		}
		if config.Nested.Level != "debug" {
			t.Errorf("Expected Nested.Level to be 'debug', got '%s'", config.Nested.Level)
		}
		if config.Untagged != "kept" {
			t.Errorf("Expected untagged field to be left alone, got '%s'", config.Untagged)
		}
	})

	t.Run("unset variables keep existing values", func(t *testing.T) {
		config := Config{Addr: ":8080"}
		if err := NewAffixedEnvFeeder("UNSET_PREFIX", "").Feed(&config); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if config.Addr != ":8080" {
			t.Errorf("Expected Addr to stay ':8080', got '%s'", config.Addr)
		}
	})

	t.Run("invalid conversion", func(t *testing.T) {
		t.Setenv("BAD_SMTP_PORT", "not-a-number")
		var config Config
		if err := NewAffixedEnvFeeder("BAD", "").Feed(&config); err == nil {
			t.Fatal("Expected conversion error")
		}
	})

	t.Run("invalid structure", func(t *testing.T) {
		var notStruct string
		if err := NewAffixedEnvFeeder("APP", "").Feed(&notStruct); !errors.Is(err, ErrEnvInvalidStructure) {
			t.Errorf("Expected ErrEnvInvalidStructure, got %v", err)
		}
		if err := NewAffixedEnvFeeder("APP", "").Feed(Config{}); !errors.Is(err, ErrEnvInvalidStructure) {
			t.Errorf("Expected ErrEnvInvalidStructure for non-pointer, got %v", err)
		}
	})

	t.Run("empty prefix and suffix", func(t *testing.T) {
		var config Config
		if err := NewAffixedEnvFeeder("", "").Feed(&config); !errors.Is(err, ErrEnvEmptyPrefixAndSuffix) {
			t.Errorf("Expected ErrEnvEmptyPrefixAndSuffix, got %v", err)
		}
	})
}
