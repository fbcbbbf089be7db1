package config

import (
	"testing"
	"time"

	"github.com/treasury-tracker/internal/types"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Store.Backend != BackendFile {
		t.Errorf("Expected file backend by default, got %s", cfg.Store.Backend)
	}
	if cfg.Capture.DisplayCurrency != "usd" {
		t.Errorf("Expected usd display currency, got %s", cfg.Capture.DisplayCurrency)
	}
	if len(cfg.Capture.Assets) != 2 {
		t.Fatalf("Expected bitcoin and ethereum by default, got %v", cfg.Capture.Assets)
	}
	if cfg.Capture.Interval != 0 {
		t.Errorf("Expected the scheduler disabled by default, got %v", cfg.Capture.Interval)
	}
	if cfg.CoinGecko.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s request timeout, got %v", cfg.CoinGecko.RequestTimeout)
	}
}

func TestLoadConfig_UnknownBackend(t *testing.T) {
	t.Setenv("SNAPSHOT_STORE_BACKEND", "sqlite")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for unknown backend")
	}
}

func TestLoadConfig_TrackedAssets(t *testing.T) {
	t.Setenv("TRACKED_ASSETS", " bitcoin , ethereum ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []types.AssetID{types.AssetBitcoin, types.AssetEthereum}
	if len(cfg.Capture.Assets) != len(want) {
		t.Fatalf("Expected %d assets, got %v", len(want), cfg.Capture.Assets)
	}
	for i, asset := range want {
		if cfg.Capture.Assets[i] != asset {
			t.Errorf("Asset %d: expected %s, got %s", i, asset, cfg.Capture.Assets[i])
		}
	}
}

func TestLoadConfig_EmptyAssetList(t *testing.T) {
	t.Setenv("TRACKED_ASSETS", " , ")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for empty asset list")
	}
}

func TestLoadConfig_DisplayCurrencyLowercased(t *testing.T) {
	t.Setenv("DISPLAY_CURRENCY", "EUR")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Capture.DisplayCurrency != "eur" {
		t.Errorf("Expected eur, got %s", cfg.Capture.DisplayCurrency)
	}
}

func TestGetEnvAsDuration_Invalid(t *testing.T) {
	t.Setenv("CAPTURE_INTERVAL", "not-a-duration")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Capture.Interval != 0 {
		t.Errorf("Expected fallback to default, got %v", cfg.Capture.Interval)
	}
}
