package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Mode != "scan" {
		t.Errorf("mode = %q, want scan", cfg.Mode)
	}
	if cfg.Polymarket.ChainID != 137 {
		t.Errorf("chain_id = %d, want 137", cfg.Polymarket.ChainID)
	}
	if cfg.Scanner.PriceType != "ASK" {
		t.Errorf("price_type = %q, want ASK", cfg.Scanner.PriceType)
	}
	if cfg.Scanner.Interval.Duration != time.Minute {
		t.Errorf("interval = %v, want 1m", cfg.Scanner.Interval.Duration)
	}
	if cfg.Risk.MaxTotalNotionalUSD <= 0 {
		t.Error("total notional cap must default positive")
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.LogLevel = "loud"
	cfg.Scanner.PriceType = "VWAP"
	cfg.Scanner.MinLiquidityScore = 1.5
	cfg.Risk.MaxTotalNotionalUSD = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	for _, want := range []string{"mode", "log_level", "price_type", "min_liquidity_score", "max_total_notional_usd"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidate_WalletRequiredForExecution(t *testing.T) {
	for _, mode := range []string{"execute", "full"} {
		cfg := Defaults()
		cfg.Mode = mode
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "wallet") {
			t.Errorf("mode %s without a key: err = %v, want wallet error", mode, err)
		}

		cfg.Wallet.PrivateKey = "deadbeef"
		if err := cfg.Validate(); err != nil {
			t.Errorf("mode %s with a key: %v", mode, err)
		}
	}

	// Scan mode never needs a key.
	cfg := Defaults()
	cfg.Mode = "scan"
	if err := cfg.Validate(); err != nil {
		t.Errorf("scan mode: %v", err)
	}
}

func TestValidate_EncryptedKeyNeedsPassword(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "execute"
	cfg.Wallet.EncryptedKeyPath = "/keys/trading.json"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "key_password") {
		t.Errorf("err = %v, want key_password error", err)
	}
}

func TestValidate_PostgresPool(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Enabled = true
	cfg.Postgres.PoolMinConns = 20
	cfg.Postgres.PoolMaxConns = 10
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "pool_min_conns") {
		t.Errorf("err = %v, want pool_min_conns error", err)
	}

	// A DSN replaces host/port/database checks.
	cfg = Defaults()
	cfg.Postgres.Enabled = true
	cfg.Postgres.Host = ""
	cfg.Postgres.Database = ""
	cfg.Postgres.DSN = "postgres://app:pw@db/polyarb"
	if err := cfg.Validate(); err != nil {
		t.Errorf("DSN-only postgres config: %v", err)
	}
}

func TestValidate_TelegramPairing(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "123:abc"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "telegram") {
		t.Errorf("err = %v, want telegram pairing error", err)
	}

	cfg.Notify.TelegramChatID = "-100200300"
	if err := cfg.Validate(); err != nil {
		t.Errorf("paired telegram config: %v", err)
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("duration = %v, want 90s", d.Duration)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("expected an error for a malformed duration")
	}

	text, err := duration{5 * time.Minute}.MarshalText()
	if err != nil || string(text) != "5m0s" {
		t.Errorf("MarshalText = %q, %v", text, err)
	}
}
