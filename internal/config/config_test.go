package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hecoverseer/backend/internal/ledger"
	"github.com/hecoverseer/backend/internal/verifier"
)

type envTestConfig struct {
	Port int `env:"HEC_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("HEC_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickInterval != 1500*time.Millisecond {
		t.Errorf("tick = %s, want 1.5s", cfg.TickInterval)
	}
	if cfg.NewWorkerProbability != 0.3 || cfg.ReputationPenalty != 0.1 {
		t.Errorf("probability/penalty = %v/%v", cfg.NewWorkerProbability, cfg.ReputationPenalty)
	}
	if cfg.ApprovalThreshold != 0.8 || cfg.FraudProbability != 0.05 {
		t.Errorf("threshold/fraud = %v/%v", cfg.ApprovalThreshold, cfg.FraudProbability)
	}
	if cfg.LedgerLatency != 200*time.Millisecond {
		t.Errorf("ledger latency = %s", cfg.LedgerLatency)
	}
	if cfg.OperatorAuthEnabled() {
		t.Error("operator auth must be off without a password hash")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	body := "HEC_TICK_INTERVAL=250ms\nHEC_VERIFIER=evidence\nCORS_ALLOWED_ORIGINS=http://a.test,http://b.test\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv.Load sets process env; restore it after the test.
	for _, k := range []string{"HEC_TICK_INTERVAL", "HEC_VERIFIER", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("tick = %s", cfg.TickInterval)
	}
	if cfg.Verifier != VerifierEvidence {
		t.Errorf("verifier = %q", cfg.Verifier)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://b.test" {
		t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{TickInterval: time.Second, NewWorkerProbability: 0.3, ReputationPenalty: 0.1, Verifier: "random", Ledger: "sqlite"}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"uppercase backends", func(c *Config) { c.Verifier = "EVIDENCE"; c.Ledger = "Memory" }, true},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, false},
		{"probability above one", func(c *Config) { c.NewWorkerProbability = 1.5 }, false},
		{"negative penalty", func(c *Config) { c.ReputationPenalty = -0.1 }, false},
		{"unknown verifier", func(c *Config) { c.Verifier = "oracle" }, false},
		{"unknown ledger", func(c *Config) { c.Ledger = "postgres" }, false},
		{"operator without jwt secret", func(c *Config) { c.OperatorPasswordHash = "$2a$10$hash" }, false},
		{"operator with jwt secret", func(c *Config) { c.OperatorPasswordHash = "$2a$10$hash"; c.JWTSecret = "s3cret" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestBuildVerifier(t *testing.T) {
	c := Config{Verifier: VerifierEvidence, ApprovalThreshold: 0.8}
	p := c.BuildVerifier()
	if _, ok := p.Scorer.(verifier.EvidenceScorer); !ok {
		t.Fatalf("evidence verifier scorer = %T", p.Scorer)
	}

	c = Config{Verifier: VerifierRandom, VerifierSeed: 7, FraudProbability: 0.05, ApprovalThreshold: 0.8}
	p = c.BuildVerifier()
	if _, ok := p.Scorer.(*verifier.Random); !ok {
		t.Fatalf("random verifier scorer = %T", p.Scorer)
	}
	if p.Threshold != 0.8 {
		t.Errorf("threshold = %v", p.Threshold)
	}
}

func TestOpenLedger(t *testing.T) {
	c := Config{Ledger: LedgerMemory}
	l, closeFn, err := c.OpenLedger(context.Background())
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := l.(*ledger.Memory); !ok {
		t.Fatalf("ledger = %T", l)
	}
	_ = closeFn()

	c = Config{Ledger: LedgerSQLite, LedgerPath: filepath.Join(t.TempDir(), "ledger.db")}
	l, closeFn, err = c.OpenLedger(context.Background())
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer closeFn()
	if _, ok := l.(*ledger.SQLite); !ok {
		t.Fatalf("ledger = %T", l)
	}
}
