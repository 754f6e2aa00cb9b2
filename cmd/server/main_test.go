package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/wireplan-server/internal/config"
)

func TestApplyOverridesOnlyChangedFlags(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.Flags().Parse([]string{"--disconnect-policy=evict", "--session-ttl=2m"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Default()
	cfg.Addr = ":9999"
	o := config.Config{Addr: ":8080", DisconnectPolicy: "evict", SessionTTL: 2 * time.Minute}
	applyOverrides(cmd, &cfg, o)

	if cfg.Addr != ":9999" {
		t.Fatalf("unset flag overrode addr: %s", cfg.Addr)
	}
	if cfg.DisconnectPolicy != "evict" || cfg.SessionTTL != 2*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Fatalf("unexpected output %q", out.String())
	}
}
