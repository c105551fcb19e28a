package main

import (
	"os"
	"testing"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run", "serve", "sign", "verify", "keygen", "bundle", "thread"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestResolveConfigPath_FlagTakesPrecedence(t *testing.T) {
	t.Setenv("RYEOS_CONFIG", "/env/ryeos.yaml")
	if got := resolveConfigPath("/flag/ryeos.yaml"); got != "/flag/ryeos.yaml" {
		t.Fatalf("expected flag value, got %q", got)
	}
}

func TestResolveConfigPath_FallsBackToEnv(t *testing.T) {
	t.Setenv("RYEOS_CONFIG", "/env/ryeos.yaml")
	if got := resolveConfigPath(""); got != "/env/ryeos.yaml" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestResolveConfigPath_DefaultsWhenUnset(t *testing.T) {
	os.Unsetenv("RYEOS_CONFIG")
	if got := resolveConfigPath(""); got != "ryeos.yaml" {
		t.Fatalf("expected default, got %q", got)
	}
}
