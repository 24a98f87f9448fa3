package main

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestParseArgs_Flags(t *testing.T) {
	o, err := parseArgs([]string{"--verbose", "--config", "x.yaml", "--no-tui"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !o.verbose || o.configPath != "x.yaml" || !o.noTUI {
		t.Errorf("unexpected options: %+v", o)
	}
	if o.server != nil {
		t.Error("no subcommand should leave server nil")
	}
}

func TestParseArgs_SSE(t *testing.T) {
	o, err := parseArgs([]string{"sse", "remote", "http://localhost:8080/sse"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if o.server == nil || o.server.Name != "remote" || o.server.SSE == nil {
		t.Fatalf("unexpected server: %+v", o.server)
	}
	if o.server.SSE.URL != "http://localhost:8080/sse" {
		t.Errorf("url = %q", o.server.SSE.URL)
	}
}

func TestParseArgs_SSEArity(t *testing.T) {
	if _, err := parseArgs([]string{"sse", "remote"}, &bytes.Buffer{}); err == nil {
		t.Error("expected usage error")
	}
}

func TestParseArgs_Command(t *testing.T) {
	args := []string{"-v", "command", "fs", "npx", "-y", "server-fs", "/tmp", "--env", "A:1", "--env=B: two "}
	o, err := parseArgs(args, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !o.verbose {
		t.Error("flag before subcommand should be parsed")
	}
	cmd := o.server.Command
	if cmd == nil {
		t.Fatal("expected command config")
	}
	if cmd.Command != "npx" {
		t.Errorf("command = %q", cmd.Command)
	}
	if want := []string{"-y", "server-fs", "/tmp"}; !reflect.DeepEqual(cmd.Args, want) {
		t.Errorf("args = %v, want %v", cmd.Args, want)
	}
	if want := map[string]string{"A": "1", "B": "two"}; !reflect.DeepEqual(cmd.Env, want) {
		t.Errorf("env = %v, want %v", cmd.Env, want)
	}
}

func TestParseArgs_CommandString(t *testing.T) {
	o, err := parseArgs([]string{"command", "fs", "npx -y 'server fs'"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	cmd := o.server.Command
	if cmd.Command != "npx" || !reflect.DeepEqual(cmd.Args, []string{"-y", "server fs"}) {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

func TestParseArgs_BadEnv(t *testing.T) {
	_, err := parseArgs([]string{"command", "fs", "srv", "--env", "NOCOLON"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error")
	}
	want := "Invalid key-value pair: 'NOCOLON'. Expected format: 'KEY:VALUE'"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestParseArgs_EnvMissingValue(t *testing.T) {
	if _, err := parseArgs([]string{"command", "fs", "srv", "--env"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for --env without value")
	}
}

func TestParseArgs_DoubleDash(t *testing.T) {
	o, err := parseArgs([]string{"command", "fs", "srv", "--", "--env", "X:1"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if want := []string{"--env", "X:1"}; !reflect.DeepEqual(o.server.Command.Args, want) {
		t.Errorf("args = %v, want %v", o.server.Command.Args, want)
	}
	if o.server.Command.Env != nil {
		t.Error("env after -- should not be parsed")
	}
}

func TestParseArgs_UnknownSubcommand(t *testing.T) {
	_, err := parseArgs([]string{"http", "x"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown subcommand") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseArgs_Help(t *testing.T) {
	var buf bytes.Buffer
	_, err := parseArgs([]string{"--help"}, &buf)
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
	if !strings.Contains(buf.String(), "MCP_CONFIG") {
		t.Error("usage should document environment variables")
	}
}

func TestEnvTruthy(t *testing.T) {
	tests := map[string]bool{
		"":      false,
		"0":     false,
		"false": false,
		"FALSE": false,
		"1":     true,
		"yes":   true,
	}
	for in, want := range tests {
		if got := envTruthy(in); got != want {
			t.Errorf("envTruthy(%q) = %v, want %v", in, got, want)
		}
	}
}
