package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/textmode-dev/joint/internal/errors"
	"github.com/textmode-dev/joint/pkg/joint"
	"github.com/textmode-dev/joint/pkg/textmode"
)

func writeArt(t *testing.T, dir, name string) string {
	t.Helper()
	doc, err := textmode.New(80, 25)
	if err != nil {
		t.Fatal(err)
	}
	b, err := textmode.EncodeBin(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func errCode(err error) string {
	var je *errors.Error
	if stderrors.As(err, &je) {
		return je.Code
	}
	return ""
}

// parsedServe returns a serve command with args parsed into opts.
func parsedServe(t *testing.T, args ...string) (*cobra.Command, serveOptions) {
	t.Helper()
	cmd := serveCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v) failed: %v", args, err)
	}
	f := cmd.Flags()
	var opts serveOptions
	opts.configPath, _ = f.GetString("config")
	opts.addr, _ = f.GetString("addr")
	opts.adminAddr, _ = f.GetString("admin-addr")
	opts.pass, _ = f.GetString("pass")
	opts.quiet, _ = f.GetBool("quiet")
	opts.persistInterval, _ = f.GetString("persist-interval")
	opts.advertise, _ = f.GetBool("advertise")
	opts.logLevel, _ = f.GetString("log-level")
	opts.logFormat, _ = f.GetString("log-format")
	return cmd, opts
}

func TestVersionShort(t *testing.T) {
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--short"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != version {
		t.Fatalf("version --short = %q, want %q", got, version)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("output = %q", out)
	}

	if _, err := newLogger(&buf, "loud", "text"); errCode(err) != "J400" {
		t.Fatalf("bad level error = %v, want J400", err)
	}
	if _, err := newLogger(&buf, "info", "xml"); errCode(err) != "J400" {
		t.Fatalf("bad format error = %v, want J400", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "joint.json")
	os.WriteFile(cfgPath, []byte(`{
  "address": ":7000",
  "adminAddress": "127.0.0.1:7001",
  "sessions": [{"file": "lobby.bin"}]
}`), 0o644)

	cmd, opts := parsedServe(t,
		"--config", cfgPath,
		"--addr", "127.0.0.1:9000",
		"--admin-addr", "off",
		"--pass", "secret",
		"--quiet",
		"--persist-interval", "30s",
		"--advertise",
	)
	cfg, err := loadConfig(cmd, opts, []string{"art/Blocks.bin"})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" || cfg.AdminAddress != "" || !cfg.Advertise {
		t.Fatalf("cfg = %+v", cfg)
	}
	if d, _ := cfg.Interval(); d != 30*time.Second {
		t.Fatalf("Interval = %v, want 30s", d)
	}

	starts := cfg.StartOptions()
	if len(starts) != 2 {
		t.Fatalf("StartOptions = %+v", starts)
	}
	if starts[0].File != filepath.Join(dir, "lobby.bin") || starts[0].Pass != "" {
		t.Fatalf("config session = %+v", starts[0])
	}
	wd, _ := os.Getwd()
	if starts[1].File != filepath.Join(wd, "art/Blocks.bin") || starts[1].Pass != "secret" || !starts[1].Quiet {
		t.Fatalf("argument session = %+v", starts[1])
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "joint.json")
	os.WriteFile(empty, []byte(`{}`), 0o644)

	cmd, opts := parsedServe(t, "--config", empty)
	if _, err := loadConfig(cmd, opts, nil); errCode(err) != "J400" {
		t.Fatalf("no sessions error = %v, want J400", err)
	}

	cmd, opts = parsedServe(t, "--config", filepath.Join(dir, "missing.json"))
	if _, err := loadConfig(cmd, opts, []string{"a.bin"}); errCode(err) != "J100" {
		t.Fatalf("missing config error = %v, want J100", err)
	}

	cmd, opts = parsedServe(t, "--config", empty, "--persist-interval", "often")
	if _, err := loadConfig(cmd, opts, []string{"a.bin"}); errCode(err) != "J104" {
		t.Fatalf("bad interval error = %v, want J104", err)
	}

	cmd, opts = parsedServe(t, "--config", empty)
	if _, err := loadConfig(cmd, opts, []string{"x/art.bin", "y/ART.bin"}); errCode(err) != "J201" {
		t.Fatalf("duplicate path error = %v, want J201", err)
	}
}

func TestStartSessionsMapsErrors(t *testing.T) {
	dir := t.TempDir()
	art := writeArt(t, dir, "art.bin")

	cfg := joint.DefaultRegistryConfig()
	cfg.Address = "127.0.0.1:0"
	reg := joint.NewRegistry(cfg)
	defer reg.CloseAll(context.Background())

	ctx := context.Background()
	if err := startSessions(ctx, reg, []joint.StartOptions{{File: art}}); err != nil {
		t.Fatalf("startSessions failed: %v", err)
	}
	err := startSessions(ctx, reg, []joint.StartOptions{{Path: "ART.BIN", File: art}})
	if errCode(err) != "J201" || !stderrors.Is(err, joint.ErrPathInUse) {
		t.Fatalf("conflict error = %v, want J201", err)
	}
	err = startSessions(ctx, reg, []joint.StartOptions{{File: filepath.Join(dir, "missing.bin")}})
	if errCode(err) != "J200" {
		t.Fatalf("missing file error = %v, want J200", err)
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeSavesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	art := writeArt(t, dir, "art.bin")
	cfgPath := filepath.Join(dir, "joint.json")
	os.WriteFile(cfgPath, []byte(`{}`), 0o644)

	cmd, opts := parsedServe(t,
		"--config", cfgPath,
		"--addr", "127.0.0.1:0",
		"--admin-addr", "off",
		"--log-level", "error",
	)
	var out syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cmd, opts, []string{art}) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "/art.bin") {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("session never started; output:\n%s", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runServe did not return after cancel")
	}

	doc, err := textmode.NewBinCodec().Read(context.Background(), art)
	if err != nil {
		t.Fatalf("reading saved document: %v", err)
	}
	if doc.Date == "" {
		t.Fatal("document was not saved on shutdown")
	}
}
