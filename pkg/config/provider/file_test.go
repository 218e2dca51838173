package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileProviderLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := []byte("server:\n  base_url: http://localhost:2024\n")
	if err := os.WriteFile(configFile, content, 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	p, err := NewFileProvider(configFile)
	if err != nil {
		t.Fatalf("NewFileProvider() unexpected error: %v", err)
	}
	defer p.Close()

	data, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("Load() = %q, want %q", data, content)
	}
}

func TestFileProviderLoadMissing(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("NewFileProvider() unexpected error: %v", err)
	}
	defer p.Close()

	if _, err := p.Load(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFileProviderWatch(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("a: 1\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	p, err := NewFileProvider(configFile)
	if err != nil {
		t.Fatalf("NewFileProvider() unexpected error: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := p.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() unexpected error: %v", err)
	}

	// Give the watch goroutine a moment to start before writing
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("a: 2\n"), 0644); err != nil {
		t.Fatalf("failed to update config: %v", err)
	}

	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("expected change signal after file write")
	}
}

func TestFileProviderWatchIgnoresSiblings(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("a: 1\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	p, err := NewFileProvider(configFile)
	if err != nil {
		t.Fatalf("NewFileProvider() unexpected error: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := p.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() unexpected error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	sibling := filepath.Join(tmpDir, "other.yaml")
	if err := os.WriteFile(sibling, []byte("b: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write sibling file: %v", err)
	}

	select {
	case <-changes:
		t.Fatal("unexpected change signal for sibling file write")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestFileProviderWatchAfterClose(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("a: 1\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	p, err := NewFileProvider(configFile)
	if err != nil {
		t.Fatalf("NewFileProvider() unexpected error: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}

	if _, err := p.Watch(context.Background()); err == nil {
		t.Fatal("expected error watching a closed provider")
	}
}

func TestFileProviderCloseTwice(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("NewFileProvider() unexpected error: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("first Close() unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() unexpected error: %v", err)
	}
}
