package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "pvm.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[run]
image = "blink.pvm"
tick-us = 250
binding = 3

[trace]
enabled = true
output = "stdout"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.Run.Image != "blink.pvm" || c.Run.TickUS != 250 || c.Run.Binding != 3 {
		t.Errorf("run = %+v", c.Run)
	}
	if !c.Trace.Enabled || c.Trace.Output != "stdout" {
		t.Errorf("trace = %+v", c.Trace)
	}
	if got := c.ImagePath(); got != filepath.Join(c.Dir, "blink.pvm") {
		t.Errorf("ImagePath = %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `[run]`+"\n"+`image = "a.pvm"`+"\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.Run.TickUS != DefaultTickUS {
		t.Errorf("TickUS = %d, want default %d", c.Run.TickUS, DefaultTickUS)
	}
	if c.Trace.Output != "stderr" {
		t.Errorf("Output = %q, want stderr", c.Trace.Output)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load of empty dir succeeded")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `[run]`+"\n"+`image = "deep.pvm"`+"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Run.Image != "deep.pvm" {
		t.Fatalf("FindAndLoad = %+v", c)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("found unexpected config: %+v", c)
	}
}
