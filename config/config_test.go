package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "render.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
width: 640
height: 480
antialias: 2
samples: 4
bounce_limit: 3
threshold: 0.0001
buffers: [r, g, b, depth]
output: scene1
jobs: 8
workers:
  - addr: "127.0.0.1:19400"
  - addr: "127.0.0.1:19401"
`)
	cfg, err := YAMLSource{Path: path}.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Antialias != 2 || cfg.Samples != 4 || cfg.BounceLimit != 3 {
		t.Errorf("render params = %+v", cfg)
	}
	if len(cfg.Workers) != 2 || cfg.Workers[1].Addr != "127.0.0.1:19401" {
		t.Errorf("workers = %+v", cfg.Workers)
	}
	if len(cfg.BufferNames) != 4 || cfg.BufferNames[3] != "depth" {
		t.Errorf("buffers = %v", cfg.BufferNames)
	}
	if cfg.Output != "scene1" || cfg.Jobs != 8 {
		t.Errorf("output=%q jobs=%d", cfg.Output, cfg.Jobs)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
width: 64
height: 64
workers:
  - addr: "127.0.0.1:19400"
`)
	cfg, err := YAMLSource{Path: path}.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Antialias != 1 || cfg.Samples != 1 || cfg.BounceLimit != 4 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Jobs != 10 || cfg.Output != "render" {
		t.Errorf("defaults not applied: jobs=%d output=%q", cfg.Jobs, cfg.Output)
	}
	if len(cfg.BufferNames) != 3 {
		t.Errorf("default buffers = %v", cfg.BufferNames)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"zero size":  "width: 0\nheight: 480\nworkers: [{addr: a}]\n",
		"no workers": "width: 64\nheight: 64\n",
		"bad aa":     "width: 64\nheight: 64\nantialias: 0\nworkers: [{addr: a}]\n",
		"not yaml":   "width: [unclosed\n",
	} {
		path := writeConfig(t, body)
		if _, err := (YAMLSource{Path: path}).Load(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := (YAMLSource{Path: "/nonexistent/render.yaml"}).Load(); err == nil {
		t.Error("expected error for missing file")
	}
}
