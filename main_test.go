package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vesaa/lansite/internal/config"
	"github.com/vesaa/lansite/internal/registry"
)

// run executes the CLI against root and returns stdout.
func run(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--root", root))
	err := cmd.Execute()
	return out.String(), err
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestCreateListShowDelete(t *testing.T) {
	root := newWorkspace(t)

	out, err := run(t, root, "create", "--name", "Home", "--link", "home", "--content", "<h1>Hi</h1>")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(out, "Site 'Home' created! Available at: http://") || !strings.Contains(out, ":8000/sites/home.html") {
		t.Errorf("create output = %q", out)
	}
	if data, _ := os.ReadFile(filepath.Join(root, "sites", "home.html")); string(data) != "<h1>Hi</h1>" {
		t.Errorf("site file = %q", data)
	}

	out, err = run(t, root, "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Home") || !strings.Contains(out, "home") {
		t.Errorf("list output = %q", out)
	}

	for _, target := range []string{"Home", "home"} {
		out, err = run(t, root, "show", target)
		if err != nil {
			t.Fatalf("show %s: %v", target, err)
		}
		if !strings.Contains(out, "Name: Home") || !strings.Contains(out, "<h1>Hi</h1>") {
			t.Errorf("show %s output = %q", target, out)
		}
	}

	if _, err := run(t, root, "create", "--name", "Other", "--link", "home", "--content", "x"); !errors.Is(err, registry.ErrConflict) {
		t.Errorf("duplicate link error = %v", err)
	}

	out, err = run(t, root, "delete", "Home")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Site 'Home' deleted!\n" {
		t.Errorf("delete output = %q", out)
	}
	if _, err := run(t, root, "delete", "Home"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}

	out, _ = run(t, root, "list")
	if !strings.HasPrefix(out, "No sites yet") {
		t.Errorf("empty list output = %q", out)
	}
}

func TestCreateFlagValidation(t *testing.T) {
	root := newWorkspace(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing content", []string{"create", "--name", "A", "--link", "a"}},
		{"content and file", []string{"create", "--name", "A", "--link", "a", "--content", "x", "--file", "f"}},
		{"missing link", []string{"create", "--name", "A", "--content", "x"}},
		{"bad link", []string{"create", "--name", "A", "--link", "a-b", "--content", "x"}},
		{"blank markdown", []string{"create", "--name", "A", "--link", "a", "--content", "  ", "--markdown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, root, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, err := os.Stat(filepath.Join(root, "sites.json")); !os.IsNotExist(err) {
		t.Errorf("sites.json created by failed commands: %v", err)
	}
}

func TestCreateFromMarkdownFile(t *testing.T) {
	root := newWorkspace(t)
	src := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(src, []byte("---\ntitle: Notes\n---\n# Groceries\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, root, "create", "--name", "Notes", "--link", "notes", "--file", src, "--markdown"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(root, "sites", "notes.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<title>Notes</title>") || !strings.Contains(string(data), "Groceries</h1>") {
		t.Errorf("rendered page = %q", data)
	}
}

func TestPreviewAndShare(t *testing.T) {
	root := newWorkspace(t)

	out, err := run(t, root, "preview", "--content", "<p>draft</p>")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "/temp_preview.html") {
		t.Errorf("preview output = %q", out)
	}
	if data, _ := os.ReadFile(filepath.Join(root, "temp_preview.html")); string(data) != "<p>draft</p>" {
		t.Errorf("preview file = %q", data)
	}

	if _, err := run(t, root, "create", "--name", "Home", "--link", "home", "--content", "x"); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, root, "share", "home")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "/sites/home.html") || !strings.Contains(out, "█") {
		t.Errorf("share output = %q", out)
	}

	png := filepath.Join(t.TempDir(), "home.png")
	if _, err := run(t, root, "share", "Home", "--png", png); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(png)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("share --png did not write a PNG")
	}

	if _, err := run(t, root, "share", "missing"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("share missing error = %v", err)
	}
}

func TestHistoryCommand(t *testing.T) {
	root := newWorkspace(t)
	if _, err := run(t, root, "create", "--name", "Home", "--link", "home", "--content", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, root, "delete", "Home"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, root, "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "created") || !strings.Contains(out, "deleted") {
		t.Errorf("history output = %q", out)
	}

	out, err = run(t, root, "history", "--name", "Nope")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("history for unknown name = %q", out)
	}
}

func TestVersion(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "lansite "+version+"\n" {
		t.Errorf("version output = %q", out.String())
	}
}

func TestInsecureDefaults(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		pass   string
		want   int
	}{
		{"both defaults", config.DefaultJWTSecret, config.DefaultAdminPass, 2},
		{"default password", "s3cret-key", config.DefaultAdminPass, 1},
		{"default secret", config.DefaultJWTSecret, "hunter2", 1},
		{"configured", "s3cret-key", "hunter2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := insecureDefaults(&config.Config{JWTSecret: tt.secret, AdminPass: tt.pass})
			if len(got) != tt.want {
				t.Errorf("insecureDefaults = %q, want %d warnings", got, tt.want)
			}
		})
	}
}

func TestCreateRejectsBadLinkBeforeOpening(t *testing.T) {
	root := newWorkspace(t)
	_, err := run(t, root, "create", "--name", "A", "--link", "my site", "--file", filepath.Join(root, "missing.html"))
	if !errors.Is(err, registry.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation ahead of reading the file", err)
	}
	if _, err := os.Stat(filepath.Join(root, ".lansite.db")); !os.IsNotExist(err) {
		t.Errorf("history opened for an invalid link: %v", err)
	}
}

func TestBanner(t *testing.T) {
	var out bytes.Buffer
	printBanner(&out, "SERVE")
	if !strings.Contains(out.String(), "lansite "+version+"  |  Mode: SERVE") {
		t.Errorf("banner = %q", out.String())
	}
	if strings.Contains(out.String(), asciiLogo+"\n") {
		t.Error("banner has a doubled blank line after the logo")
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
