package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gsaaad/ag1-researchagent/config"
)

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := &ReadFileTool{fsAccess: &config.FilesystemAccess{}}
	ctx := context.Background()

	content, err := tool.Execute(ctx, map[string]interface{}{"path": path})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if content != "hello world" {
		t.Errorf("content = %q, want %q", content, "hello world")
	}

	if _, err := tool.Execute(ctx, map[string]interface{}{}); err == nil {
		t.Error("Execute without path should fail")
	}
	if _, err := tool.Execute(ctx, map[string]interface{}{"path": filepath.Join(dir, "missing.txt")}); err == nil {
		t.Error("Execute on missing file should fail")
	}
}

func TestReadFileToolHidden(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "secrets", "key.txt")
	if err := os.MkdirAll(filepath.Dir(secret), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(secret, []byte("s3cret"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := &ReadFileTool{fsAccess: &config.FilesystemAccess{
		Hidden: []string{filepath.Join(dir, "secrets", "**")},
	}}

	_, err := tool.Execute(context.Background(), map[string]interface{}{"path": secret})
	if err == nil {
		t.Fatal("expected hidden path to be denied")
	}
	if !strings.Contains(err.Error(), "hidden") {
		t.Errorf("error = %q, want it to mention hidden", err)
	}
}

func TestWriteFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out", "report.md")

	tool := &WriteFileTool{fsAccess: &config.FilesystemAccess{}}
	ctx := context.Background()

	result, err := tool.Execute(ctx, map[string]interface{}{
		"path":    path,
		"content": "# Findings\n",
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result, "report.md") {
		t.Errorf("result = %q, want it to mention the path", result)
	}

	// Parent directories are created on demand.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(data) != "# Findings\n" {
		t.Errorf("file content = %q", data)
	}

	if _, err := tool.Execute(ctx, map[string]interface{}{"path": path}); err == nil {
		t.Error("Execute without content should fail")
	}
}

func TestWriteFileToolReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "protected.txt")

	tool := &WriteFileTool{fsAccess: &config.FilesystemAccess{
		ReadOnly: []string{filepath.Join(dir, "*.txt")},
	}}

	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    path,
		"content": "nope",
	})
	if err == nil {
		t.Fatal("expected read-only path to be denied")
	}
	if !strings.Contains(err.Error(), "read-only") {
		t.Errorf("error = %q, want it to mention read-only", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("file should not have been written")
	}
}

func TestIsPathRestricted(t *testing.T) {
	restricted, err := isPathRestricted(".researchagent/sessions/a.json", []string{".researchagent", ".researchagent/**"})
	if err != nil {
		t.Fatal(err)
	}
	if !restricted {
		t.Error("app directory should be restricted")
	}

	restricted, err = isPathRestricted("notes/a.md", []string{".researchagent/**"})
	if err != nil {
		t.Fatal(err)
	}
	if restricted {
		t.Error("unrelated path should not be restricted")
	}

	if _, err := isPathRestricted("x", []string{"[bad"}); err == nil {
		t.Error("invalid pattern should return an error")
	}
}
