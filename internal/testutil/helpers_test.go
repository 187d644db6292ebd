package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/npratt/shellrun/internal/runner"
)

func TestWriteFile_CreatesSubdirectories(t *testing.T) {
	dir := t.TempDir()

	path := WriteFile(t, dir, "sub/dir/test.txt", "content")

	if got := ReadFile(t, path); got != "content" {
		t.Errorf("content = %q, want %q", got, "content")
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()

	path := WriteFile(t, dir, "exists.txt", "content")

	if !FileExists(t, path) {
		t.Error("FileExists should return true for existing file")
	}
	if FileExists(t, filepath.Join(dir, "nonexistent.txt")) {
		t.Error("FileExists should return false for nonexistent file")
	}
}

func TestAssertHelpers(t *testing.T) {
	mock := NewMockRunner()
	mock.SetResponse("test", "ok")
	mock.SetResponse("other", "ok")

	ctx := context.Background()
	_, _ = mock.Run(ctx, runner.Request{CommandLine: "test"})
	_, _ = mock.Run(ctx, runner.Request{CommandLine: "test"})
	_, _ = mock.Run(ctx, runner.Request{CommandLine: "other"})

	AssertCalled(t, mock, "test")
	AssertNotCalled(t, mock, "xcodebuild")
	AssertCallCount(t, mock, "test", 2)
	AssertCallCount(t, mock, "other", 1)
	AssertCallCount(t, mock, "never", 0)
}

func TestSetupTestDir(t *testing.T) {
	dir := SetupTestDir(t)

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if wd != dir {
		t.Errorf("working dir = %q, want %q", wd, dir)
	}
	if !FileExists(t, filepath.Join(dir, ".shellrun")) {
		t.Error(".shellrun directory should exist")
	}
	if FileExists(t, filepath.Join(dir, ".shellrun", "config.yaml")) {
		t.Error("SetupTestDir should not write a config file")
	}
	if got := os.Getenv("XDG_CONFIG_HOME"); got != filepath.Join(dir, "xdg") {
		t.Errorf("XDG_CONFIG_HOME = %q, want it inside the test dir", got)
	}
}

func TestSetupTestDirWithConfig(t *testing.T) {
	dir := SetupTestDirWithConfig(t, SampleConfigYAML)

	content := ReadFile(t, filepath.Join(dir, ".shellrun", "config.yaml"))
	if content != SampleConfigYAML {
		t.Errorf("config content mismatch\ngot: %s\nwant: %s", content, SampleConfigYAML)
	}
	// relative to the new working dir
	if !FileExists(t, filepath.Join(".shellrun", "config.yaml")) {
		t.Error("config should be reachable from the working dir")
	}
}

func TestSetupMockArchiveAndExport(t *testing.T) {
	mock := NewMockRunner()
	targets := SampleTargets()
	SetupMockArchive(mock, SampleArchiveOutput, targets...)
	SetupMockExport(mock, SampleExportOutput, targets...)

	ctx := context.Background()
	for _, target := range targets {
		out, err := mock.Run(ctx, runner.Request{CommandLine: target.ArchiveCommand()})
		if err != nil || out != SampleArchiveOutput {
			t.Errorf("archive %s = %q, %v", target.Name, out, err)
		}
		out, err = mock.Run(ctx, runner.Request{CommandLine: target.ExportCommand()})
		if err != nil || out != SampleExportOutput {
			t.Errorf("export %s = %q, %v", target.Name, out, err)
		}
	}
}
