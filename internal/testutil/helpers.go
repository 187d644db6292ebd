package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/npratt/shellrun/internal/buildtarget"
)

// WriteFile writes content to a file in the given directory.
// It creates parent directories as needed and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ReadFile reads a file and returns its contents.
// It fails the test if the file cannot be read.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// FileExists checks if a file exists.
func FileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}

// AssertCalled verifies that a command line was run.
func AssertCalled(t *testing.T, mock *MockRunner, commandLine string) {
	t.Helper()
	calls := mock.GetCalls()
	for _, call := range calls {
		if call.CommandLine == commandLine {
			return
		}
	}
	t.Errorf("expected call to %q not found in %v", commandLine, calls)
}

// AssertNotCalled verifies that no command line starting with prefix was run.
func AssertNotCalled(t *testing.T, mock *MockRunner, prefix string) {
	t.Helper()
	for _, call := range mock.GetCalls() {
		if strings.HasPrefix(call.CommandLine, prefix) {
			t.Errorf("unexpected call to %q found", call.CommandLine)
			return
		}
	}
}

// AssertCallCount verifies the number of times a command line was run.
func AssertCallCount(t *testing.T, mock *MockRunner, commandLine string, expected int) {
	t.Helper()
	count := 0
	calls := mock.GetCalls()
	for _, call := range calls {
		if call.CommandLine == commandLine {
			count++
		}
	}
	if count != expected {
		t.Errorf("expected %d calls to %q, got %d (calls: %v)", expected, commandLine, count, calls)
	}
}

// SetupTestDir moves the test into a fresh project directory holding an
// empty .shellrun directory. XDG_CONFIG_HOME points inside it, so no global
// config is picked up. Returns the directory path.
func SetupTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	if err := os.MkdirAll(filepath.Join(dir, ".shellrun"), 0755); err != nil {
		t.Fatal(err)
	}

	t.Chdir(dir)
	return dir
}

// SetupTestDirWithConfig is SetupTestDir with configYAML written as the
// project config.
func SetupTestDirWithConfig(t *testing.T, configYAML string) string {
	t.Helper()
	dir := SetupTestDir(t)

	WriteFile(t, dir, ".shellrun/config.yaml", configYAML)

	return dir
}

// SetupMockArchive configures a MockRunner so every target archives
// successfully with the given output.
func SetupMockArchive(mock *MockRunner, output string, targets ...buildtarget.Target) {
	for _, target := range targets {
		mock.SetResponse(target.ArchiveCommand(), output)
	}
}

// SetupMockExport configures a MockRunner so every target exports
// successfully with the given output.
func SetupMockExport(mock *MockRunner, output string, targets ...buildtarget.Target) {
	for _, target := range targets {
		mock.SetResponse(target.ExportCommand(), output)
	}
}
