// Package buildtarget describes Xcode projects and derives the xcodebuild
// command lines used to archive and export them.
package buildtarget

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// DefaultConfiguration is used when a Target has no configuration set.
const DefaultConfiguration = "Release"

// archiveDestination is the platform passed to xcodebuild archive.
const archiveDestination = "generic/platform=macOS"

// Target is an Xcode project and scheme to build.
type Target struct {
	Name          string
	ProjectFile   string
	Scheme        string
	Configuration string
}

// Validate reports whether the target has enough information to build.
func (t Target) Validate() error {
	var errs []error
	if t.ProjectFile == "" {
		errs = append(errs, errors.New("project file is required"))
	}
	if t.Scheme == "" {
		errs = append(errs, errors.New("scheme is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("target %q: %w", t.DisplayName(), errors.Join(errs...))
	}
	return nil
}

// DisplayName returns Name, or the scheme when no name was given.
func (t Target) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Scheme
}

// configuration returns the build configuration, falling back to Release.
func (t Target) configuration() string {
	if t.Configuration == "" {
		return DefaultConfiguration
	}
	return t.Configuration
}

// BuildDirectory is the "build" directory next to the project file.
func (t Target) BuildDirectory() string {
	return path.Join(path.Dir(t.ProjectFile), "build")
}

// ArchiveFile is where the archive for this target is written.
func (t Target) ArchiveFile() string {
	return path.Join(t.BuildDirectory(), t.Scheme+".xcarchive")
}

// ArchiveCommand returns the shell command line that archives the target.
func (t Target) ArchiveCommand() string {
	return strings.Join([]string{
		"xcodebuild",
		"-scheme", quote(t.Scheme),
		"-project", quotePath(t.ProjectFile),
		"-destination", quote(archiveDestination),
		"-configuration", quote(t.configuration()),
		"-archivePath", quotePath(t.ArchiveFile()),
		"archive",
	}, " ")
}

// ExportCommand returns the shell command line that exports the archive
// produced by ArchiveCommand into the build directory.
func (t Target) ExportCommand() string {
	return strings.Join([]string{
		"xcodebuild",
		"-exportArchive",
		"-archivePath", quotePath(t.ArchiveFile()),
		"-exportPath", quotePath(t.BuildDirectory()),
		"-exportOptionsPlist", quotePath(path.Join(t.ArchiveFile(), "Info.plist")),
	}, " ")
}

// quote wraps s in double quotes, escaping the characters the shell still
// interprets inside them.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// quotePath quotes p but leaves a leading ~/ outside the quotes so the shell
// still expands it.
func quotePath(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return "~/" + quote(rest)
	}
	return quote(p)
}
