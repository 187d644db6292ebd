package testutil

import "github.com/npratt/shellrun/internal/buildtarget"

// SampleConfigYAML is a project config file exercising every section.
var SampleConfigYAML = `shell:
  path: /bin/bash
  login: false
  drain_timeout: 2s
  kill_grace: 1s
commands:
  - name: greet
    command: echo hello
    description: Print a greeting
  - name: where
    command: pwd
    dir: /tmp
targets:
  - name: app
    project_file: /src/App/App.xcodeproj
    scheme: App
  - name: helper
    project_file: /src/Helper/Helper.xcodeproj
    scheme: Helper
    configuration: Debug
fanout:
  fail_fast: true
metrics:
  addr: 127.0.0.1:9464
`

// SampleArchiveOutput is typical tail output of a successful archive.
var SampleArchiveOutput = "** ARCHIVE SUCCEEDED **\n"

// SampleExportOutput is typical tail output of a successful export.
var SampleExportOutput = "** EXPORT SUCCEEDED **\n"

// SampleArchiveFailure is the output of an archive that failed to compile.
var SampleArchiveFailure = "error: cannot find 'Foo' in scope\n** ARCHIVE FAILED **\n"

// SampleTargets returns build targets matching SampleConfigYAML.
func SampleTargets() []buildtarget.Target {
	return []buildtarget.Target{
		{Name: "app", ProjectFile: "/src/App/App.xcodeproj", Scheme: "App"},
		{Name: "helper", ProjectFile: "/src/Helper/Helper.xcodeproj", Scheme: "Helper", Configuration: "Debug"},
	}
}
