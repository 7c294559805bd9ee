package verify

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectGoModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/x\n")

	e := NewEngine()
	projects, err := e.Detect(dir)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	p := projects[0]
	assert.Equal(t, ProjectGo, p.Type)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, StepBuild, p.Steps[0].Type)
	assert.True(t, p.Steps[0].Required)
	assert.Equal(t, "go", p.Steps[0].Command)
	assert.False(t, p.Steps[1].Required)
	assert.Equal(t, StepVet, p.Steps[2].Type)
}

func TestDetectNpmRequiresBuildScript(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name":"app","scripts":{"test":"jest"}}`)

	e := NewEngine()
	projects, err := e.Detect(dir)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestDetectNpmWithYarnAndLint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json",
		`{"name":"web","scripts":{"build":"tsc","lint":"eslint ."}}`)
	writeFile(t, dir, "yarn.lock", "")

	e := NewEngine()
	projects, err := e.Detect(dir)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	p := projects[0]
	assert.Equal(t, ProjectNPM, p.Type)
	assert.Equal(t, "web", p.Name)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "yarn", p.Steps[0].Command)
	assert.Equal(t, []string{"run", "build"}, p.Steps[0].Args)
	assert.Equal(t, StepLint, p.Steps[1].Type)
	assert.False(t, p.Steps[1].Required)
}

func TestDetectCargo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Cargo.toml", "[package]\nname = \"x\"\n")

	e := NewEngine()
	projects, err := e.Detect(dir)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, ProjectCargo, projects[0].Type)
	require.Len(t, projects[0].Steps, 3)
	assert.True(t, projects[0].Steps[0].Required)
}

func TestDetectDotnetSolutionCoversProjects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "All.sln", "")
	writeFile(t, dir, filepath.Join("src", "App", "App.csproj"), "<Project/>")

	e := NewEngine()
	projects, err := e.Detect(dir)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, ProjectDotnet, projects[0].Type)
	require.Len(t, projects[0].Steps, 2)
	assert.Equal(t, StepFormat, projects[0].Steps[1].Type)
}

func TestDetectDotnetProjectWithoutSolution(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("App", "App.csproj"), "<Project/>")

	e := NewEngine()
	projects, err := e.Detect(dir)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Len(t, projects[0].Steps, 1)
	assert.Equal(t, StepBuild, projects[0].Steps[0].Type)
}

func TestDetectPythonNeedsRuffConfig(t *testing.T) {
	withRuff := t.TempDir()
	writeFile(t, withRuff, "pyproject.toml", "[tool.ruff]\nline-length = 100\n")

	withoutRuff := t.TempDir()
	writeFile(t, withoutRuff, "pyproject.toml", "[project]\nname = \"x\"\n")

	e := NewEngine()

	projects, err := e.Detect(withRuff)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, ProjectPython, projects[0].Type)
	for _, s := range projects[0].Steps {
		assert.False(t, s.Required)
	}

	projects, err = e.Detect(withoutRuff)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestDetectSkipsExcludedDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("node_modules", "dep", "package.json"),
		`{"scripts":{"build":"x"}}`)
	writeFile(t, dir, filepath.Join(".git", "go.mod"), "module x\n")

	e := NewEngine()
	projects, err := e.Detect(dir)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestDetectCustomExclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("legacy", "go.mod"), "module legacy\n")
	writeFile(t, dir, filepath.Join("current", "go.mod"), "module current\n")

	e := NewEngine(WithExcludes("**/legacy/**"))
	projects, err := e.Detect(dir)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "current", projects[0].Name)
}

func TestRunEmptyRepoSucceeds(t *testing.T) {
	e := NewEngine()
	result, err := e.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "No verification steps detected", result.Summary())
}

func TestRunMissingRootIsUnavailable(t *testing.T) {
	e := NewEngine()
	_, err := e.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestRunProjectsRecordsResults(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	dir := t.TempDir()
	projects := []Project{{
		Type: ProjectGo,
		Name: "fake",
		Path: dir,
		Steps: []Step{
			{Type: StepBuild, Command: "sh", Args: []string{"-c", "echo ok"},
				WorkDir: dir, Required: true, Timeout: time.Minute},
			{Type: StepLint, Command: "sh", Args: []string{"-c", "echo bad >&2; exit 3"},
				WorkDir: dir, Required: false, Timeout: time.Minute},
		},
	}}

	e := NewEngine()
	result, err := e.RunProjects(context.Background(), projects)
	require.NoError(t, err)
	require.Len(t, result.StepResults, 2)

	assert.True(t, result.Success)
	assert.Equal(t, "1/2 steps passed", result.Summary())

	build := result.StepResults[0]
	assert.True(t, build.Success)
	assert.Contains(t, build.Stdout, "ok")

	lint := result.StepResults[1]
	assert.False(t, lint.Success)
	assert.Equal(t, 3, lint.ExitCode)
	assert.Contains(t, lint.Stderr, "bad")
}

func TestRunProjectsRequiredFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	dir := t.TempDir()
	projects := []Project{{
		Type: ProjectGo, Name: "fake", Path: dir,
		Steps: []Step{
			{Type: StepBuild, Command: "sh", Args: []string{"-c", "exit 1"},
				WorkDir: dir, Required: true, Timeout: time.Minute},
		},
	}}

	e := NewEngine()
	result, err := e.RunProjects(context.Background(), projects)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "1 required failures", result.Summary())
}

func TestRunStepTimeoutKillsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	dir := t.TempDir()
	step := Step{
		Type: StepBuild, Command: "sh", Args: []string{"-c", "sleep 30"},
		WorkDir: dir, Required: true, Timeout: 100 * time.Millisecond,
	}

	e := NewEngine()
	start := time.Now()
	sr := e.runStep(context.Background(), step)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, sr.TimedOut)
	assert.False(t, sr.Cancelled)
	assert.False(t, sr.Success)
}

func TestRunStepCancellationIsNotATimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	dir := t.TempDir()
	step := Step{
		Type: StepBuild, Command: "sh", Args: []string{"-c", "sleep 30"},
		WorkDir: dir, Required: true, Timeout: time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	e := NewEngine()
	sr := e.runStep(ctx, step)
	assert.True(t, sr.Cancelled)
	assert.False(t, sr.TimedOut)
	assert.False(t, sr.Success)
	assert.Equal(t, -1, sr.ExitCode)
}
