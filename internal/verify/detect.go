package verify

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/johnazariah/aura-sub015/internal/errors"
)

// defaultExcludes are dependency caches, build output, and VCS metadata
// never treated as project roots.
func defaultExcludes() []string {
	return []string{
		"**/.git/**",
		"**/node_modules/**",
		"**/vendor/**",
		"**/target/**",
		"**/bin/**",
		"**/obj/**",
		"**/dist/**",
		"**/build/**",
		"**/.venv/**",
		"**/venv/**",
		"**/__pycache__/**",
		"**/.worktrees/**",
	}
}

// Detect walks root and returns the detected projects, sorted by path.
// The recognition rules are a closed set; unrecognized directories yield
// no project.
func (e *Engine) Detect(root string) ([]Project, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, errors.Wrap(errors.KindVerificationUnavailable, err,
			"verification root %s", root)
	}

	var solutionDirs []string
	var projectDirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			// Match both the directory itself and its subtree.
			for _, pattern := range e.exclude {
				if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
					return filepath.SkipDir
				}
				if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); ok {
					return filepath.SkipDir
				}
			}
			return nil
		}
		for _, pattern := range e.exclude {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return nil
			}
		}
		dir := filepath.Dir(path)
		switch {
		case strings.HasSuffix(path, ".sln"):
			solutionDirs = append(solutionDirs, dir)
		case isMarkerFile(filepath.Base(path)):
			projectDirs = append(projectDirs, dir)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindVerificationUnavailable, err,
			"walk %s", root)
	}

	hasSolution := len(solutionDirs) > 0
	seen := make(map[string]bool)
	var projects []Project

	for _, dir := range solutionDirs {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		projects = append(projects, e.dotnetSolutionProject(dir))
	}
	for _, dir := range projectDirs {
		if seen[dir] {
			continue
		}
		p, ok := e.detectDir(dir, hasSolution)
		if !ok {
			continue
		}
		seen[dir] = true
		projects = append(projects, p)
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].Path < projects[j].Path })
	return projects, nil
}

func isMarkerFile(name string) bool {
	switch name {
	case "package.json", "Cargo.toml", "go.mod", "pyproject.toml",
		"ruff.toml", ".ruff.toml":
		return true
	}
	return strings.HasSuffix(name, ".csproj") ||
		strings.HasSuffix(name, ".fsproj") ||
		strings.HasSuffix(name, ".vbproj")
}

// detectDir applies the recognition rules to a single directory.
func (e *Engine) detectDir(dir string, hasSolution bool) (Project, bool) {
	name := filepath.Base(dir)

	if hasProjectFile(dir) {
		if hasSolution {
			// Covered by a solution build.
			return Project{}, false
		}
		return Project{
			Type: ProjectDotnet,
			Name: name,
			Path: dir,
			Steps: []Step{
				e.step(StepBuild, dir, true, "dotnet", "build"),
			},
		}, true
	}

	if exists(dir, "package.json") {
		return e.npmProject(dir, name)
	}

	if exists(dir, "Cargo.toml") {
		return Project{
			Type: ProjectCargo,
			Name: name,
			Path: dir,
			Steps: []Step{
				e.step(StepBuild, dir, true, "cargo", "build"),
				e.step(StepFormat, dir, false, "cargo", "fmt", "--check"),
				e.step(StepLint, dir, false, "cargo", "clippy", "--no-deps"),
			},
		}, true
	}

	if exists(dir, "go.mod") {
		return Project{
			Type: ProjectGo,
			Name: name,
			Path: dir,
			Steps: []Step{
				e.step(StepBuild, dir, true, "go", "build", "./..."),
				e.step(StepFormat, dir, false, "gofmt", "-l", "."),
				e.step(StepVet, dir, false, "go", "vet", "./..."),
			},
		}, true
	}

	if hasRuffConfig(dir) {
		return Project{
			Type: ProjectPython,
			Name: name,
			Path: dir,
			Steps: []Step{
				e.step(StepLint, dir, false, "ruff", "check", "."),
				e.step(StepFormat, dir, false, "ruff", "format", "--check", "."),
			},
		}, true
	}

	return Project{}, false
}

func (e *Engine) dotnetSolutionProject(dir string) Project {
	return Project{
		Type: ProjectDotnet,
		Name: filepath.Base(dir),
		Path: dir,
		Steps: []Step{
			e.step(StepBuild, dir, true, "dotnet", "build"),
			e.step(StepFormat, dir, false, "dotnet", "format", "--verify-no-changes"),
		},
	}
}

func (e *Engine) npmProject(dir, name string) (Project, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return Project{}, false
	}
	var manifest struct {
		Name    string            `json:"name"`
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Project{}, false
	}
	if _, ok := manifest.Scripts["build"]; !ok {
		return Project{}, false
	}
	if manifest.Name != "" {
		name = manifest.Name
	}

	tool := "npm"
	if exists(dir, "yarn.lock") {
		tool = "yarn"
	}

	steps := []Step{
		e.step(StepBuild, dir, true, tool, "run", "build"),
	}
	if _, ok := manifest.Scripts["lint"]; ok {
		steps = append(steps, e.step(StepLint, dir, false, tool, "run", "lint"))
	}
	return Project{Type: ProjectNPM, Name: name, Path: dir, Steps: steps}, true
}

func (e *Engine) step(t StepType, dir string, required bool, command string, args ...string) Step {
	return Step{
		Type:     t,
		Command:  command,
		Args:     args,
		WorkDir:  dir,
		Required: required,
		Timeout:  e.stepTimeout,
	}
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func hasProjectFile(dir string) bool {
	for _, glob := range []string{"*.csproj", "*.fsproj", "*.vbproj"} {
		matches, _ := filepath.Glob(filepath.Join(dir, glob))
		if len(matches) > 0 {
			return true
		}
	}
	return false
}

// hasRuffConfig reports whether the directory carries a ruff configuration,
// either standalone or inside pyproject.toml.
func hasRuffConfig(dir string) bool {
	if exists(dir, "ruff.toml") || exists(dir, ".ruff.toml") {
		return true
	}
	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		return false
	}
	return strings.Contains(string(data), "[tool.ruff")
}
