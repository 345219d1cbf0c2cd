// Package schedule arranges for locked paths to be removed once, at the next
// logon, by a generated PowerShell script registered under RunOnce.
package schedule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/zhengda-lu/zerotrace/internal/platform"
)

const (
	// RunOnceKey is the machine-wide run-once branch, processed at the next
	// logon and then cleared by the OS.
	RunOnceKey = `SOFTWARE\Microsoft\Windows\CurrentVersion\RunOnce`

	scriptPrefix = "ZeroTrace_RunOnceDelete_"
	valuePrefix  = "ZeroTraceDelete_"

	scriptTpl = `$ErrorActionPreference='SilentlyContinue'
function Rm($p){ if(Test-Path -LiteralPath $p){ Remove-Item -LiteralPath $p -Recurse -Force } }
{{range .Paths}}Rm '{{quote .}}'
{{end}}Remove-Item -LiteralPath '{{quote .Script}}' -Force
`
)

var tmpl = template.Must(template.New("runonce").Funcs(template.FuncMap{
	"quote": psQuote,
}).Parse(scriptTpl))

// scriptData holds the template fields for script generation.
type scriptData struct {
	Paths  []string
	Script string
}

// psQuote escapes s for a single-quoted PowerShell string literal.
func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// ScriptName returns the file name used for a script created at t.
func ScriptName(t time.Time) string {
	return scriptPrefix + t.Format("20060102_150405") + ".ps1"
}

// GenerateScript renders the removal script for paths. Duplicate paths
// (compared case-insensitively) are written once. scriptPath is the file the
// script will live in; its last line removes it.
func GenerateScript(paths []string, scriptPath string) (string, error) {
	data := scriptData{Paths: Unique(paths), Script: scriptPath}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render script: %w", err)
	}
	return buf.String(), nil
}

// Unique drops empty and repeated paths, keeping the first spelling.
func Unique(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

// Command returns the RunOnce command line that runs scriptPath.
func Command(scriptPath string) string {
	return fmt.Sprintf(`powershell.exe -NoProfile -ExecutionPolicy Bypass -File "%s"`, scriptPath)
}

// Deferrer writes deletion scripts and registers them.
type Deferrer struct {
	reg platform.Registry
	dir string
	now func() time.Time
	id  func() string
}

// New returns a Deferrer writing scripts into dir (normally the temp folder).
func New(reg platform.Registry, dir string) *Deferrer {
	return &Deferrer{
		reg: reg,
		dir: dir,
		now: time.Now,
		id:  func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Registration describes a scheduled deletion.
type Registration struct {
	Script    string
	ValueName string
	Command   string
	Paths     []string
}

// Schedule writes the script and registers it. An empty path list does
// nothing and returns a nil Registration. When registration fails the
// script is removed again.
func (d *Deferrer) Schedule(paths []string) (*Registration, error) {
	paths = Unique(paths)
	if len(paths) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create script directory: %w", err)
	}
	script := filepath.Join(d.dir, ScriptName(d.now()))
	body, err := GenerateScript(paths, script)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(script, []byte(body), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write script: %w", err)
	}

	reg := &Registration{
		Script:    script,
		ValueName: valuePrefix + d.id(),
		Command:   Command(script),
		Paths:     paths,
	}
	if err := d.reg.SetStringValue(platform.LocalMachine, RunOnceKey, reg.ValueName, reg.Command); err != nil {
		_ = os.Remove(script)
		return nil, fmt.Errorf("failed to register run-once entry: %w", err)
	}
	return reg, nil
}
