// Package generate recreates missing required files. It only ever creates
// files that do not exist; it never rewrites content.
package generate

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/fsutil"
	"github.com/docseal/docseal/pkg/pathutil"
	"github.com/docseal/docseal/pkg/template"
)

//go:embed templates/*.md
var builtinFS embed.FS

// Generator creates the required file rel from the named template.
type Generator interface {
	Generate(ctx context.Context, rel, templateName string) error
}

// New returns the generator configured for p: the external command when
// one is set, the templates otherwise.
func New(p *repo.Project) Generator {
	if len(p.Config.Generator.Command) > 0 {
		return &ExecGenerator{project: p, Command: p.Config.Generator.Command}
	}
	return NewTemplateGenerator(p)
}

// Builtins lists the names of the built-in templates.
func Builtins() []string {
	entries, _ := fs.ReadDir(builtinFS, "templates")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names
}

// TemplateGenerator renders templates from templates_dir, falling back to
// the built-in ones.
type TemplateGenerator struct {
	project      *repo.Project
	templatesDir string
}

// NewTemplateGenerator creates a TemplateGenerator for p.
func NewTemplateGenerator(p *repo.Project) *TemplateGenerator {
	dir := p.Config.Generator.TemplatesDir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = p.Abs(dir)
	}
	return &TemplateGenerator{project: p, templatesDir: dir}
}

// Generate renders templateName into rel.
func (g *TemplateGenerator) Generate(ctx context.Context, rel, templateName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := target(g.project, rel)
	if err != nil {
		return err
	}
	text, _, err := g.Lookup(templateName)
	if err != nil {
		return err
	}
	content := template.ExpandAt(text, g.project.Clock.Now(), map[string]string{
		"project": g.project.Name(),
		"path":    rel,
	})
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return errclass.ErrIOFailure.WithMessagef("create directory for %s: %v", rel, err)
	}
	if err := fsutil.AtomicWrite(abs, []byte(content), 0644); err != nil {
		return errclass.ErrIOFailure.WithMessagef("write %s: %v", rel, err)
	}
	return nil
}

// Template sources reported by Lookup.
const (
	SourceTemplatesDir = "templates_dir"
	SourceBuiltin      = "built-in"
)

// Lookup returns the unexpanded text of a template and where it came from.
func (g *TemplateGenerator) Lookup(name string) (string, string, error) {
	if strings.ContainsAny(name, `/\`) || name == "" || name == "." || name == ".." {
		return "", "", errclass.ErrNameInvalid.WithMessagef("invalid template name %q", name)
	}
	if g.templatesDir != "" {
		data, err := os.ReadFile(filepath.Join(g.templatesDir, name+".md"))
		if err == nil {
			return string(data), SourceTemplatesDir, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", "", errclass.ErrIOFailure.WithMessagef("read template %s: %v", name, err)
		}
	}
	data, err := builtinFS.ReadFile("templates/" + name + ".md")
	if err != nil {
		return "", "", errclass.ErrNotFound.WithMessagef("template %q (built-ins: %s)", name, strings.Join(Builtins(), ", "))
	}
	return string(data), SourceBuiltin, nil
}

// ExecGenerator runs an external command to create the file. The command
// receives the relative path and template name as its final arguments,
// runs in the project root, and must leave the file in place.
type ExecGenerator struct {
	project *repo.Project
	Command []string
}

// Generate runs the command for rel.
func (g *ExecGenerator) Generate(ctx context.Context, rel, templateName string) error {
	abs, err := target(g.project, rel)
	if err != nil {
		return err
	}
	args := append(append([]string{}, g.Command[1:]...), rel, templateName)
	cmd := exec.CommandContext(ctx, g.Command[0], args...)
	cmd.Dir = g.project.Root
	cmd.Env = append(os.Environ(),
		"DOCSEAL_ROOT="+g.project.Root,
		"DOCSEAL_PATH="+rel,
		"DOCSEAL_TEMPLATE="+templateName,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errclass.ErrIOFailure.WithMessagef("generator for %s failed: %v: %s", rel, err, strings.TrimSpace(stderr.String()))
	}
	if _, err := os.Stat(abs); err != nil {
		return errclass.ErrIOFailure.WithMessagef("generator did not create %s", rel)
	}
	return nil
}

// target resolves rel and refuses to touch an existing file.
func target(p *repo.Project, rel string) (string, error) {
	abs, err := pathutil.Resolve(p.Root, rel)
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(abs); err == nil {
		return "", errclass.ErrStateInvalid.WithMessagef("%s already exists; generators never overwrite", rel)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", errclass.ErrIOFailure.WithMessagef("stat %s: %v", rel, err)
	}
	return abs, nil
}

// String describes g for logs.
func (g *ExecGenerator) String() string {
	return fmt.Sprintf("exec(%s)", strings.Join(g.Command, " "))
}
