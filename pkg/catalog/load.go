package catalog

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/zbxsync/pkg/engine"
)

// BuiltinPrefix marks a script_file served from the embedded scripts.
const BuiltinPrefix = "builtin:"

// Loader reads catalog files. Every file is rendered as a text/template with
// Data before decoding.
type Loader struct {
	// Data is the template data, usually the process settings.
	Data interface{}

	cue *cue.Context
}

// NewLoader creates a loader rendering templates with data.
func NewLoader(data interface{}) *Loader {
	return &Loader{Data: data, cue: cuecontext.New()}
}

// Load reads a catalog file, or every .yaml, .yml and .cue file below a
// directory in lexical order, merged. The result is validated.
func (l *Loader) Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, engine.NewValidationError("cannot read catalog", err).WithResource(path)
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = catalogFiles(path); err != nil {
			return nil, engine.NewValidationError("cannot list catalog files", err).WithResource(path)
		}
		if len(files) == 0 {
			return nil, engine.NewValidationError("no catalog files found", nil).WithResource(path)
		}
	}

	merged := &Catalog{}
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, engine.NewValidationError("cannot read catalog", err).WithResource(f)
		}
		c, err := l.parse(f, content)
		if err != nil {
			return nil, err
		}
		if err := resolveScripts(c, os.DirFS(filepath.Dir(f))); err != nil {
			return nil, err
		}
		if err := merged.merge(c); err != nil {
			return nil, engine.NewValidationError(err.Error(), nil).WithResource(f)
		}
	}

	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Parse renders and decodes one document. The file name selects the format.
// Scripts are not resolved and the result is not validated.
func (l *Loader) Parse(name string, content []byte) (*Catalog, error) {
	return l.parse(name, content)
}

// Default returns the embedded catalog, validated.
func (l *Loader) Default() (*Catalog, error) {
	content, err := fs.ReadFile(embedded, defaultCatalog)
	if err != nil {
		return nil, engine.NewValidationError("cannot read embedded catalog", err)
	}
	c, err := l.parse(defaultCatalog, content)
	if err != nil {
		return nil, err
	}
	if err := resolveScripts(c, nil); err != nil {
		return nil, err
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (l *Loader) parse(name string, content []byte) (*Catalog, error) {
	rendered, err := l.render(name, content)
	if err != nil {
		return nil, err
	}

	var c Catalog
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cue":
		err = l.decodeCUE(name, rendered, &c)
	case ".yaml", ".yml":
		err = decodeYAML(rendered, &c)
	default:
		err = fmt.Errorf("unsupported catalog format %q", filepath.Ext(name))
	}
	if err != nil {
		return nil, engine.NewValidationError("cannot decode catalog", err).WithResource(name)
	}
	return &c, nil
}

func (l *Loader) render(name string, content []byte) ([]byte, error) {
	tmpl, err := template.New(filepath.Base(name)).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(string(content))
	if err != nil {
		return nil, engine.NewValidationError("cannot parse catalog template", err).WithResource(name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, l.Data); err != nil {
		return nil, engine.NewValidationError("cannot render catalog template", err).WithResource(name)
	}
	return buf.Bytes(), nil
}

func decodeYAML(content []byte, c *Catalog) error {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (l *Loader) decodeCUE(name string, content []byte, c *Catalog) error {
	if l.cue == nil {
		l.cue = cuecontext.New()
	}
	val := l.cue.CompileBytes(content, cue.Filename(name))
	if err := val.Err(); err != nil {
		return cueProblems(err)
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return cueProblems(err)
	}
	return val.Decode(c)
}

// cueProblems flattens CUE errors into one problem per position.
func cueProblems(err error) Problems {
	var out Problems
	for _, e := range cueerrors.Errors(err) {
		msg := cueerrors.Details(e, nil)
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			msg = fmt.Sprintf("%s:%d:%d: %s", pos[0].Filename(), pos[0].Line(), pos[0].Column(), strings.TrimSpace(msg))
		}
		out = append(out, strings.TrimSpace(msg))
	}
	return out
}

func catalogFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".cue":
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// resolveScripts loads media type scripts named by script_file, from the
// embedded scripts for the builtin: prefix and from dir otherwise.
func resolveScripts(c *Catalog, dir fs.FS) error {
	if c.Notifications == nil {
		return nil
	}
	for i := range c.Notifications.MediaTypes {
		mt := &c.Notifications.MediaTypes[i]
		if mt.ScriptFile == "" {
			continue
		}
		if mt.Script != "" {
			return engine.NewValidationError(
				fmt.Sprintf("media type %q sets both script and script_file", mt.Name), nil)
		}

		var (
			content []byte
			err     error
		)
		if name, ok := strings.CutPrefix(mt.ScriptFile, BuiltinPrefix); ok {
			content, err = fs.ReadFile(embedded, "scripts/"+name)
		} else if dir != nil {
			content, err = fs.ReadFile(dir, filepath.ToSlash(mt.ScriptFile))
		} else {
			err = fs.ErrNotExist
		}
		if err != nil {
			return engine.NewValidationError(fmt.Sprintf("media type %q: cannot read script", mt.Name), err).
				WithResource(mt.ScriptFile)
		}
		mt.Script = strings.TrimSpace(string(content))
		mt.ScriptFile = ""
	}
	return nil
}

// merge appends other to c. Singletons may only be set once.
func (c *Catalog) merge(other *Catalog) error {
	if other.User != nil {
		if c.User != nil {
			return fmt.Errorf("user settings defined twice")
		}
		c.User = other.User
	}
	if other.Notifications != nil {
		if c.Notifications == nil {
			c.Notifications = &Notifications{}
		}
		c.Notifications.MediaTypes = append(c.Notifications.MediaTypes, other.Notifications.MediaTypes...)
		c.Notifications.UserMedia = append(c.Notifications.UserMedia, other.Notifications.UserMedia...)
		c.Notifications.Actions = append(c.Notifications.Actions, other.Notifications.Actions...)
	}

	c.HostGroups = append(c.HostGroups, other.HostGroups...)
	c.TemplateGroups = append(c.TemplateGroups, other.TemplateGroups...)
	c.Proxies = append(c.Proxies, other.Proxies...)
	c.Templates = append(c.Templates, other.Templates...)
	c.Hosts = append(c.Hosts, other.Hosts...)
	c.HostTemplates = append(c.HostTemplates, other.HostTemplates...)
	c.ValueMaps = append(c.ValueMaps, other.ValueMaps...)
	c.Macros = append(c.Macros, other.Macros...)
	c.Items = append(c.Items, other.Items...)
	c.Triggers = append(c.Triggers, other.Triggers...)
	c.Graphs = append(c.Graphs, other.Graphs...)
	c.Dashboards = append(c.Dashboards, other.Dashboards...)
	return nil
}
