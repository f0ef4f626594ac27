// Package manifest loads a declarative skeleton of modules and
// declarations from vera.toml or vera.yaml and builds it into a program.
//
// Types are written as strings (`seq<int>`, `map<K, List<V>>`, `A.B.T`).
// Expressions use the usual operators, selections, displays and
// quantifiers; method and iterator bodies are lists of statements such
// as `var x := e`, `x := f(y)`, `return e` or `assert p`.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format selects the decoder.
type Format uint8

const (
	FormatTOML Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "toml"
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return FormatTOML, fmt.Errorf("%s: manifest must be .toml, .yaml or .yml", path)
}

// Manifest is the decoded skeleton.
type Manifest struct {
	Modules []Module `toml:"module" yaml:"module"`

	// Path and Source are filled by Load and Parse.
	Path   string `toml:"-" yaml:"-"`
	Source []byte `toml:"-" yaml:"-"`
}

// Module is a literal module. An empty name stands for the default module.
type Module struct {
	Name string `toml:"name" yaml:"name"`
	// Parent is the dotted path of the enclosing module, empty for a root.
	Parent   string   `toml:"parent" yaml:"parent,omitempty"`
	Abstract bool     `toml:"abstract" yaml:"abstract,omitempty"`
	Ghost    bool     `toml:"ghost" yaml:"ghost,omitempty"`
	Refines  string   `toml:"refines" yaml:"refines,omitempty"`
	Attrs    []string `toml:"attrs" yaml:"attrs,omitempty"`

	Imports   []Import   `toml:"import" yaml:"import,omitempty"`
	Datatypes []Datatype `toml:"datatype" yaml:"datatype,omitempty"`
	Classes   []Class    `toml:"class" yaml:"class,omitempty"`
	Opaques   []Opaque   `toml:"opaque" yaml:"opaque,omitempty"`
	Iterators []Iterator `toml:"iterator" yaml:"iterator,omitempty"`
	Functions []Function `toml:"function" yaml:"function,omitempty"`
	Methods   []Method   `toml:"method" yaml:"method,omitempty"`
}

// Import declares `import [opened] Name = Path` or `import Name : Path`.
type Import struct {
	Name     string `toml:"name" yaml:"name"`
	Path     string `toml:"path" yaml:"path"`
	Opened   bool   `toml:"opened" yaml:"opened,omitempty"`
	Abstract bool   `toml:"abstract" yaml:"abstract,omitempty"`
}

type Datatype struct {
	Name   string   `toml:"name" yaml:"name"`
	Params []string `toml:"params" yaml:"params,omitempty"`
	Co     bool     `toml:"co" yaml:"co,omitempty"`
	Ctors  []Ctor   `toml:"ctor" yaml:"ctor"`
}

type Ctor struct {
	Name   string  `toml:"name" yaml:"name"`
	Fields []Param `toml:"fields" yaml:"fields,omitempty"`
}

// Param is a typed name: a formal, a constructor field or an out-parameter.
type Param struct {
	Name  string `toml:"name" yaml:"name"`
	Type  string `toml:"type" yaml:"type"`
	Ghost bool   `toml:"ghost" yaml:"ghost,omitempty"`
}

type Class struct {
	Name   string   `toml:"name" yaml:"name"`
	Params []string `toml:"params" yaml:"params,omitempty"`
	Fields []Field  `toml:"fields" yaml:"fields,omitempty"`
}

type Field struct {
	Name    string `toml:"name" yaml:"name"`
	Type    string `toml:"type" yaml:"type"`
	Mutable bool   `toml:"mutable" yaml:"mutable,omitempty"`
	Ghost   bool   `toml:"ghost" yaml:"ghost,omitempty"`
}

type Opaque struct {
	Name     string   `toml:"name" yaml:"name"`
	Params   []string `toml:"params" yaml:"params,omitempty"`
	Equality bool     `toml:"equality" yaml:"equality,omitempty"`
}

type Iterator struct {
	Name   string   `toml:"name" yaml:"name"`
	Params []string `toml:"params" yaml:"params,omitempty"`
	Ins    []Param  `toml:"ins" yaml:"ins,omitempty"`
	Outs   []Param  `toml:"outs" yaml:"outs,omitempty"`
	Body   []string `toml:"body" yaml:"body,omitempty"`
}

// Function is a function or predicate. Class names the owning class;
// empty means a module-level function.
type Function struct {
	Name      string   `toml:"name" yaml:"name"`
	Class     string   `toml:"class" yaml:"class,omitempty"`
	Params    []string `toml:"params" yaml:"params,omitempty"`
	Formals   []Param  `toml:"formals" yaml:"formals,omitempty"`
	Result    string   `toml:"result" yaml:"result,omitempty"`
	Predicate bool     `toml:"predicate" yaml:"predicate,omitempty"`
	Compiled  bool     `toml:"compiled" yaml:"compiled,omitempty"`
	Static    bool     `toml:"static" yaml:"static,omitempty"`
	Requires  []string `toml:"requires" yaml:"requires,omitempty"`
	Ensures   []string `toml:"ensures" yaml:"ensures,omitempty"`
	Body      string   `toml:"body" yaml:"body,omitempty"`
	Attrs     []string `toml:"attrs" yaml:"attrs,omitempty"`
}

type Method struct {
	Name        string   `toml:"name" yaml:"name"`
	Class       string   `toml:"class" yaml:"class,omitempty"`
	Params      []string `toml:"params" yaml:"params,omitempty"`
	Ins         []Param  `toml:"ins" yaml:"ins,omitempty"`
	Outs        []Param  `toml:"outs" yaml:"outs,omitempty"`
	Constructor bool     `toml:"constructor" yaml:"constructor,omitempty"`
	Lemma       bool     `toml:"lemma" yaml:"lemma,omitempty"`
	Ghost       bool     `toml:"ghost" yaml:"ghost,omitempty"`
	Static      bool     `toml:"static" yaml:"static,omitempty"`
	Requires    []string `toml:"requires" yaml:"requires,omitempty"`
	Ensures     []string `toml:"ensures" yaml:"ensures,omitempty"`
	Body        []string `toml:"body" yaml:"body,omitempty"`
	Attrs       []string `toml:"attrs" yaml:"attrs,omitempty"`
}

// Load reads a manifest, choosing the decoder by extension.
func Load(path string) (*Manifest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data, path, format)
}

// Parse decodes manifest content. path is used only in messages.
func Parse(data []byte, path string, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), &m)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
		}
	}
	m.Path, m.Source = path, data
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Modules) == 0 {
		return fmt.Errorf("%s: no modules defined", m.Path)
	}
	seen := make(map[string]bool)
	for i, mod := range m.Modules {
		key := mod.Parent + "/" + mod.Name
		if seen[key] {
			return fmt.Errorf("%s: module[%d]: duplicate module %q", m.Path, i, mod.Name)
		}
		seen[key] = true
		if mod.Name == "" && (mod.Parent != "" || mod.Refines != "" || mod.Abstract) {
			return fmt.Errorf("%s: module[%d]: the default module cannot be nested, abstract or refine", m.Path, i)
		}
		for j, imp := range mod.Imports {
			if imp.Name == "" || imp.Path == "" {
				return fmt.Errorf("%s: module[%d].import[%d]: name and path are required", m.Path, i, j)
			}
		}
		for j, dt := range mod.Datatypes {
			if len(dt.Ctors) == 0 {
				return fmt.Errorf("%s: module[%d].datatype[%d] (%s): at least one ctor is required", m.Path, i, j, dt.Name)
			}
		}
		for j, fn := range mod.Functions {
			if fn.Result == "" && !fn.Predicate {
				return fmt.Errorf("%s: module[%d].function[%d] (%s): result is required", m.Path, i, j, fn.Name)
			}
		}
		for j, mt := range mod.Methods {
			if mt.Constructor && mt.Class == "" {
				return fmt.Errorf("%s: module[%d].method[%d] (%s): constructors need a class", m.Path, i, j, mt.Name)
			}
			if mt.Constructor && len(mt.Outs) > 0 {
				return fmt.Errorf("%s: module[%d].method[%d] (%s): constructors have no outs", m.Path, i, j, mt.Name)
			}
		}
	}
	return nil
}
