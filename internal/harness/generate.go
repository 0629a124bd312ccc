package harness

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	gotypes "go/types"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/conneroisu/templaudit/internal/environment"
	"github.com/conneroisu/templaudit/internal/loader"
)

// subjectAlias is the import name of the package declaring the component.
const subjectAlias = "subject"

var programTemplate = template.Must(template.New("harness").Parse(`// Code generated by templaudit. DO NOT EDIT.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
{{range .Imports}}
	{{.}}
{{- end}}
)

type props struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} ` + "`json:\"{{.Key}}\"`" + `
{{- end}}
}

func main() {
	var p props
	if err := json.NewDecoder(os.Stdin).Decode(&p); err != nil {
		fmt.Fprintf(os.Stderr, "decoding props: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
{{- range .Setup}}
	{
		{{.}}
	}
{{- end}}

	if err := {{.Call}}.Render(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "rendering {{.Component}}: %v\n", err)
		os.Exit(1)
	}
}
`))

type field struct {
	Name string
	Type string
	Key  string
}

type programData struct {
	Imports   []string
	Fields    []field
	Setup     []string
	Call      string
	Component string
}

// Generate returns the source of a main package that decodes props from
// stdin, installs the given providers' context and renders the module's
// component to stdout.
func Generate(module *loader.Module, providers []environment.Provider) ([]byte, error) {
	q := newQualifier(module.Component.Imports, module.Component.ImportAliases)

	data := programData{Component: module.Component.Name}
	args := make([]string, 0, len(module.Component.Parameters))

	for i, param := range module.Component.Parameters {
		typ := param.Type
		variadic := strings.HasPrefix(typ, "...")
		if variadic {
			typ = strings.TrimPrefix(typ, "...")
		}

		qualified, err := q.qualify(typ)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", param.Name, err)
		}

		name := fmt.Sprintf("P%d", i)
		arg := "p." + name
		if variadic {
			qualified = "[]" + qualified
			arg += "..."
		}
		data.Fields = append(data.Fields, field{Name: name, Type: qualified, Key: param.Name})
		args = append(args, arg)
	}

	imports := map[string]bool{
		subjectAlias + " " + strconv.Quote(module.ImportPath): true,
	}
	for _, spec := range q.specs() {
		imports[spec] = true
	}
	for _, p := range providers {
		for _, spec := range p.HarnessImports() {
			imports[spec] = true
		}
		data.Setup = append(data.Setup, p.HarnessSetup())
	}
	for spec := range imports {
		data.Imports = append(data.Imports, spec)
	}
	sort.Strings(data.Imports)

	data.Call = fmt.Sprintf("%s.%s(%s)", subjectAlias, module.Component.Name, strings.Join(args, ", "))

	var buf bytes.Buffer
	if err := programTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing harness template: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting harness program: %w", err)
	}
	return src, nil
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// packageName guesses the package name of an import path from its last
// element, skipping major version suffixes.
func packageName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]
	if majorVersion.MatchString(name) && len(elems) > 1 {
		name = elems[len(elems)-2]
	}
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "go-")
	return strings.ReplaceAll(name, "-", "")
}

// qualifier rewrites parameter types so they refer to the declaring package
// through subjectAlias and to other packages through explicit imports.
type qualifier struct {
	byName map[string]string
	used   map[string]string
}

// newQualifier indexes imports by the names a parameter type can use for
// them. An aliased import is reachable only through its alias.
func newQualifier(imports []string, aliases map[string]string) *qualifier {
	q := &qualifier{byName: make(map[string]string), used: make(map[string]string)}
	aliased := make(map[string]bool, len(aliases))
	for _, imp := range aliases {
		aliased[imp] = true
	}
	for _, imp := range imports {
		if aliased[imp] {
			continue
		}
		q.byName[packageName(imp)] = imp
		q.byName[path.Base(imp)] = imp
	}
	for alias, imp := range aliases {
		q.byName[alias] = imp
	}
	return q
}

func (q *qualifier) qualify(typ string) (string, error) {
	expr, err := parser.ParseExpr(typ)
	if err != nil {
		return "", fmt.Errorf("parsing type %q: %w", typ, err)
	}

	rewritten, err := q.rewrite(expr)
	if err != nil {
		return "", err
	}
	return gotypes.ExprString(rewritten), nil
}

func (q *qualifier) rewrite(expr ast.Expr) (ast.Expr, error) {
	var err error
	switch t := expr.(type) {
	case *ast.Ident:
		if t.IsExported() {
			return &ast.SelectorExpr{X: ast.NewIdent(subjectAlias), Sel: ast.NewIdent(t.Name)}, nil
		}
		if gotypes.Universe.Lookup(t.Name) == nil {
			return nil, fmt.Errorf("type %s is not exported", t.Name)
		}
		return t, nil
	case *ast.SelectorExpr:
		pkg, ok := t.X.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("unsupported qualified type %s", gotypes.ExprString(t))
		}
		importPath, ok := q.byName[pkg.Name]
		if !ok {
			return nil, fmt.Errorf("no import provides package %s", pkg.Name)
		}
		q.used[pkg.Name] = importPath
		return t, nil
	case *ast.StarExpr:
		t.X, err = q.rewrite(t.X)
	case *ast.ParenExpr:
		t.X, err = q.rewrite(t.X)
	case *ast.ArrayType:
		t.Elt, err = q.rewrite(t.Elt)
	case *ast.Ellipsis:
		t.Elt, err = q.rewrite(t.Elt)
	case *ast.ChanType:
		t.Value, err = q.rewrite(t.Value)
	case *ast.MapType:
		if t.Key, err = q.rewrite(t.Key); err == nil {
			t.Value, err = q.rewrite(t.Value)
		}
	case *ast.IndexExpr:
		if t.X, err = q.rewrite(t.X); err == nil {
			t.Index, err = q.rewrite(t.Index)
		}
	case *ast.IndexListExpr:
		if t.X, err = q.rewrite(t.X); err == nil {
			for i := range t.Indices {
				if t.Indices[i], err = q.rewrite(t.Indices[i]); err != nil {
					break
				}
			}
		}
	case *ast.FuncType:
		if err = q.rewriteFields(t.Params); err == nil {
			err = q.rewriteFields(t.Results)
		}
	case *ast.StructType:
		err = q.rewriteFields(t.Fields)
	case *ast.InterfaceType:
		if t.Methods != nil && len(t.Methods.List) > 0 {
			return nil, fmt.Errorf("interface literal types are not supported")
		}
	default:
		return nil, fmt.Errorf("unsupported type %s", gotypes.ExprString(expr))
	}
	if err != nil {
		return nil, err
	}
	return expr, nil
}

func (q *qualifier) rewriteFields(fields *ast.FieldList) error {
	if fields == nil {
		return nil
	}
	for _, f := range fields.List {
		rewritten, err := q.rewrite(f.Type)
		if err != nil {
			return err
		}
		f.Type = rewritten
	}
	return nil
}

// specs returns import specs for every package the rewritten types use.
func (q *qualifier) specs() []string {
	specs := make([]string, 0, len(q.used))
	for name, importPath := range q.used {
		specs = append(specs, name+" "+strconv.Quote(importPath))
	}
	sort.Strings(specs)
	return specs
}
