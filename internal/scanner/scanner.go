// Package scanner extracts component metadata from a single templ or Go
// source file.
//
// The scanner reads one file, records its package, imports and content hash,
// and lists every component it declares together with the parameters of that
// component and the components it renders. For .templ files the Go header is
// parsed with go/parser and component signatures are parsed as Go function
// types, so composite parameter types survive intact. For .go files every
// function returning templ.Component is treated as a component.
package scanner

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	gotypes "go/types"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/conneroisu/templaudit/internal/types"
)

// Supported source extensions.
const (
	ExtTempl = ".templ"
	ExtGo    = ".go"
)

var callPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// BufferPool manages reusable byte buffers for file reading
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new buffer pool with initial buffer size
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				// Pre-allocate 64KB buffers for typical component files
				return make([]byte, 0, 64*1024)
			},
		},
	}
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() []byte {
	return bp.pool.Get().([]byte)[:0]
}

// Put returns a buffer to the pool
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) <= 1024*1024 {
		bp.pool.Put(buf)
	}
}

// ComponentScanner parses component source files. It is safe for concurrent
// use.
type ComponentScanner struct {
	// mu guards fileSet, which go/parser mutates
	mu      sync.Mutex
	fileSet *token.FileSet
	// bufferPool provides reusable byte buffers for file reading
	bufferPool *BufferPool
}

// NewComponentScanner creates a new component scanner
func NewComponentScanner() *ComponentScanner {
	return &ComponentScanner{
		fileSet:    token.NewFileSet(),
		bufferPool: NewBufferPool(),
	}
}

// Supported reports whether path has an extension the scanner understands.
func Supported(path string) bool {
	switch filepath.Ext(path) {
	case ExtTempl, ExtGo:
		return true
	default:
		return false
	}
}

// Generated reports whether path is a file produced by templ generate or a
// test file, neither of which declares components of its own.
func Generated(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "_templ.go") || strings.HasSuffix(base, "_test.go")
}

// ScanFile scans a single file and returns the components it declares.
func (s *ComponentScanner) ScanFile(path string) (*types.ModuleInfo, error) {
	cleanPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolving path %s: %w", path, err)
	}
	if !Supported(cleanPath) {
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(cleanPath))
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", cleanPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("getting file info for %s: %w", cleanPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", cleanPath)
	}

	buffer := s.bufferPool.Get()
	defer s.bufferPool.Put(buffer)

	if cap(buffer) < int(info.Size()) {
		buffer = make([]byte, 0, info.Size())
	}
	content, err := readAll(file, buffer)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", cleanPath, err)
	}

	module := &types.ModuleInfo{
		Path:    cleanPath,
		LastMod: info.ModTime(),
		Hash:    fmt.Sprintf("%x", crc32.ChecksumIEEE(content)),
	}

	if filepath.Ext(cleanPath) == ExtTempl {
		err = s.parseTemplFile(module, content)
	} else {
		err = s.parseGoFile(module, content)
	}
	if err != nil {
		return nil, err
	}

	return module, nil
}

func readAll(file *os.File, buf []byte) ([]byte, error) {
	for {
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
		n, err := file.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	content := make([]byte, len(buf))
	copy(content, buf)
	return content, nil
}

func (s *ComponentScanner) parseFile(path string, content []byte, mode parser.Mode) (*ast.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return parser.ParseFile(s.fileSet, path, content, mode)
}

// parseTemplFile reads the Go header of a templ file for package and imports,
// then walks the body line by line for templ declarations. A declaration
// whose parameter list spans several lines is joined before parsing.
func (s *ComponentScanner) parseTemplFile(module *types.ModuleInfo, content []byte) error {
	var (
		imports []string
		aliases map[string]string
	)
	if header, err := s.parseFile(module.Path, content, parser.ImportsOnly); err == nil {
		module.Package = header.Name.Name
		imports = importPaths(header)
		aliases = importAliases(header)
	}

	lines := strings.Split(string(content), "\n")
	current := -1

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if module.Package == "" && strings.HasPrefix(line, "package ") {
			if parts := strings.Fields(line); len(parts) >= 2 {
				module.Package = sanitizeIdentifier(parts[1])
			}
			continue
		}

		if strings.HasPrefix(line, "templ ") {
			decl := line
			for depth(decl) > 0 && i+1 < len(lines) {
				i++
				decl += " " + strings.TrimSpace(lines[i])
			}

			name, params, err := parseTemplDecl(decl)
			if err != nil {
				return fmt.Errorf("parsing templ declaration in %s: %w", module.Path, err)
			}
			if name == "" {
				// Method receivers and malformed headers are not components.
				current = -1
				continue
			}

			module.Components = append(module.Components, types.ComponentInfo{
				Name:          name,
				Package:       module.Package,
				FilePath:      module.Path,
				Parameters:    params,
				Imports:       imports,
				ImportAliases: aliases,
				Dependencies:  []string{},
				IsExported:    token.IsExported(name),
			})
			current = len(module.Components) - 1
			continue
		}

		if current < 0 {
			continue
		}
		comp := &module.Components[current]
		for _, m := range callPattern.FindAllStringSubmatch(line, -1) {
			comp.Dependencies = appendUnique(comp.Dependencies, m[1])
		}
	}

	if module.Package == "" {
		return fmt.Errorf("no package clause in %s", module.Path)
	}

	return nil
}

// depth returns the number of unclosed parentheses in s.
func depth(s string) int {
	d := 0
	for _, r := range s {
		switch r {
		case '(':
			d++
		case ')':
			d--
		}
	}
	return d
}

// parseTemplDecl parses "templ Name(params) {" into the component name and
// its parameters. A method declaration yields an empty name.
func parseTemplDecl(decl string) (string, []types.ParameterInfo, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(decl, "templ "))
	if strings.HasPrefix(rest, "(") {
		return "", nil, nil
	}

	open := strings.Index(rest, "(")
	if open <= 0 {
		return "", nil, nil
	}
	name := sanitizeIdentifier(rest[:open])

	closeIdx := strings.LastIndex(rest, ")")
	if closeIdx < open {
		return "", nil, fmt.Errorf("unterminated parameter list for %s", name)
	}

	expr, err := parser.ParseExpr("func" + rest[open:closeIdx+1])
	if err != nil {
		return "", nil, fmt.Errorf("parameters of %s: %w", name, err)
	}
	fn, ok := expr.(*ast.FuncType)
	if !ok {
		return "", nil, fmt.Errorf("parameters of %s are not a parameter list", name)
	}

	return name, parameters(fn), nil
}

func (s *ComponentScanner) parseGoFile(module *types.ModuleInfo, content []byte) error {
	astFile, err := s.parseFile(module.Path, content, parser.ParseComments)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", module.Path, err)
	}
	module.Package = astFile.Name.Name
	imports := importPaths(astFile)
	aliases := importAliases(astFile)

	for _, decl := range astFile.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !isTemplComponent(fn) {
			continue
		}

		module.Components = append(module.Components, types.ComponentInfo{
			Name:          fn.Name.Name,
			Package:       module.Package,
			FilePath:      module.Path,
			Parameters:    parameters(fn.Type),
			Imports:       imports,
			ImportAliases: aliases,
			Dependencies:  calledFunctions(fn),
			IsExported:    fn.Name.IsExported(),
		})
	}

	return nil
}

func isTemplComponent(fn *ast.FuncDecl) bool {
	if fn.Type.Results == nil || len(fn.Type.Results.List) != 1 {
		return false
	}

	result := fn.Type.Results.List[0]
	if sel, ok := result.Type.(*ast.SelectorExpr); ok {
		if ident, ok := sel.X.(*ast.Ident); ok {
			return ident.Name == "templ" && sel.Sel.Name == "Component"
		}
	}

	return false
}

// calledFunctions lists the exported package-local functions fn calls.
func calledFunctions(fn *ast.FuncDecl) []string {
	deps := []string{}
	if fn.Body == nil {
		return deps
	}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if ident, ok := call.Fun.(*ast.Ident); ok && ident.IsExported() && ident.Name != fn.Name.Name {
			deps = appendUnique(deps, ident.Name)
		}
		return true
	})
	return deps
}

func parameters(fn *ast.FuncType) []types.ParameterInfo {
	params := []types.ParameterInfo{}
	if fn.Params == nil {
		return params
	}

	for _, field := range fn.Params.List {
		typ := gotypes.ExprString(field.Type)
		var optional bool
		switch field.Type.(type) {
		case *ast.StarExpr, *ast.Ellipsis:
			optional = true
		}

		for _, name := range field.Names {
			params = append(params, types.ParameterInfo{
				Name:     name.Name,
				Type:     typ,
				Optional: optional,
			})
		}
	}

	return params
}

func importPaths(astFile *ast.File) []string {
	imports := make([]string, 0, len(astFile.Imports))
	for _, imp := range astFile.Imports {
		if imp.Path == nil {
			continue
		}
		if p, err := strconv.Unquote(imp.Path.Value); err == nil {
			imports = append(imports, p)
		}
	}
	return imports
}

// importAliases returns the named imports of astFile. Blank and dot
// imports introduce no package name and are skipped.
func importAliases(astFile *ast.File) map[string]string {
	var aliases map[string]string
	for _, imp := range astFile.Imports {
		if imp.Name == nil || imp.Path == nil || imp.Name.Name == "_" || imp.Name.Name == "." {
			continue
		}
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if aliases == nil {
			aliases = make(map[string]string)
		}
		aliases[imp.Name.Name] = p
	}
	return aliases
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// sanitizeIdentifier removes dangerous characters from identifiers
func sanitizeIdentifier(identifier string) string {
	var cleaned strings.Builder
	for _, r := range identifier {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			cleaned.WriteRune(r)
		}
	}
	return cleaned.String()
}
