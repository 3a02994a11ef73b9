// genschema generates a tool declaration JSON file from a request struct,
// e.g.:
//
//	go run ./cmd/genschema -type=MenuRequest -pkg=./tools -name=menu_lookup -out=schemas
//
// The struct's exported fields become the declaration's parameter schema;
// the type's doc comment becomes the tool description.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

type jsonSchema struct {
	Type        string                `json:"type,omitempty"`
	Description string                `json:"description,omitempty"`
	Properties  map[string]jsonSchema `json:"properties,omitempty"`
	Items       *jsonSchema           `json:"items,omitempty"`
	Required    []string              `json:"required,omitempty"`
}

type declaration struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  jsonSchema `json:"parameters"`
}

func main() {
	typeName := flag.String("type", "", "Name of the request struct to generate a declaration for")
	pkgPattern := flag.String("pkg", "./tools", "Package pattern containing the struct")
	toolName := flag.String("name", "", "Tool name for the declaration (defaults to the snake_cased type name)")
	outDir := flag.String("out", "schemas", "Output directory")
	flag.Parse()

	if *typeName == "" {
		log.Fatal("Struct type must be provided using -type flag")
	}

	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedImports |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo,
		Fset: token.NewFileSet(),
	}
	pkgs, err := packages.Load(cfg, *pkgPattern)
	if err != nil {
		log.Fatalf("Failed to load package(s) for pattern %q: %v", *pkgPattern, err)
	}
	if len(pkgs) == 0 {
		log.Fatalf("No packages found for pattern %q", *pkgPattern)
	}
	pkg := pkgs[0]
	for _, p := range pkgs {
		for _, perr := range p.Errors {
			log.Fatalf("Package load error: %v", perr)
		}
	}

	obj := pkg.Types.Scope().Lookup(*typeName)
	if obj == nil {
		log.Fatalf("Type %q not found in package %q", *typeName, pkg.PkgPath)
	}
	named, ok := obj.Type().(*types.Named)
	if !ok {
		log.Fatalf("Object %q is not a named type", *typeName)
	}
	structType, ok := named.Underlying().(*types.Struct)
	if !ok {
		log.Fatalf("Type %q is not a struct", *typeName)
	}

	params, err := structSchema(structType)
	if err != nil {
		log.Fatalf("Failed to generate schema for %q: %v", *typeName, err)
	}

	name := *toolName
	if name == "" {
		name = snakeCase(*typeName)
	}
	decl := declaration{
		Name:        name,
		Description: typeDoc(pkg, obj),
		Parameters:  params,
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create directory %q: %v", *outDir, err)
	}
	out, err := json.MarshalIndent(decl, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal declaration: %v", err)
	}
	outputFile := filepath.Join(*outDir, name+".json")
	if err := os.WriteFile(outputFile, out, 0644); err != nil {
		log.Fatalf("Failed to write %q: %v", outputFile, err)
	}
	log.Printf("Wrote declaration for %s to %s", *typeName, outputFile)
}

// structSchema renders the struct's exported fields as an object schema.
// Fields tagged json:"-" are skipped; omitempty fields are optional.
func structSchema(structType *types.Struct) (jsonSchema, error) {
	schema := jsonSchema{
		Type:       "object",
		Properties: map[string]jsonSchema{},
		Required:   []string{},
	}
	for i := 0; i < structType.NumFields(); i++ {
		field := structType.Field(i)
		if !field.Exported() {
			continue
		}
		name := field.Name()
		tag := parseJSONTag(reflect.StructTag(structType.Tag(i)))
		if tag.name == "-" {
			continue
		}
		if tag.name != "" {
			name = tag.name
		}

		fieldSchema, err := schemaForType(field.Type())
		if err != nil {
			return jsonSchema{}, fmt.Errorf("field %s: %w", field.Name(), err)
		}
		schema.Properties[name] = fieldSchema
		if !tag.omitEmpty {
			schema.Required = append(schema.Required, name)
		}
	}
	sort.Strings(schema.Required)
	return schema, nil
}

func schemaForType(t types.Type) (jsonSchema, error) {
	switch typ := t.Underlying().(type) {
	case *types.Basic:
		switch typ.Kind() {
		case types.Bool:
			return jsonSchema{Type: "boolean"}, nil
		case types.Int, types.Int8, types.Int16, types.Int32, types.Int64,
			types.Uint, types.Uint8, types.Uint16, types.Uint32, types.Uint64:
			return jsonSchema{Type: "integer"}, nil
		case types.Float32, types.Float64:
			return jsonSchema{Type: "number"}, nil
		case types.String:
			return jsonSchema{Type: "string"}, nil
		default:
			return jsonSchema{}, fmt.Errorf("unsupported basic type %s", typ.String())
		}
	case *types.Slice:
		elem, err := schemaForType(typ.Elem())
		if err != nil {
			return jsonSchema{}, err
		}
		return jsonSchema{Type: "array", Items: &elem}, nil
	case *types.Struct:
		return structSchema(typ)
	case *types.Pointer:
		return schemaForType(typ.Elem())
	default:
		return jsonSchema{}, fmt.Errorf("unhandled type %s", t.String())
	}
}

// typeDoc returns the doc comment of the type declaration, trimmed to one
// paragraph.
func typeDoc(pkg *packages.Package, obj types.Object) string {
	for _, file := range pkg.Syntax {
		var doc string
		ast.Inspect(file, func(n ast.Node) bool {
			decl, ok := n.(*ast.GenDecl)
			if !ok || decl.Tok != token.TYPE {
				return true
			}
			for _, spec := range decl.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok || pkg.TypesInfo.Defs[ts.Name] != obj {
					continue
				}
				if ts.Doc != nil {
					doc = ts.Doc.Text()
				} else if decl.Doc != nil {
					doc = decl.Doc.Text()
				}
				return false
			}
			return true
		})
		if doc != "" {
			return strings.TrimSpace(doc)
		}
	}
	return ""
}

type jsonTag struct {
	name      string
	omitEmpty bool
}

func parseJSONTag(tag reflect.StructTag) jsonTag {
	value := tag.Get("json")
	if value == "" {
		return jsonTag{}
	}
	parts := strings.Split(value, ",")
	out := jsonTag{name: parts[0]}
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			out.omitEmpty = true
		}
	}
	return out
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
