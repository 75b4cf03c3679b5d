package core

import (
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"github.com/dave/dst"
)

// ParamList synthesizes a parameter list structurally compatible with the
// signature: Min positional parameters, a rest parameter when variadic, and a
// trailing callback parameter when the operation takes one. Parameter names
// are generated (a, b, ... z, aa, bb, ...) and carry no meaning.
func (s Signature) ParamList() []*dst.Field {
	fields := make([]*dst.Field, 0, s.Min+2) //nolint:mnd // rest + callback

	for index := range s.Min {
		fields = append(fields, &dst.Field{
			Names: []*dst.Ident{dst.NewIdent(paramName(index))},
			Type:  typeExpr(s.paramType(index)),
		})
	}

	if s.Variadic() {
		fields = append(fields, &dst.Field{
			Names: []*dst.Ident{dst.NewIdent("rest")},
			Type:  &dst.Ellipsis{Elt: typeExpr(s.paramType(s.Min))},
		})
	}

	if cb := s.callbackType(); cb != nil {
		fields = append(fields, &dst.Field{
			Names: []*dst.Ident{dst.NewIdent("callback")},
			Type:  typeExpr(cb),
		})
	}

	return fields
}

// RenderParams renders ParamList as Go source, e.g. "a string, rest ...int".
func (s Signature) RenderParams() string {
	fields := s.ParamList()
	parts := make([]string, len(fields))

	for i, field := range fields {
		parts[i] = field.Names[0].Name + " " + stringifyExpr(field.Type)
	}

	return strings.Join(parts, ", ")
}

// unexported constants.
const (
	letters = "abcdefghijklmnopqrstuvwxyz"
)

func expandFieldListTypes(fields []*dst.Field) []string {
	var parts []string

	for _, f := range fields {
		typeStr := stringifyExpr(f.Type)

		count := len(f.Names)
		if count == 0 {
			count = 1
		}

		for range count {
			parts = append(parts, typeStr)
		}
	}

	return parts
}

// paramName maps 0..25 to a..z, 26..51 to aa..zz, and so on.
func paramName(index int) string {
	index += len(letters)
	repeat, letter := index/len(letters), index%len(letters)

	return strings.Repeat(string(letters[letter]), repeat)
}

// stringifyExpr converts a DST expression to its string representation.
//
//nolint:cyclop // Type-switch dispatcher over the expression kinds typeExpr produces
func stringifyExpr(expr dst.Expr) string {
	if expr == nil {
		return ""
	}

	switch typedExpr := expr.(type) {
	case *dst.Ident:
		return typedExpr.Name
	case *dst.BasicLit:
		return typedExpr.Value
	case *dst.SelectorExpr:
		return stringifyExpr(typedExpr.X) + "." + typedExpr.Sel.Name
	case *dst.StarExpr:
		return "*" + stringifyExpr(typedExpr.X)
	case *dst.ArrayType:
		if typedExpr.Len != nil {
			return "[" + stringifyExpr(typedExpr.Len) + "]" + stringifyExpr(typedExpr.Elt)
		}

		return "[]" + stringifyExpr(typedExpr.Elt)
	case *dst.MapType:
		return "map[" + stringifyExpr(typedExpr.Key) + "]" + stringifyExpr(typedExpr.Value)
	case *dst.ChanType:
		switch typedExpr.Dir {
		case dst.SEND:
			return "chan<- " + stringifyExpr(typedExpr.Value)
		case dst.RECV:
			return "<-chan " + stringifyExpr(typedExpr.Value)
		default:
			return "chan " + stringifyExpr(typedExpr.Value)
		}
	case *dst.FuncType:
		return stringifyFuncType(typedExpr)
	case *dst.Ellipsis:
		return "..." + stringifyExpr(typedExpr.Elt)
	default:
		return "any"
	}
}

// stringifyFuncType converts a DST FuncType to its string representation.
func stringifyFuncType(funcType *dst.FuncType) string {
	var buf strings.Builder
	buf.WriteString("func(")

	if funcType.Params != nil {
		buf.WriteString(strings.Join(expandFieldListTypes(funcType.Params.List), ", "))
	}

	buf.WriteString(")")

	if funcType.Results != nil && len(funcType.Results.List) > 0 {
		buf.WriteString(" ")

		resultParts := expandFieldListTypes(funcType.Results.List)
		if len(resultParts) > 1 {
			buf.WriteString("(" + strings.Join(resultParts, ", ") + ")")
		} else {
			buf.WriteString(resultParts[0])
		}
	}

	return buf.String()
}

// typeExpr builds the DST expression naming a reflect.Type.
//
//nolint:cyclop // Kind switch; one case per composite kind
func typeExpr(typ reflect.Type) dst.Expr {
	if typ.Name() != "" {
		return namedExpr(typ)
	}

	switch typ.Kind() {
	case reflect.Pointer:
		return &dst.StarExpr{X: typeExpr(typ.Elem())}
	case reflect.Slice:
		return &dst.ArrayType{Elt: typeExpr(typ.Elem())}
	case reflect.Array:
		return &dst.ArrayType{
			Len: &dst.BasicLit{Kind: token.INT, Value: strconv.Itoa(typ.Len())},
			Elt: typeExpr(typ.Elem()),
		}
	case reflect.Map:
		return &dst.MapType{Key: typeExpr(typ.Key()), Value: typeExpr(typ.Elem())}
	case reflect.Chan:
		return &dst.ChanType{Dir: chanDir(typ.ChanDir()), Value: typeExpr(typ.Elem())}
	case reflect.Func:
		return funcTypeExpr(typ)
	case reflect.Interface:
		if typ.NumMethod() == 0 {
			return dst.NewIdent("any")
		}

		return dst.NewIdent(typ.String())
	default:
		return dst.NewIdent(typ.String())
	}
}

func chanDir(dir reflect.ChanDir) dst.ChanDir {
	switch dir {
	case reflect.SendDir:
		return dst.SEND
	case reflect.RecvDir:
		return dst.RECV
	default:
		return dst.SEND | dst.RECV
	}
}

func funcTypeExpr(typ reflect.Type) *dst.FuncType {
	params := &dst.FieldList{}

	for i := range typ.NumIn() {
		var paramExpr dst.Expr = typeExpr(typ.In(i))
		if typ.IsVariadic() && i == typ.NumIn()-1 {
			paramExpr = &dst.Ellipsis{Elt: typeExpr(typ.In(i).Elem())}
		}

		params.List = append(params.List, &dst.Field{Type: paramExpr})
	}

	results := &dst.FieldList{}
	for i := range typ.NumOut() {
		results.List = append(results.List, &dst.Field{Type: typeExpr(typ.Out(i))})
	}

	return &dst.FuncType{Params: params, Results: results}
}

// namedExpr names a defined type: predeclared types stay bare identifiers,
// others become pkg.Name selectors.
func namedExpr(typ reflect.Type) dst.Expr {
	qualified := typ.String()

	pkg, name, found := strings.Cut(qualified, ".")
	if typ.PkgPath() == "" || !found || strings.ContainsAny(pkg, "[]") {
		return dst.NewIdent(qualified)
	}

	return &dst.SelectorExpr{X: dst.NewIdent(pkg), Sel: dst.NewIdent(name)}
}
