package rootpath

// NodeKind enumerates the syntax node kinds that open a lexical scope worth
// gathering context for.
type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindProgram
	KindArrowFunction
	KindFunctionExpression
	KindGeneratorFunction
	KindGeneratorFunctionDeclaration
	KindFunctionDeclaration
	KindFunctionDefinition
	KindMethodDefinition
	KindMethodDeclaration
	KindClassDeclaration
	KindClassDefinition
)

var kindNames = [...]string{
	KindUnknown:                      "unknown",
	KindProgram:                      "program",
	KindArrowFunction:                "arrow_function",
	KindFunctionExpression:           "function_expression",
	KindGeneratorFunction:            "generator_function",
	KindGeneratorFunctionDeclaration: "generator_function_declaration",
	KindFunctionDeclaration:          "function_declaration",
	KindFunctionDefinition:           "function_definition",
	KindMethodDefinition:             "method_definition",
	KindMethodDeclaration:            "method_declaration",
	KindClassDeclaration:             "class_declaration",
	KindClassDefinition:              "class_definition",
}

// typeToKind maps tree-sitter node types to kinds. Module roots differ by
// grammar: program (JS/TS), module (Python), source_file (Go, Rust).
var typeToKind = map[string]NodeKind{
	"program":                        KindProgram,
	"module":                         KindProgram,
	"source_file":                    KindProgram,
	"arrow_function":                 KindArrowFunction,
	"function_expression":            KindFunctionExpression,
	"generator_function":             KindGeneratorFunction,
	"generator_function_declaration": KindGeneratorFunctionDeclaration,
	"function_declaration":           KindFunctionDeclaration,
	"function_definition":            KindFunctionDefinition,
	"method_definition":              KindMethodDefinition,
	"method_declaration":             KindMethodDeclaration,
	"class_declaration":              KindClassDeclaration,
	"class_definition":               KindClassDefinition,
}

// KindOf returns the kind for a tree-sitter node type, or KindUnknown.
func KindOf(nodeType string) NodeKind {
	return typeToKind[nodeType]
}

// String returns the canonical node type name. Query files are named after it.
func (k NodeKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// IsScope reports whether nodes of this kind contribute a level.
func (k NodeKind) IsScope() bool {
	return k != KindUnknown
}

// ScopeNodes keeps the scope-defining nodes of path, preserving order.
func ScopeNodes(path AstPath) []ScopeNode {
	var out []ScopeNode
	for _, n := range path {
		if n == nil {
			continue
		}
		if KindOf(n.Type()).IsScope() {
			out = append(out, n)
		}
	}
	return out
}
