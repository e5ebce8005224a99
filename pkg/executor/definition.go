package executor

// ParameterKind names the accepted value type of a node parameter.
type ParameterKind string

const (
	ParamString  ParameterKind = "string"
	ParamNumber  ParameterKind = "number"
	ParamBoolean ParameterKind = "boolean"
	ParamObject  ParameterKind = "object"
	ParamArray   ParameterKind = "array"
	ParamEnum    ParameterKind = "enum"
)

// ParameterSpec describes one parameter a node kind accepts (§4.2). Specs
// drive both the authoring-side form and Validate's structural checks.
type ParameterSpec struct {
	Name        string
	Kind        ParameterKind
	Required    bool
	Default     any
	Description string
	Options     []string // valid values when Kind == ParamEnum
	// ShowIf names another parameter whose value must equal ShowIfValue
	// for this parameter to apply — conditional visibility (§4.2).
	ShowIf      string
	ShowIfValue any
}

// NodeDefinition is the metadata a node kind publishes about itself:
// display information plus its parameter and output shape.
type NodeDefinition struct {
	Kind        string
	DisplayName string
	Category    string
	Description string
	Parameters  []ParameterSpec
	Outputs     []string // named outputs this kind can produce, e.g. ["true","false"]
	Retryable   bool     // whether retry settings are meaningful for this kind
}
