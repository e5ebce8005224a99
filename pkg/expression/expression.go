// Package expression implements the workflow expression evaluator (spec
// §4.3): {{ }} template splicing, the $node/$json/$workflow/$env/$vars
// accessor syntax, and the built-in helper function set, all evaluated
// through expr-lang/expr.
package expression

import (
	"regexp"
	"sync"
)

// Context provides access to workflow state during expression evaluation
type Context struct {
	NodeResults map[string]interface{} // Results from executed nodes
	Variables   map[string]interface{} // Workflow variables
	ContextVars map[string]interface{} // Context variables/constants
}

var (
	// Global engine instance for reuse and caching
	globalEngine *ExprEngine
	engineOnce   sync.Once
)

// getEngine returns the singleton expression engine
func getEngine() *ExprEngine {
	engineOnce.Do(func() {
		globalEngine = NewExprEngine()
	})
	return globalEngine
}

// EvaluateExpression evaluates a bare expression (no {{ }} delimiters)
// and returns its typed result. Used by Function's map/filter/reduce/sort
// and by If's condition, where the caller already knows it holds an
// expression rather than a templated string.
//   - Arithmetic/ternary: "$item.age * 2", "$json.total > 100 ? 'a' : 'b'"
//   - Field access: "$item.field", "$node.fetch.body.items[0]"
//   - All $-sigil accessors (§4.3): $node, $workflow, $env, $json, $vars
func EvaluateExpression(expression string, input interface{}, ctx *Context) (interface{}, error) {
	if ctx == nil {
		ctx = &Context{
			NodeResults: make(map[string]interface{}),
			Variables:   make(map[string]interface{}),
			ContextVars: make(map[string]interface{}),
		}
	}

	// If input is provided, ensure it's available as both 'item' and 'input'
	if input != nil {
		_, hasItem := ctx.Variables["item"]
		_, hasInput := ctx.Variables["input"]
		if !hasItem || !hasInput {
			// Create a shallow copy of the context and variables map
			newCtx := &Context{
				NodeResults: ctx.NodeResults,
				Variables:   make(map[string]interface{}),
				ContextVars: ctx.ContextVars,
			}
			for k, v := range ctx.Variables {
				newCtx.Variables[k] = v
			}
			if !hasItem {
				newCtx.Variables["item"] = input
			}
			if !hasInput {
				newCtx.Variables["input"] = input
			}
			ctx = newCtx
		}
	}

	// Use expr-lang/expr engine
	engine := getEngine()
	return engine.EvaluateValue(expression, input, ctx)
}

// ExtractDependencies extracts node IDs referenced in an expression
// This is used to build the dependency graph for topological sorting
func ExtractDependencies(expression string) []string {
	var dependencies []string
	seen := make(map[string]bool)

	// Find all node.id references using regex
	re := regexp.MustCompile(`node\.([a-zA-Z0-9_-]+)`)
	matches := re.FindAllStringSubmatch(expression, -1)

	for _, match := range matches {
		if len(match) > 1 {
			nodeID := match[1]
			if !seen[nodeID] {
				dependencies = append(dependencies, nodeID)
				seen[nodeID] = true
			}
		}
	}

	return dependencies
}

// ExtractEnvNames extracts the $env.NAME names referenced in an
// expression, in first-seen order. The scheduler uses this to resolve
// every environment variable a workflow's node parameters touch exactly
// once per execution (§4.3, §6 EnvironmentProvider), instead of probing
// the provider on every expression evaluation.
func ExtractEnvNames(expression string) []string {
	var names []string
	seen := make(map[string]bool)

	re := regexp.MustCompile(`\$env\.([A-Za-z_][A-Za-z0-9_]*)`)
	for _, match := range re.FindAllStringSubmatch(expression, -1) {
		name := match[1]
		if !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	return names
}
