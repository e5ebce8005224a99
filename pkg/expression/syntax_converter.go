package expression

import (
	"regexp"
	"strings"
)

// convertSyntax converts Thaiyyal expression syntax to expr-lang syntax
// This provides compatibility with existing expressions while using expr-lang internally
func convertSyntax(expression string) string {
	// Strip the $-sigil bindings ($node, $json, $workflow, $vars) down to
	// their expr-lang environment names before anything else runs, so the
	// later regexes see plain identifiers.
	expression = convertDollarBindings(expression)

	// Convert .length property to len() function
	// Match: somevar.field.length or item.array.length
	lengthRe := regexp.MustCompile(`(\w+(?:\.\w+|\[\d+\])*?)\.length\b`)
	expression = lengthRe.ReplaceAllString(expression, "len($1)")

	// Convert map(array, expr) syntax to map(array, {closure})
	// This is more complex as we need to handle nested expressions
	expression = convertMapSyntax(expression)

	return expression
}

// dollarBindingRe matches a leading $name identifier, e.g. $node, $json.
var dollarBindingRe = regexp.MustCompile(`\$(node|json|workflow|env|vars|variables|item|index|accumulator)\b`)

// convertDollarBindings rewrites $-sigil references to the names the
// environment actually exposes: $node stays "node" (the per-node result
// map), $workflow and $env resolve through "context" (context.workflow,
// context.env) since runContext rebuilds both fresh on every evaluation,
// $vars/$variables become "variables", and $json/$item/$index/$accumulator
// (the current item's JSON and the Function node's per-element bindings,
// §4.3/§4.7) drop their sigil since the caller binds them as top-level
// environment names before evaluating.
func convertDollarBindings(expression string) string {
	return dollarBindingRe.ReplaceAllStringFunc(expression, func(m string) string {
		switch m {
		case "$node":
			return "node"
		case "$json":
			return "json"
		case "$workflow":
			return "context.workflow"
		case "$env":
			return "context.env"
		case "$vars", "$variables":
			return "variables"
		case "$item":
			return "item"
		case "$index":
			return "index"
		case "$accumulator":
			return "accumulator"
		default:
			return m
		}
	})
}

// convertMapSyntax converts map() function calls from Thaiyyal syntax to expr-lang syntax
// Thaiyyal: map(users, item.age * 2)
// expr-lang: map(users, {#.age * 2})
func convertMapSyntax(expression string) string {
	// Find map() calls
	mapRe := regexp.MustCompile(`map\s*\(\s*([^,]+),\s*(.+?)\s*\)`)
	
	// Process each map() call
	for {
		matches := mapRe.FindStringSubmatch(expression)
		if matches == nil {
			break
		}
		
		fullMatch := matches[0]
		arrayExpr := strings.TrimSpace(matches[1])
		itemExpr := strings.TrimSpace(matches[2])
		
		// Convert item references to # in the closure
		// Replace 'item.' with '#.' and standalone 'item' with '#'
		closureExpr := itemExpr
		closureExpr = regexp.MustCompile(`\bitem\.`).ReplaceAllString(closureExpr, "#.")
		closureExpr = regexp.MustCompile(`\bitem\b`).ReplaceAllString(closureExpr, "#")
		
		// Reconstruct the map call with closure syntax
		newMapCall := "map(" + arrayExpr + ", {" + closureExpr + "})"
		
		// Replace in expression
		expression = strings.Replace(expression, fullMatch, newMapCall, 1)
	}
	
	return expression
}
