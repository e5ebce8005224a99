package expression

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// spliceRe matches {{ ... }} spans, non-greedy so adjacent splices in the
// same string are resolved independently.
var spliceRe = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)

// Resolve expands every {{ expression }} splice in template (§4.3).
//
// A template that is exactly one splice with nothing else around it
// (optionally surrounded by whitespace) evaluates to the expression's raw
// value — so "{{ node.http1.body }}" can produce a map, a number, or any
// other type, not just a string. Any other template — one with surrounding
// literal text, or more than one splice — is resolved by substituting each
// splice's string representation into the surrounding text, producing a
// string result.
//
// Evaluation is bounded by timeout; an expression that does not finish in
// time returns an error whose message says the evaluation exceeded the
// timeout.
func Resolve(template string, input interface{}, ctx *Context, timeout time.Duration) (interface{}, error) {
	matches := spliceRe.FindAllStringSubmatchIndex(template, -1)
	if len(matches) == 0 {
		return template, nil
	}

	if isWholeTemplateSplice(template, matches) {
		expr := template[matches[0][2]:matches[0][3]]
		return evaluateWithTimeout(expr, input, ctx, timeout)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		exprStart, exprEnd := m[2], m[3]
		b.WriteString(template[last:start])

		value, err := evaluateWithTimeout(template[exprStart:exprEnd], input, ctx, timeout)
		if err != nil {
			return nil, err
		}
		b.WriteString(stringify(value))
		last = end
	}
	b.WriteString(template[last:])
	return b.String(), nil
}

// isWholeTemplateSplice reports whether matches contains exactly one
// splice and it spans the entire template once surrounding whitespace is
// trimmed.
func isWholeTemplateSplice(template string, matches [][]int) bool {
	if len(matches) != 1 {
		return false
	}
	trimmed := strings.TrimSpace(template)
	whole := strings.TrimSpace(template[matches[0][0]:matches[0][1]])
	return trimmed == whole
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// evaluateWithTimeout runs the expression on the shared engine, aborting
// with an error if it does not return within timeout (§4.3 wall-clock
// bound). timeout <= 0 disables the bound.
func evaluateWithTimeout(expr string, input interface{}, ctx *Context, timeout time.Duration) (interface{}, error) {
	if timeout <= 0 {
		return EvaluateExpression(expr, input, ctx)
	}

	type result struct {
		value interface{}
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := EvaluateExpression(expr, input, ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("expression evaluation exceeded %s: %q", timeout, expr)
	}
}

// ExtractTemplateDependencies returns the node IDs referenced by every
// splice in template, used to build the dependency graph when a raw
// parameter string (not yet wired through Connections) mentions a node.
func ExtractTemplateDependencies(template string) []string {
	var deps []string
	seen := make(map[string]bool)
	for _, m := range spliceRe.FindAllStringSubmatch(template, -1) {
		for _, id := range ExtractDependencies(m[1]) {
			if !seen[id] {
				seen[id] = true
				deps = append(deps, id)
			}
		}
	}
	return deps
}
