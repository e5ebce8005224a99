// Package expression provides the expression evaluation engine used by
// workflow node parameters.
//
// # Overview
//
// Any string-typed node parameter may embed one or more {{ ... }} splices
// (§4.3). A parameter that is a single splice spanning the entire string
// evaluates to its typed result (a number, bool, map, etc. — not a
// stringified copy); a parameter with surrounding text or more than one
// splice has each splice evaluated, coerced to text, and concatenated.
// Resolve implements both cases; EvaluateExpression evaluates a single
// expression directly with no splice delimiters, for callers (Function's
// map/filter/reduce/sort, If's condition) that already know they hold a
// bare expression rather than a templated string.
//
// Expressions compile to expr-lang/expr programs through ExprEngine,
// which caches compiled programs by their (syntax-converted) source so
// repeated evaluations of the same expression — the common case inside a
// Function node's per-element loop — skip recompilation.
//
// # Context accessors
//
// Inside a splice or a bare expression:
//
//	$node.<name>            last output of the named node (NodeResult.Data)
//	$workflow.id            the running workflow's ID
//	$workflow.name          the running workflow's name
//	$workflow.variables.<k> a workflow-scoped variable, current value
//	$vars.<k>, $variables.<k>  same as $workflow.variables.<k>
//	$env.<name>             an environment variable referenced by the
//	                        workflow, resolved once per execution through
//	                        the configured EnvironmentProvider and falling
//	                        back to the process environment
//	$json                   the current item's JSON: a node's primary
//	                        upstream input outside a loop, or the element
//	                        Function is iterating over inside one
//	$item, $index           Function's per-element bindings (§4.7)
//	$accumulator            Function's reduce accumulator
//
// convertSyntax rewrites these sigils to the plain identifiers the
// compiled environment actually exposes ($node -> node, $workflow ->
// context.workflow, and so on) before expr-lang ever sees the source.
//
// # Built-in functions
//
// addCustomFunctions registers the complete §4.3 helper set: string
// (contains, startsWith, endsWith, trim, split, replace, substring,
// length, regexMatch, ...), math (round, floor, ceil, abs, min, max,
// pow, sqrt, avg, sum, random, ...), array (first, last, reverse,
// unique, flatten, slice, zip, arrayLength, ...), date/time (now,
// utcNow, today, parseDate, formatDate, addDays/Hours/Minutes, dateDiff,
// toEpoch/fromEpoch(Millis), year/month/day/hour/minute, ...), JSON
// (parseJson, toJson, getJsonProperty), and type/null handling
// (toNumber, toInt, toString, toBoolean, toDate, isNull, isEmpty,
// coalesce, defaultValue, uuid, base64Encode/Decode).
//
// # Safety
//
// SafetyValidator runs before every compilation and rejects expressions
// that reference filesystem, network, process, or reflective
// identifiers; contain path-traversal markers; exceed the maximum
// source length; or nest braces/parens beyond the configured depth
// (§4.3 safety validator). Compiled evaluation itself is bounded by the
// caller-supplied timeout (runContext.cfg.ExpressionTimeout) via
// Resolve's evaluateWithTimeout.
//
// # Dependency extraction
//
// ExtractDependencies and ExtractTemplateDependencies scan an
// expression or a {{ }} template for $node.<name> references without
// evaluating anything, so the scheduler can fold expression-derived
// edges into the workflow graph (§4.1) before any node runs.
package expression
