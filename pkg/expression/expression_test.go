package expression

import (
	"strings"
	"testing"
	"time"
)

func TestResolve_WholeTemplateReturnsTypedValue(t *testing.T) {
	ctx := &Context{
		NodeResults: map[string]interface{}{
			"fetch": map[string]interface{}{"status": 200.0, "body": map[string]interface{}{"ok": true}},
		},
		Variables:   map[string]interface{}{},
		ContextVars: map[string]interface{}{},
	}

	tests := []struct {
		name     string
		template string
		want     interface{}
	}{
		{"bare number", "{{ 1 + 2 }}", 3.0},
		{"node accessor", "{{ $node.fetch.status }}", 200.0},
		{"nested node accessor", "{{ $node.fetch.body.ok }}", true},
		{"whitespace padded", "{{  $node.fetch.status == 200  }}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.template, nil, ctx, 0)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestResolve_SpliceWithSurroundingTextStringifies(t *testing.T) {
	ctx := &Context{
		NodeResults: map[string]interface{}{"fetch": map[string]interface{}{"status": 200.0}},
		Variables:   map[string]interface{}{"env": "staging"},
		ContextVars: map[string]interface{}{},
	}

	got, err := Resolve("status={{ $node.fetch.status }} env={{ $vars.env }}", nil, ctx, 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "status=200 env=staging" {
		t.Errorf("Resolve() = %q, want %q", got, "status=200 env=staging")
	}
}

func TestResolve_NoSpliceReturnsLiteral(t *testing.T) {
	got, err := Resolve("plain string, no splices", nil, nil, 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "plain string, no splices" {
		t.Errorf("Resolve() = %v, want unchanged literal", got)
	}
}

func TestResolve_TimeoutExceeded(t *testing.T) {
	_, err := Resolve("{{ 1 + 1 }}", nil, nil, time.Nanosecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "exceeded") {
		t.Errorf("error = %v, want exceeded-timeout message", err)
	}
}

func TestEvaluateExpression_WorkflowAccessor(t *testing.T) {
	ctx := &Context{
		NodeResults: map[string]interface{}{},
		Variables:   map[string]interface{}{},
		ContextVars: map[string]interface{}{
			"workflow": map[string]interface{}{
				"id":        "wf-1",
				"name":      "Order Pipeline",
				"variables": map[string]interface{}{"retries": 3.0},
			},
		},
	}

	tests := []struct {
		name string
		expr string
		want interface{}
	}{
		{"workflow id", "$workflow.id", "wf-1"},
		{"workflow name", "$workflow.name", "Order Pipeline"},
		{"workflow variable", "$workflow.variables.retries", 3.0},
		{"workflow variable in condition", "$workflow.variables.retries > 1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateExpression(tt.expr, nil, ctx)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEvaluateExpression_EnvAccessor(t *testing.T) {
	ctx := &Context{
		NodeResults: map[string]interface{}{},
		Variables:   map[string]interface{}{},
		ContextVars: map[string]interface{}{
			"env": map[string]interface{}{"API_BASE": "https://api.example.com"},
		},
	}

	got, err := EvaluateExpression(`$env.API_BASE + "/orders"`, nil, ctx)
	if err != nil {
		t.Fatalf("EvaluateExpression() error = %v", err)
	}
	if got != "https://api.example.com/orders" {
		t.Errorf("EvaluateExpression() = %v, want concatenated URL", got)
	}
}

func TestEvaluateExpression_JsonAccessor(t *testing.T) {
	ctx := &Context{
		NodeResults: map[string]interface{}{},
		Variables:   map[string]interface{}{"json": map[string]interface{}{"total": 42.0}},
		ContextVars: map[string]interface{}{},
	}

	got, err := EvaluateExpression("$json.total", nil, ctx)
	if err != nil {
		t.Fatalf("EvaluateExpression() error = %v", err)
	}
	if got != 42.0 {
		t.Errorf("EvaluateExpression() = %v, want 42", got)
	}
}

func TestEvaluateExpression_NodeAndVarsAccessors(t *testing.T) {
	ctx := &Context{
		NodeResults: map[string]interface{}{
			"http1": map[string]interface{}{"value": 150.0},
			"http2": map[string]interface{}{"value": 50.0},
		},
		Variables:   map[string]interface{}{"threshold": 100.0},
		ContextVars: map[string]interface{}{},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"node threshold", "$node.http1.value > $vars.threshold", true},
		{"node comparison", "$node.http1.value > $node.http2.value", true},
		{"variables alias", "$variables.threshold == 100", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateExpression(tt.expr, nil, ctx)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateExpression_NullHandling(t *testing.T) {
	ctx := &Context{
		NodeResults: map[string]interface{}{
			"nullNode":  map[string]interface{}{"value": nil},
			"validNode": map[string]interface{}{"value": "test"},
		},
		Variables:   map[string]interface{}{"nullVar": nil, "validVar": 100.0},
		ContextVars: map[string]interface{}{},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"isNull on null node value", "isNull($node.nullNode.value)", true},
		{"isNull on non-null node value", "isNull($node.validNode.value)", false},
		{"isNull on null variable", "isNull($vars.nullVar)", true},
		{"isNull on valid variable", "isNull($vars.validVar)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateExpression(tt.expr, nil, ctx)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateExpression_DateTimeComparisons(t *testing.T) {
	time1 := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	time2 := time.Date(2024, 1, 20, 10, 30, 0, 0, time.UTC)

	ctx := &Context{
		NodeResults: map[string]interface{}{
			"date1": map[string]interface{}{"value": time1},
			"date2": map[string]interface{}{"value": time2},
		},
		Variables:   map[string]interface{}{},
		ContextVars: map[string]interface{}{},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"time before", "$node.date1.value < $node.date2.value", true},
		{"time after", "$node.date2.value > $node.date1.value", true},
		{"time equal", "$node.date1.value == $node.date1.value", true},
		{"time not equal", "$node.date1.value != $node.date2.value", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateExpression(tt.expr, nil, ctx)
			if err != nil {
				t.Fatalf("EvaluateExpression() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EvaluateExpression() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDateTimeFormats(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		wantErr bool
	}{
		{"RFC3339", "2024-01-15T10:30:00Z", false},
		{"RFC3339Nano", "2024-01-15T10:30:00.123456789Z", false},
		{"simple date", "2024-01-15", false},
		{"datetime with space", "2024-01-15 10:30:00", false},
		{"unix timestamp int", int64(1705315800), false},
		{"unix timestamp float", 1705315800.0, false},
		{"time.Time", time.Now(), false},
		{"invalid string", "not a date", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDateTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseDateTime() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractDependencies(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"single node", "$node.http1.value > 100", []string{"http1"}},
		{"multiple nodes", "$node.a.value > $node.b.value", []string{"a", "b"}},
		{"with variables", "$node.x.value + $vars.y > 100", []string{"x"}},
		{"complex expression", "pow($node.n1.value, 2) + $node.n2.value > 100", []string{"n1", "n2"}},
		{"no nodes", "$vars.x > 100", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractDependencies(tt.expr)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractDependencies() = %v, want %v", got, tt.want)
			}
			gotSet := make(map[string]bool, len(got))
			for _, id := range got {
				gotSet[id] = true
			}
			for _, id := range tt.want {
				if !gotSet[id] {
					t.Errorf("ExtractDependencies() missing %v", id)
				}
			}
		})
	}
}

func TestExtractEnvNames(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"single", "$env.API_BASE", []string{"API_BASE"}},
		{"repeated collapses", "$env.TOKEN + $env.TOKEN", []string{"TOKEN"}},
		{"multiple distinct", "$env.A + $env.B", []string{"A", "B"}},
		{"none", "$node.a.value > 100", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractEnvNames(tt.expr)
			if len(got) != len(tt.want) {
				t.Fatalf("ExtractEnvNames() = %v, want %v", got, tt.want)
			}
			for i, name := range tt.want {
				if got[i] != name {
					t.Errorf("ExtractEnvNames()[%d] = %v, want %v", i, got[i], name)
				}
			}
		})
	}
}

func TestExtractTemplateDependencies(t *testing.T) {
	got := ExtractTemplateDependencies("prefix {{ $node.a.value }} middle {{ $node.b.value + $vars.x }} suffix")
	want := []string{"a", "b"}
	if len(got) != len(want) {
		t.Fatalf("ExtractTemplateDependencies() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExtractTemplateDependencies()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func BenchmarkEvaluateExpression_Simple(b *testing.B) {
	ctx := &Context{Variables: map[string]interface{}{}, ContextVars: map[string]interface{}{}}
	for i := 0; i < b.N; i++ {
		EvaluateExpression("1 + 1 > 1", nil, ctx)
	}
}

func BenchmarkEvaluateExpression_NodeAccessors(b *testing.B) {
	ctx := &Context{
		NodeResults: map[string]interface{}{
			"a": map[string]interface{}{"value": 10.0},
			"b": map[string]interface{}{"value": 5.0},
		},
		Variables:   map[string]interface{}{"foo": 3.0},
		ContextVars: map[string]interface{}{},
	}
	for i := 0; i < b.N; i++ {
		EvaluateExpression("($node.a.value + ($node.b.value * 5)) > pow($vars.foo, 2)", nil, ctx)
	}
}
