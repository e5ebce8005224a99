package middleware

import (
	"context"
	"fmt"
	"testing"

	"github.com/flowcraft/workflow-core/pkg/executor"
	"github.com/flowcraft/workflow-core/pkg/types"
)

// mockMiddleware records execution order for testing.
type mockMiddleware struct {
	name       string
	order      *[]string
	shouldFail bool
}

func (m *mockMiddleware) Process(ctx context.Context, ec executor.ExecutionContext, node types.Node, next Handler) types.NodeResult {
	*m.order = append(*m.order, m.name+":pre")

	if m.shouldFail {
		return types.Fail(types.ErrorKindExecution, m.name+" failed", nil)
	}

	result := next(ctx, ec, node)

	*m.order = append(*m.order, m.name+":post")
	return result
}

func (m *mockMiddleware) Name() string {
	return m.name
}

func testNode() types.Node {
	return types.Node{ID: "test", Kind: "Set"}
}

func TestChain_SingleMiddleware(t *testing.T) {
	order := []string{}

	chain := NewChain()
	chain.Use(&mockMiddleware{name: "M1", order: &order})

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		order = append(order, "handler")
		return types.Ok("result")
	}

	result := chain.Execute(context.Background(), nil, testNode(), handler)

	if !result.Success {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if result.Data != "result" {
		t.Errorf("expected 'result', got %v", result.Data)
	}

	expected := []string{"M1:pre", "handler", "M1:post"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d executions, got %d", len(expected), len(order))
	}
	for i, exp := range expected {
		if order[i] != exp {
			t.Errorf("execution %d: expected %s, got %s", i, exp, order[i])
		}
	}
}

func TestChain_MultipleMiddleware(t *testing.T) {
	order := []string{}

	chain := NewChain()
	chain.Use(&mockMiddleware{name: "M1", order: &order})
	chain.Use(&mockMiddleware{name: "M2", order: &order})
	chain.Use(&mockMiddleware{name: "M3", order: &order})

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		order = append(order, "handler")
		return types.Ok("result")
	}

	result := chain.Execute(context.Background(), nil, testNode(), handler)

	if !result.Success {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if result.Data != "result" {
		t.Errorf("expected 'result', got %v", result.Data)
	}

	expected := []string{
		"M1:pre", "M2:pre", "M3:pre", "handler", "M3:post", "M2:post", "M1:post",
	}
	if len(order) != len(expected) {
		t.Fatalf("expected %d executions, got %d: %v", len(expected), len(order), order)
	}
	for i, exp := range expected {
		if order[i] != exp {
			t.Errorf("execution %d: expected %s, got %s", i, exp, order[i])
		}
	}
}

func TestChain_EmptyChain(t *testing.T) {
	order := []string{}

	chain := NewChain()

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		order = append(order, "handler")
		return types.Ok("result")
	}

	result := chain.Execute(context.Background(), nil, testNode(), handler)

	if !result.Success || result.Data != "result" {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(order) != 1 || order[0] != "handler" {
		t.Errorf("expected [handler], got %v", order)
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	order := []string{}

	chain := NewChain()
	chain.Use(&mockMiddleware{name: "M1", order: &order})
	chain.Use(&mockMiddleware{name: "M2", order: &order, shouldFail: true})
	chain.Use(&mockMiddleware{name: "M3", order: &order})

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		order = append(order, "handler")
		return types.Ok("result")
	}

	result := chain.Execute(context.Background(), nil, testNode(), handler)

	if result.Success {
		t.Fatal("expected failure, got success")
	}
	if result.Err.Message != "M2 failed" {
		t.Errorf("expected 'M2 failed', got %v", result.Err.Message)
	}

	// M2 fails before calling M3 or handler, but M1:post still executes.
	expected := []string{"M1:pre", "M2:pre", "M1:post"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d executions, got %d: %v", len(expected), len(order), order)
	}
	for i, exp := range expected {
		if order[i] != exp {
			t.Errorf("execution %d: expected %s, got %s", i, exp, order[i])
		}
	}
}

func TestChain_HandlerError(t *testing.T) {
	order := []string{}

	chain := NewChain()
	chain.Use(&mockMiddleware{name: "M1", order: &order})
	chain.Use(&mockMiddleware{name: "M2", order: &order})

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		order = append(order, "handler")
		return types.Fail(types.ErrorKindExecution, "handler failed", nil)
	}

	result := chain.Execute(context.Background(), nil, testNode(), handler)

	if result.Success {
		t.Fatal("expected failure, got success")
	}
	if result.Err.Message != "handler failed" {
		t.Errorf("expected 'handler failed', got %v", result.Err.Message)
	}

	// Middleware still run post-processing even on handler failure.
	expected := []string{"M1:pre", "M2:pre", "handler", "M2:post", "M1:post"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d executions, got %d: %v", len(expected), len(order), order)
	}
}

func TestChain_Len(t *testing.T) {
	chain := NewChain()

	if chain.Len() != 0 {
		t.Errorf("expected length 0, got %d", chain.Len())
	}

	chain.Use(&mockMiddleware{name: "M1", order: &[]string{}})
	if chain.Len() != 1 {
		t.Errorf("expected length 1, got %d", chain.Len())
	}

	chain.Use(&mockMiddleware{name: "M2", order: &[]string{}})
	chain.Use(&mockMiddleware{name: "M3", order: &[]string{}})
	if chain.Len() != 3 {
		t.Errorf("expected length 3, got %d", chain.Len())
	}
}

func TestChain_Middlewares(t *testing.T) {
	chain := NewChain()

	m1 := &mockMiddleware{name: "M1", order: &[]string{}}
	m2 := &mockMiddleware{name: "M2", order: &[]string{}}

	chain.Use(m1).Use(m2)

	middlewares := chain.Middlewares()
	if len(middlewares) != 2 {
		t.Fatalf("expected 2 middleware, got %d", len(middlewares))
	}
	if middlewares[0].Name() != "M1" {
		t.Errorf("expected M1, got %s", middlewares[0].Name())
	}
	if middlewares[1].Name() != "M2" {
		t.Errorf("expected M2, got %s", middlewares[1].Name())
	}
}

// shortCircuitMiddleware demonstrates middleware that short-circuits execution.
type shortCircuitMiddleware struct {
	returnValue interface{}
}

func (m *shortCircuitMiddleware) Process(ctx context.Context, ec executor.ExecutionContext, node types.Node, next Handler) types.NodeResult {
	return types.Ok(m.returnValue)
}

func (m *shortCircuitMiddleware) Name() string {
	return "ShortCircuit"
}

func TestChain_ShortCircuit(t *testing.T) {
	order := []string{}

	chain := NewChain()
	chain.Use(&mockMiddleware{name: "M1", order: &order})
	chain.Use(&shortCircuitMiddleware{returnValue: "cached"})
	chain.Use(&mockMiddleware{name: "M3", order: &order})

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		order = append(order, "handler")
		return types.Ok("fresh")
	}

	result := chain.Execute(context.Background(), nil, testNode(), handler)

	if !result.Success {
		t.Fatalf("unexpected failure: %v", result.Err)
	}
	if result.Data != "cached" {
		t.Errorf("expected 'cached', got %v", result.Data)
	}

	expected := []string{"M1:pre", "M1:post"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d executions, got %d: %v", len(expected), len(order), order)
	}
}

// modifyingMiddleware modifies the result.
type modifyingMiddleware struct {
	prefix string
}

func (m *modifyingMiddleware) Process(ctx context.Context, ec executor.ExecutionContext, node types.Node, next Handler) types.NodeResult {
	result := next(ctx, ec, node)
	if !result.Success {
		return result
	}

	if str, ok := result.Data.(string); ok {
		return types.Ok(m.prefix + str)
	}
	return result
}

func (m *modifyingMiddleware) Name() string {
	return "Modifying"
}

func TestChain_ResultModification(t *testing.T) {
	chain := NewChain()
	chain.Use(&modifyingMiddleware{prefix: "A:"})
	chain.Use(&modifyingMiddleware{prefix: "B:"})

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		return types.Ok("result")
	}

	result := chain.Execute(context.Background(), nil, testNode(), handler)

	if !result.Success {
		t.Fatalf("unexpected failure: %v", result.Err)
	}

	// Post-processing runs in reverse: B wraps the handler's output, then A wraps B's.
	expected := "A:B:result"
	if result.Data != expected {
		t.Errorf("expected %s, got %v", expected, result.Data)
	}
}

func BenchmarkChain_NoMiddleware(b *testing.B) {
	chain := NewChain()

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		return types.Ok("result")
	}

	node := testNode()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		chain.Execute(context.Background(), nil, node, handler)
	}
}

func BenchmarkChain_SingleMiddleware(b *testing.B) {
	order := []string{}
	chain := NewChain()
	chain.Use(&mockMiddleware{name: "M1", order: &order})

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		return types.Ok("result")
	}

	node := testNode()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		chain.Execute(context.Background(), nil, node, handler)
	}
}

func BenchmarkChain_FiveMiddleware(b *testing.B) {
	order := []string{}
	chain := NewChain()
	for i := 0; i < 5; i++ {
		chain.Use(&mockMiddleware{name: fmt.Sprintf("M%d", i), order: &order})
	}

	handler := func(ctx context.Context, ec executor.ExecutionContext, node types.Node) types.NodeResult {
		return types.Ok("result")
	}

	node := testNode()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		chain.Execute(context.Background(), nil, node, handler)
	}
}
