package codegen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
)

// scriptedProvider answers calls from a queue, or with a per-call function.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
	fn      func(ctx context.Context, user string) (string, error)
}

type reply struct {
	out string
	err error
}

func (p *scriptedProvider) Complete(ctx context.Context, system, user string) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, user)
	if p.fn != nil {
		p.mu.Unlock()
		return p.fn(ctx, user)
	}
	defer p.mu.Unlock()
	if len(p.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return r.out, r.err
}

const todoListReply = "Here you go:\n```json\n" + `{
  "files": [{"path": "src/components/TodoList/TodoList.tsx", "content": "export function TodoList() { return null }", "type": "component"}],
  "tests": [{"path": "src/components/TodoList/TodoList.test.tsx", "content": "test('renders', () => {})"}]
}` + "\n```"

func TestGenerateComponent(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: todoListReply}}}
	g := NewGenerator(p, Config{})

	code, err := g.GenerateComponent(context.Background(), ComponentSpec{Name: "todo list"}, Options{})
	require.NoError(t, err)
	require.Len(t, code.Files, 1)
	assert.Equal(t, "src/components/TodoList/TodoList.tsx", code.Files[0].Path)
	require.Len(t, code.Tests, 1)
	assert.Equal(t, "test", code.Tests[0].Type)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "COMPONENT: TodoList")
	assert.Contains(t, p.prompts[0], "using vitest")
}

func TestGenerateComponent_WithoutTests(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: todoListReply}}}
	g := NewGenerator(p, Config{})
	no := false

	code, err := g.GenerateComponent(context.Background(), ComponentSpec{Name: "TodoList"}, Options{IncludeTests: &no})
	require.NoError(t, err)
	assert.Empty(t, code.Tests)
	assert.Contains(t, p.prompts[0], `Leave "tests" empty.`)
}

func TestGenerateComponent_InvalidSpec(t *testing.T) {
	p := &scriptedProvider{}
	g := NewGenerator(p, Config{})

	_, err := g.GenerateComponent(context.Background(), ComponentSpec{Name: "  "}, Options{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, p.prompts, "provider must not be called for an invalid spec")
}

func TestGenerateAPI(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: `{"files":[{"path":"src/api/todos.post.ts","content":"export {}"}],"tests":[]}`}}}
	g := NewGenerator(p, Config{})

	code, err := g.GenerateAPI(context.Background(), APISpec{Method: "post", Path: "/api/todos"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "api", code.Files[0].Type)
	assert.Contains(t, p.prompts[0], "ENDPOINT: POST /api/todos")
	assert.Contains(t, p.prompts[0], "src/api/todos.post.ts")

	_, err = g.GenerateAPI(context.Background(), APISpec{Method: "TRACE", Path: "/api/todos"}, Options{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestGenerateMigration(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: `{"id":"Add Todo Tags","up":"CREATE TABLE todo_tags (id TEXT)","down":"DROP TABLE todo_tags"}`}}}
	g := NewGenerator(p, Config{})

	m, err := g.GenerateMigration(context.Background(), "add a tags table", Options{SQLDialect: "sqlite"})
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{8}_add_todo_tags$`, m.ID)
	assert.Equal(t, "DROP TABLE todo_tags", m.Down)
	assert.Contains(t, p.prompts[0], "Write a sqlite schema migration.")
}

func TestGenerate_ProviderErrorIsGenerationError(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{err: errors.New("invalid api key")}}}
	g := NewGenerator(p, Config{})

	_, err := g.GenerateComponent(context.Background(), ComponentSpec{Name: "TodoList"}, Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindGeneration, apperr.KindOf(err))

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "component TodoList", genErr.Item)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestGenerate_InvalidResponseNotRetriedByDefault(t *testing.T) {
	p := &scriptedProvider{replies: []reply{{out: `{"files": []}`}, {out: todoListReply}}}
	g := NewGenerator(p, Config{})

	_, err := g.GenerateComponent(context.Background(), ComponentSpec{Name: "TodoList"}, Options{})
	assert.Equal(t, apperr.KindGeneration, apperr.KindOf(err))
	assert.Len(t, p.prompts, 1)
}

func TestGenerate_RetriesWithFeedback(t *testing.T) {
	p := &scriptedProvider{replies: []reply{
		{err: errors.New("429 too many requests")},
		{out: "not json at all"},
		{out: todoListReply},
	}}
	g := NewGenerator(p, Config{MaxAttempts: 3})

	code, err := g.GenerateComponent(context.Background(), ComponentSpec{Name: "TodoList"}, Options{})
	require.NoError(t, err)
	assert.Len(t, code.Files, 1)
	require.Len(t, p.prompts, 3)
	assert.NotContains(t, p.prompts[1], "PREVIOUS ATTEMPT FAILED")
	assert.Contains(t, p.prompts[2], "PREVIOUS ATTEMPT FAILED")
}

func TestGenerate_TimeoutKind(t *testing.T) {
	p := &scriptedProvider{fn: func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", errors.New("request aborted")
	}}
	g := NewGenerator(p, Config{Timeout: 20 * time.Millisecond})

	_, err := g.GenerateComponent(context.Background(), ComponentSpec{Name: "TodoList"}, Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateBatch_BestEffort(t *testing.T) {
	p := &scriptedProvider{fn: func(_ context.Context, user string) (string, error) {
		if strings.Contains(user, "COMPONENT: Broken") {
			return "", errors.New("model refused")
		}
		return todoListReply, nil
	}}
	g := NewGenerator(p, Config{})

	results := g.GenerateBatch(context.Background(), Request{
		Components: []ComponentSpec{{Name: "TodoList"}, {Name: "Broken"}},
		Endpoints:  []APISpec{{Method: "GET", Path: "/api/todos"}},
	})
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.Equal(t, ItemComponent, results[0].Kind)
	assert.False(t, results[1].OK())
	assert.Equal(t, "Broken", results[1].Name)
	assert.True(t, results[2].OK())
	assert.Equal(t, ItemAPI, results[2].Kind)
	assert.Equal(t, "GET /api/todos", results[2].Name)

	merged := Succeeded(results)
	assert.Len(t, merged.Files, 2)
	assert.Len(t, merged.Tests, 2)
}

func TestItemResult_MarshalJSON(t *testing.T) {
	b, err := ItemResult{Kind: ItemMigration, Name: "tags", Err: errors.New("boom")}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"migration","name":"tags","success":false,"error":"boom"}`, string(b))
}
