package codegen

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
		files   int
	}{
		{"bare object", `{"files":[{"path":"a.ts","content":"x"}]}`, false, 1},
		{"fenced", "```json\n{\"files\":[{\"path\":\"a.ts\",\"content\":\"x\"}]}\n```", false, 1},
		{"prose around fence", "Sure!\n```\n{\"files\":[]}\n```\nEnjoy.", false, 0},
		{"trailing prose", `{"files":[]} hope this helps`, false, 0},
		{"raw newline in content", "{\"files\":[{\"path\":\"a.ts\",\"content\":\"line1\nline2\"}]}", false, 1},
		{"no object", "I cannot do that", true, 0},
		{"empty", "  ", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON[codeResponse](tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got.Files, tt.files)
		})
	}
}

func TestComponentName(t *testing.T) {
	assert.Equal(t, "TodoList", ComponentName("todo list"))
	assert.Equal(t, "TodoList", ComponentName("todo-list"))
	assert.Equal(t, "DueDatePicker", ComponentName("DueDate picker"))
	assert.Equal(t, "todos-id-tags", routeSlug("/api/todos/{id}/tags"))
	assert.Equal(t, "root", routeSlug("/api"))
}

type fakeChatModel struct {
	got []*schema.Message
}

var _ model.BaseChatModel = (*fakeChatModel)(nil)

func (f *fakeChatModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = in
	return schema.AssistantMessage(`{"files":[]}`, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func TestEinoProvider(t *testing.T) {
	m := &fakeChatModel{}
	out, err := NewEinoProvider(m).Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"files":[]}`, out)
	require.Len(t, m.got, 2)
	assert.Equal(t, schema.System, m.got[0].Role)
	assert.Equal(t, "user", m.got[1].Content)
}
