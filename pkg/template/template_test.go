package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/relay/pkg/types"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		body string
		vars map[string]string
		want string
	}{
		{
			name: "simple substitution",
			body: "Hello {name}",
			vars: map[string]string{"name": "Ada"},
			want: "Hello Ada",
		},
		{
			name: "multiple placeholders",
			body: "{greeting}, {name}!",
			vars: map[string]string{"greeting": "Hi", "name": "Ada"},
			want: "Hi, Ada!",
		},
		{
			name: "missing binding stays literal",
			body: "Hello {name}, balance {amount}",
			vars: map[string]string{"name": "Ada"},
			want: "Hello Ada, balance {amount}",
		},
		{
			name: "no vars",
			body: "Hello {name}",
			vars: nil,
			want: "Hello {name}",
		},
		{
			name: "unterminated brace stays literal",
			body: "Hello {name",
			vars: map[string]string{"name": "Ada"},
			want: "Hello {name",
		},
		{
			name: "repeated placeholder",
			body: "{x} and {x}",
			vars: map[string]string{"x": "1"},
			want: "1 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.body, tt.vars))
		})
	}
}

func TestRender_VariantSelection(t *testing.T) {
	e := NewEngine()
	e.Register(types.Template{
		ID: "welcome",
		Variants: map[types.TransportKind]string{
			types.TransportChat:  "chat: hi {name}",
			types.TransportEmail: "email: dear {name}",
		},
	})

	vars := map[string]string{"name": "Ada"}

	body, fromTemplate, err := e.Render("welcome", types.TransportChat, vars, "fallback {name}")
	require.NoError(t, err)
	assert.True(t, fromTemplate)
	assert.Equal(t, "chat: hi Ada", body)

	body, fromTemplate, err = e.Render("welcome", types.TransportEmail, vars, "fallback {name}")
	require.NoError(t, err)
	assert.True(t, fromTemplate)
	assert.Equal(t, "email: dear Ada", body)

	// Missing variant falls back to the message content
	body, fromTemplate, err = e.Render("welcome", types.TransportSMS, vars, "fallback {name}")
	require.NoError(t, err)
	assert.False(t, fromTemplate)
	assert.Equal(t, "fallback Ada", body)
}

func TestRender_UnknownTemplate(t *testing.T) {
	e := NewEngine()

	_, _, err := e.Render("nope", types.TransportChat, nil, "fallback")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestRender_EmptyIDUsesFallback(t *testing.T) {
	e := NewEngine()

	body, fromTemplate, err := e.Render("", types.TransportChat, map[string]string{"x": "1"}, "plain {x}")
	require.NoError(t, err)
	assert.False(t, fromTemplate)
	assert.Equal(t, "plain 1", body)
}

func TestRegister_Replaces(t *testing.T) {
	e := NewEngine()
	e.Register(types.Template{ID: "t", Variants: map[types.TransportKind]string{types.TransportChat: "v1"}})
	e.Register(types.Template{ID: "t", Variants: map[types.TransportKind]string{types.TransportChat: "v2"}})

	body, _, err := e.Render("t", types.TransportChat, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "v2", body)
}
