package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/eventwire/pkg/dom"
)

const signup = `<body><form id="f">
	<input id="name" name="name" value="">
	<input id="email" name="email" value="not-an-email">
	<input id="age" name="age" value="12">
</form></body>`

func TestValidateFirstFailureOnly(t *testing.T) {
	doc := dom.MustParse(signup)
	req := NewFormRequest(doc, nil, "#f", Spec{
		Rules: Ruleset{"name": ParseRules("required|string")},
	})

	errs := req.Validate()
	assert.Equal(t, Errors{"name": "name is required"}, errs)
	assert.Equal(t, errs, req.Errors())
}

func TestValidateBuiltins(t *testing.T) {
	tests := []struct {
		name  string
		rules string
		value any
		set   bool
		want  string
	}{
		{"required missing", "required", nil, false, "f is required"},
		{"required blank", "required", "   ", true, "f is required"},
		{"required ok", "required", "x", true, ""},
		{"string absent", "string", nil, false, ""},
		{"string nested", "string", map[string]any{"a": "b"}, true, "f must be a string"},
		{"email blank", "email", "", true, ""},
		{"email bad", "email", "nope", true, "f must be a valid email"},
		{"email ok", "email", "a@b.co", true, ""},
		{"numeric bad", "numeric", "1x", true, "f must be a number"},
		{"numeric ok", "numeric", "1.5", true, ""},
		{"min short", "min:3", "ab", true, "f must be at least 3 characters"},
		{"max long", "max:2", "abc", true, "f must be at most 2 characters"},
		{"alpha_num bad", "alpha_num", "a-b", true, "f may only contain letters and numbers"},
		{"unknown ignored", "frobnicate", "x", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := dom.MustParse(`<p id="p"></p>`)
			req := NewFormRequest(doc, nil, "#p", Spec{Rules: Ruleset{"f": ParseRules(tt.rules)}})
			req.Data = map[string]any{}
			if tt.set {
				req.Data["f"] = tt.value
			}

			errs := req.Validate()
			if tt.want == "" {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.want, errs["f"])
		})
	}
}

func TestValidateCustomMessages(t *testing.T) {
	doc := dom.MustParse(signup)
	req := NewFormRequest(doc, nil, "#f", Spec{
		Rules: Ruleset{
			"name":  ParseRules("required"),
			"email": ParseRules("email"),
			"age":   ParseRules("min:3"),
		},
		Messages: map[string]string{
			"name.required": "Please enter a name",
			"age.min":       "Too short",
		},
	})

	errs := req.Validate()
	assert.Equal(t, Errors{
		"name":  "Please enter a name",
		"email": "email must be a valid email",
		"age":   "Too short",
	}, errs)
}

func TestValidateUnauthorized(t *testing.T) {
	doc := dom.MustParse(signup)
	calls := 0
	req := NewFormRequest(doc, nil, "#f", Spec{
		Authorize: func(*FormRequest) Authorization {
			calls++
			return Deny("")
		},
		Rules: Ruleset{"name": ParseRules("required")},
	})

	errs := req.Validate()
	assert.Equal(t, Errors{AuthorizeKey: UnauthorizedMessage}, errs)
	assert.Equal(t, 1, calls)
	assert.Nil(t, doc.Query(".error-message"), "rejected requests do not mark controls")
	assert.Equal(t, "Unauthorized", req.Authorize().Reason())
}

func TestValidateRecollects(t *testing.T) {
	doc := dom.MustParse(signup)
	req := NewFormRequest(doc, nil, "#f", Spec{Rules: Ruleset{"name": ParseRules("required")}})
	assert.Equal(t, "", req.Get("name"))

	doc.Query("#name").SetValue("Ada")
	assert.Empty(t, req.Validate())
	assert.Equal(t, "Ada", req.Get("name"))
}

func TestValidateMarksControls(t *testing.T) {
	doc := dom.MustParse(signup)
	req := NewFormRequest(doc, nil, "#f", Spec{
		Rules: Ruleset{"name": ParseRules("required"), "email": ParseRules("email")},
	})

	req.Validate()

	name := doc.Query("#name")
	assert.True(t, name.HasClass(InvalidClass))
	msg := name.NextElementSibling()
	require.NotNil(t, msg)
	assert.True(t, msg.HasClass(MessageClass))
	assert.Equal(t, "name is required", msg.Text())
	assert.Equal(t, "color: red; font-size: 12px; margin-top: 5px;", msg.Attr("style"))

	age := doc.Query("#age")
	assert.False(t, age.HasClass(InvalidClass))
	assert.Equal(t, "", age.NextElementSibling().Text())

	// Fix the inputs and validate again: messages are reused, not duplicated.
	name.SetValue("Ada")
	doc.Query("#email").SetValue("ada@example.com")
	assert.Empty(t, req.Validate())
	assert.False(t, name.HasClass(InvalidClass))
	assert.Len(t, doc.QueryAll(".error-message"), 3)
	assert.Equal(t, "", name.NextElementSibling().Text())
}

func TestRegisterRule(t *testing.T) {
	RegisterRule("even_length", func(value any, present bool, _ string) bool {
		return !present || len(toString(value))%2 == 0
	})

	doc := dom.MustParse(`<form id="f"><input name="code" value="abc"></form>`)
	req := NewFormRequest(doc, nil, "#f", Spec{
		Rules:    Ruleset{"code": {"even_length"}},
		Messages: map[string]string{"code.even_length": "Code must have even length"},
	})
	assert.Equal(t, Errors{"code": "Code must have even length"}, req.Validate())
}

func TestFieldAccessor(t *testing.T) {
	doc := dom.MustParse(signup)
	req := NewFormRequest(doc, nil, "#f", Spec{})

	v, ok := req.Field("email")
	assert.True(t, ok)
	assert.Equal(t, "not-an-email", v)

	v, ok = req.Field("selector")
	assert.True(t, ok)
	assert.Equal(t, "#f", v)

	v, ok = req.Field("errors")
	assert.True(t, ok)
	assert.Equal(t, Errors{}, v)

	_, ok = req.Field("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"age", "email", "errors", "id", "name", "selector"}, req.Keys())
}

func TestParseRules(t *testing.T) {
	assert.Equal(t, []string{"required", "min:3"}, ParseRules(" required | min:3 |"))
	assert.Nil(t, ParseRules(""))
	assert.Equal(t, []string{"a", "b"}, Ruleset{"b": nil, "a": nil}.Fields())
}
