package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "route not found",
			code:    "E240",
			wantMsg: "Route not found",
			wantCat: CategoryRoute,
		},
		{
			name:    "transport",
			code:    "E260",
			wantMsg: "Failed to send request",
			wantCat: CategoryTransport,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestWireErrorIsAndUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("dispatch: %w", New("E260").Wrap(cause))

	if !stderrors.Is(err, New("E260")) {
		t.Error("expected errors.Is to match on code")
	}
	if stderrors.Is(err, New("E240")) {
		t.Error("expected errors.Is to reject a different code")
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable")
	}
	if got := CodeOf(err); got != "E260" {
		t.Errorf("CodeOf = %q, want E260", got)
	}
	if got := CategoryOf(err); got != CategoryTransport {
		t.Errorf("CategoryOf = %q, want %q", got, CategoryTransport)
	}
}

func TestErrorString(t *testing.T) {
	err := New("E240").WithDetail("GET /users/1")
	if got, want := err.Error(), "E240: Route not found (GET /users/1)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E280") != nil {
		t.Fatal("FromError(nil) should be nil")
	}
	orig := New("E240")
	if FromError(fmt.Errorf("x: %w", orig), "E280") != orig {
		t.Error("FromError should return the existing WireError")
	}
	wrapped := FromError(stderrors.New("boom"), "E280")
	if wrapped.Code != "E280" || wrapped.Wrapped == nil {
		t.Errorf("unexpected wrap: %+v", wrapped)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E240").
		WithDetail("POST /save").
		WithSuggestion("Register the route").
		Wrap(stderrors.New("missing"))
	out := err.Format()

	for _, want := range []string{"ERROR E240: Route not found", "POST /save", "Cause: missing", "Hint: Register the route", docBase + "E240"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(New("E261").WithDetail("500 Internal Server Error"))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["code"] != "E261" || got["category"] != string(CategoryTransport) {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "ERROR: plain") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if len(lines) < 2 {
		t.Errorf("expected wrapping, got %v", lines)
	}
}

func TestAllCodesRegistered(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("code %s has incomplete template", code)
		}
	}
}
