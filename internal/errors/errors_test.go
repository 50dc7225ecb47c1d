package errors

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
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
		{"config error", "J101", "Invalid configuration file", CategoryConfig},
		{"session error", "J201", "Path already in use", CategorySession},
		{"storage error", "J300", "Snapshot store unreachable", CategoryStorage},
		{"unknown code", "J999", "Unknown error", ""},
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

func TestError_Error(t *testing.T) {
	if got := New("J102").Error(); got != "J102: Invalid configuration value" {
		t.Errorf("Error() = %q", got)
	}
	if got := New("J102").WithDetail("address is empty").Error(); got != "J102: Invalid configuration value: address is empty" {
		t.Errorf("Error() with detail = %q", got)
	}
	if got := Newf(CategoryCLI, "bad %s", "flag").Error(); got != "bad flag" {
		t.Errorf("Newf Error() = %q", got)
	}
}

func TestError_WrapAndFromError(t *testing.T) {
	err := New("J100").Wrap(fs.ErrNotExist)
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Error("Wrap should keep errors.Is working")
	}

	if FromError(nil, "J200") != nil {
		t.Error("FromError(nil) should be nil")
	}
	wrapped := FromError(fs.ErrPermission, "J200")
	if wrapped.Code != "J200" || wrapped.Wrapped != fs.ErrPermission {
		t.Errorf("FromError = %+v", wrapped)
	}

	inner := New("J103")
	if got := FromError(stderrors.Join(stderrors.New("outer"), inner), "J200"); got != inner {
		t.Errorf("FromError should return the contained *Error, got %+v", got)
	}
}

func TestWithOffset(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "joint.json")
	data := []byte("{\n  \"address\": \":8000\",\n  \"sessions\": x\n}\n")
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatal(err)
	}

	offset := int64(bytes.IndexByte(data, 'x'))
	err := New("J101").WithOffset(file, data, offset)
	if err.Location == nil || err.Location.Line != 3 || err.Location.Column != 15 {
		t.Fatalf("Location = %+v, want line 3 column 15", err.Location)
	}
	if len(err.Context) != 3 || !strings.Contains(err.Context[1], "sessions") {
		t.Errorf("Context = %q", err.Context)
	}

	if New("J101").WithOffset(file, data, 1000).Location != nil {
		t.Error("an out-of-range offset should leave Location unset")
	}
}

func TestLocation_String(t *testing.T) {
	if got := (&Location{File: "joint.json", Line: 10, Column: 5}).String(); got != "joint.json:10:5" {
		t.Errorf("String() = %q", got)
	}
	if got := (&Location{File: "joint.json", Line: 10}).String(); got != "joint.json:10" {
		t.Errorf("String() = %q", got)
	}
	if got := (*Location)(nil).String(); got != "" {
		t.Errorf("nil String() = %q", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	dir := t.TempDir()
	file := filepath.Join(dir, "joint.json")
	content := "{\n  \"sessions\": [\n    {\"file\": \"art.bin\",},\n  ]\n}\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	err := New("J101").
		WithLocation(file, 3, 23).
		Wrap(stderrors.New("invalid character '}'")).
		WithSuggestion("Remove the trailing comma").
		WithExample(`{"sessions": [{"file": "art.bin"}]}`)

	formatted := err.Format()
	for _, want := range []string{
		"ERROR J101: Invalid configuration file",
		file + ":3:23",
		"→    3 │",
		"invalid character '}'",
		"Hint: Remove the trailing comma",
		"Example:",
	} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Format() missing %q:\n%s", want, formatted)
		}
	}
	if strings.Contains(formatted, "\033[") {
		t.Error("Format() should not contain ANSI codes when colors are disabled")
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("J101").WithLocation("joint.json", 10, 5)
	want := "joint.json:10:5: J101: Invalid configuration file"
	if got := err.FormatCompact(); got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestPrint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Print(&buf, New("J202"))
	if !strings.Contains(buf.String(), "ERROR J202: Could not listen for connections") {
		t.Errorf("Print(*Error) = %q", buf.String())
	}

	buf.Reset()
	Print(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("Print(error) = %q", buf.String())
	}
}

func TestGetTemplate(t *testing.T) {
	template, ok := GetTemplate("J100")
	if !ok || template.Message != "Configuration file not found" {
		t.Errorf("GetTemplate(J100) = %+v, %v", template, ok)
	}
	if _, ok := GetTemplate("J999"); ok {
		t.Error("J999 should not exist")
	}

	codes := GetAllCodes()
	if len(codes) != len(registry) {
		t.Errorf("GetAllCodes() returned %d codes, want %d", len(codes), len(registry))
	}
}

func TestWrapText(t *testing.T) {
	if got := wrapText("short text", 100); len(got) != 1 || got[0] != "short text" {
		t.Errorf("wrapText short text: got %v", got)
	}
	if got := wrapText("this is a longer text that should be wrapped", 20); len(got) != 3 {
		t.Errorf("wrapText long text: expected 3 lines, got %d: %v", len(got), got)
	}
	if got := wrapText("", 10); len(got) != 0 {
		t.Errorf("wrapText empty: expected empty, got %v", got)
	}
}

func TestColorFunctions(t *testing.T) {
	EnableColors()
	if !strings.Contains(red("test"), "\033[31m") {
		t.Error("red should contain ANSI code when colors enabled")
	}
	DisableColors()
	if strings.Contains(red("test"), "\033[") {
		t.Error("red should not contain ANSI code when colors disabled")
	}
	EnableColors()
}
