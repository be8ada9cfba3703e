package device

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTerminalPrompt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"yes word upper", "YES\n", true},
		{"padded", "  y  \r\n", true},
		{"no", "n\n", false},
		{"empty line", "\n", false},
		{"end of input", "", false},
		{"answer without newline", "y", true},
		{"anything else", "sure\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			prompt := NewTerminalPrompt(strings.NewReader(tt.input), &out, "/tmp/contacts.vcf")
			got, err := prompt(context.Background())
			if err != nil {
				t.Fatalf("prompt() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("prompt(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "/tmp/contacts.vcf") || !strings.Contains(out.String(), "[y/N]") {
				t.Errorf("question = %q", out.String())
			}
		})
	}
}

func TestTerminalPrompt_Cancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewTerminalPrompt(r, io.Discard, "contacts.vcf")(ctx)
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestTerminalPrompt_PersistsDecision(t *testing.T) {
	ctx := context.Background()
	perms := newPerms(t)
	if err := perms.SetPermission(ctx, PermissionDenied); err != nil {
		t.Fatal(err)
	}

	// An explicit answer overrides a stored denial
	d := NewVCardDirectory("", perms, NewTerminalPrompt(strings.NewReader("y\n"), io.Discard, "contacts.vcf"), nil)
	ok, err := d.RequestPermission(ctx)
	if err != nil || !ok {
		t.Fatalf("RequestPermission() = %v, %v; want true", ok, err)
	}
	if state, _ := perms.Permission(ctx); state != PermissionGranted {
		t.Errorf("state = %q, want granted", state)
	}
}
