package manifest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const valuesYAML = `# values for api
replicaCount: 2
image:
  repository: acme/api   # pushed by CI
  tag: main-20240601101500 # managed
  pullPolicy: IfNotPresent
sidecar:
  image:
    tag: "1.4.0"
`

func TestField(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"image.tag", "main-20240601101500"},
		{"image.repository", "acme/api"},
		{"sidecar.image.tag", "1.4.0"},
		{"replicaCount", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := Field([]byte(valuesYAML), tt.key)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Field(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSetField_PreservesLayout(t *testing.T) {
	out, old, err := SetField([]byte(valuesYAML), "image.tag", "dev-foo-20240615120000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if old != "main-20240601101500" {
		t.Errorf("old value = %q", old)
	}

	want := `# values for api
replicaCount: 2
image:
  repository: acme/api   # pushed by CI
  tag: dev-foo-20240615120000 # managed
  pullPolicy: IfNotPresent
sidecar:
  image:
    tag: "1.4.0"
`
	if diff := cmp.Diff(want, string(out)); diff != "" {
		t.Errorf("unexpected document (-want +got):\n%s", diff)
	}
}

func TestSetField_OnlyTouchesTargetPath(t *testing.T) {
	out, _, err := SetField([]byte(valuesYAML), "sidecar.image.tag", "1.5.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tag, err := Field(out, "image.tag")
	if err != nil {
		t.Fatal(err)
	}
	if tag != "main-20240601101500" {
		t.Errorf("image.tag changed to %q", tag)
	}
	sidecar, _ := Field(out, "sidecar.image.tag")
	if sidecar != "1.5.0" {
		t.Errorf("sidecar.image.tag = %q", sidecar)
	}
}

func TestSetField_QuotingStyles(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		key   string
		value string
		want  string
	}{
		{"double", "appVersion: \"2024.06.3\"\n", "appVersion", "2024.06.4", "appVersion: \"2024.06.4\"\n"},
		{"single", "appVersion: '2024.06.3'\n", "appVersion", "2024.06.4", "appVersion: '2024.06.4'\n"},
		{"plain", "appVersion: 2024.06.3\n", "appVersion", "2024.06.4", "appVersion: 2024.06.4\n"},
		{"plain needing quotes", "tag: old\n", "tag", "1234", "tag: \"1234\"\n"},
		{"crlf", "appVersion: 2024.05.9\r\nname: api\r\n", "appVersion", "2024.06.0", "appVersion: 2024.06.0\r\nname: api\r\n"},
		{"escaped double", "tag: \"a\\\"b\"\n", "tag", "c", "tag: \"c\"\n"},
		{"doubled single quote", "tag: 'it''s'\n", "tag", "ok", "tag: 'ok'\n"},
		{"flow mapping", "image: {tag: v1, pullPolicy: Always}\n", "image.tag", "v2", "image: {tag: v2, pullPolicy: Always}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := SetField([]byte(tt.doc), tt.key, tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("got %q, want %q", out, tt.want)
			}
		})
	}
}

func TestSetField_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		key     string
		wantErr error
	}{
		{"missing key", "image:\n  repository: x\n", "image.tag", ErrFieldNotFound},
		{"empty document", "", "image.tag", ErrFieldNotFound},
		{"parent not mapping", "image: x\n", "image.tag", ErrFieldNotFound},
		{"mapping value", "image:\n  tag:\n    a: b\n", "image.tag", ErrUnsupportedValue},
		{"empty value", "image:\n  tag:\n", "image.tag", ErrUnsupportedValue},
		{"block scalar", "appVersion: |\n  2024.06.1\n", "appVersion", ErrUnsupportedValue},
		{"multi-line plain", "appVersion: 2024\n  .06.1\n", "appVersion", ErrUnsupportedValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := SetField([]byte(tt.doc), tt.key, "new")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
