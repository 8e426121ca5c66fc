package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type testRecord struct {
	Name  string  `json:"name" yaml:"name"`
	Price float64 `json:"price" yaml:"price"`
}

func TestNewWriter_UnknownFormat(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, Format("xml")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWriter_EmptyFormatDefaultsToJSON(t *testing.T) {
	w, err := NewWriter(&bytes.Buffer{}, "")
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	if _, ok := w.(*JSONWriter); !ok {
		t.Errorf("got %T, want *JSONWriter", w)
	}
}

func TestJSONWriter_SingleItemNotWrappedInArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf)

	if err := w.Write(testRecord{Name: "Widget", Price: 299000}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var got testRecord
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a bare object: %v", err)
	}
	if got.Price != 299000 {
		t.Errorf("Price = %v", got.Price)
	}
}

func TestJSONWriter_MultipleItemsBecomeArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf)

	_ = w.Write(testRecord{Name: "A"})
	_ = w.Write(testRecord{Name: "B"})
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var got []testRecord
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not an array: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestJSONLWriter_OneLinePerItem(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)

	_ = w.Write(testRecord{Name: "A"})
	_ = w.Write(testRecord{Name: "B"})
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	for _, line := range lines {
		var got testRecord
		if err := json.Unmarshal([]byte(line), &got); err != nil {
			t.Errorf("line %q is not valid JSON: %v", line, err)
		}
	}
}

func TestYAMLWriter_RoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)

	_ = w.Write(testRecord{Name: "Widget", Price: 100})
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var got testRecord
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if got.Name != "Widget" || got.Price != 100 {
		t.Errorf("got %+v", got)
	}
}
