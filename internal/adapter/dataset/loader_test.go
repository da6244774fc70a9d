package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_JSONArray(t *testing.T) {
	path := writeFile(t, "ipc.json", `[
		{"content": "Section 302 text", "metadata": {"source": "ipc", "section": "Section 302", "act_name": "Indian Penal Code", "index": 12}},
		{"content": "", "metadata": {"source": "ipc"}},
		{"content": "Section 420 text", "metadata": {"section": null}}
	]`)

	records, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records (empty content skipped), got %d", len(records))
	}

	first := records[0]
	if first.Metadata.Source != "ipc" {
		t.Errorf("expected source ipc, got %q", first.Metadata.Source)
	}
	if first.Metadata.Section != "Section 302" {
		t.Errorf("expected section, got %q", first.Metadata.Section)
	}
	if first.Metadata.ActType != "Indian Penal Code" {
		t.Errorf("act_name should map to ActType, got %q", first.Metadata.ActType)
	}
	if first.Metadata.Extra["index"] != "12" {
		t.Errorf("unknown metadata should land in Extra, got %v", first.Metadata.Extra)
	}

	second := records[1]
	if second.Metadata.Source != "unknown" {
		t.Errorf("missing source should default to unknown, got %q", second.Metadata.Source)
	}
	if second.Metadata.Section != "" {
		t.Errorf("null section should become empty, got %q", second.Metadata.Section)
	}
}

func TestLoadFile_JSONL(t *testing.T) {
	path := writeFile(t, "laws.jsonl", `{"content": "first law", "metadata": {"source": "a"}}

{"content": "second law", "metadata": {"source": "b"}}
`)

	records, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].Content != "second law" {
		t.Errorf("unexpected content: %q", records[1].Content)
	}
}

func TestLoadFile_MalformedLine(t *testing.T) {
	path := writeFile(t, "bad.jsonl", `{"content": "fine", "metadata": {}}
{broken`)

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "doc.csv", "a,b,c")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for unsupported file type")
	}
}
