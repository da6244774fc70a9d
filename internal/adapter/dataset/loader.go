package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lawrag/internal/domain"
)

// rawRecord is the on-disk shape: the well-known metadata fields plus
// anything else the loader that produced the file chose to attach.
type rawRecord struct {
	Content  string                     `json:"content"`
	Metadata map[string]json.RawMessage `json:"metadata"`
}

// LoadFile parses a dataset file of pre-chunked (content, metadata)
// records. ".jsonl" files hold one JSON object per line; ".json" files
// hold a JSON array. Records with empty content are skipped.
func LoadFile(path string) ([]domain.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return parseLines(data)
	case ".json":
		return parseArray(data)
	default:
		return nil, fmt.Errorf("unsupported dataset file type: %s", path)
	}
}

func parseArray(data []byte) ([]domain.Record, error) {
	var raws []rawRecord
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse dataset array: %w", err)
	}
	return convert(raws)
}

func parseLines(data []byte) ([]domain.Record, error) {
	var raws []rawRecord

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var raw rawRecord
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("parse dataset line %d: %w", lineNo, err)
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return convert(raws)
}

func convert(raws []rawRecord) ([]domain.Record, error) {
	records := make([]domain.Record, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw.Content) == "" {
			continue
		}
		records = append(records, domain.Record{
			Content:  raw.Content,
			Metadata: parseMetadata(raw.Metadata),
		})
	}
	return records, nil
}

// parseMetadata lifts the well-known fields out of the metadata map;
// everything else lands in Extra as a string.
func parseMetadata(m map[string]json.RawMessage) domain.Metadata {
	meta := domain.Metadata{}

	for key, val := range m {
		s := decodeString(val)
		switch key {
		case "source":
			meta.Source = s
		case "section":
			meta.Section = s
		case "title":
			meta.Title = s
		case "act_type", "act_name":
			meta.ActType = s
		default:
			if s == "" {
				continue
			}
			if meta.Extra == nil {
				meta.Extra = make(map[string]string)
			}
			meta.Extra[key] = s
		}
	}

	if meta.Source == "" {
		meta.Source = "unknown"
	}
	return meta
}

// decodeString renders a metadata value as a string. JSON strings are
// unquoted; null becomes empty; other scalars keep their literal form.
func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
