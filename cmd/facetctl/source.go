package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/facetgo/lexical"
)

const maxLineSize = 16 << 20

// sourceDocument is one line of a JSON-lines source file.
type sourceDocument struct {
	ID     string                 `json:"id"`
	Text   string                 `json:"text"`
	Fields map[string]fieldValues `json:"fields"`
}

// fieldValues accepts a single string or a list of strings.
type fieldValues []string

func (v *fieldValues) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*v = fieldValues{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("field values must be a string or a list of strings")
	}
	*v = many
	return nil
}

func readDocumentsFile(ctx context.Context, path string) ([]lexical.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := readDocuments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return docs, nil
}

// readDocuments decodes JSON-lines documents. Blank lines are skipped.
func readDocuments(ctx context.Context, r io.Reader) ([]lexical.Document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var docs []lexical.Document
	line := 0
	for sc.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var sd sourceDocument
		if err := json.Unmarshal(raw, &sd); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		doc := lexical.Document{ID: sd.ID, Text: sd.Text}
		if len(sd.Fields) > 0 {
			doc.Fields = make(map[string][]string, len(sd.Fields))
			for k, v := range sd.Fields {
				doc.Fields[k] = v
			}
		}
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
