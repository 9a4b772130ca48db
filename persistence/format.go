package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/facet"
)

const (
	// Extension is the file extension of persisted facets.
	Extension = ".facet"

	delimiter = "|"
)

// Newline is the line terminator Encode writes.
var Newline = platformNewline()

func platformNewline() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// FileName returns the file name a facet is persisted under.
func FileName(uniqueName string) string {
	return uniqueName + Extension
}

// Encode writes f in the facet file format.
// Raw values containing a line break are rejected with *facet.ArgumentError.
func Encode(w io.Writer, f *facet.Facet, c docset.Compression) error {
	if f == nil {
		return &facet.ArgumentError{Name: "facet", Reason: "nil facet"}
	}
	if err := f.Definition().Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	header := strings.Join([]string{f.UniqueName, f.Field, f.DisplayName}, delimiter)
	if _, err := bw.WriteString(header + Newline); err != nil {
		return err
	}

	for _, v := range f.Values {
		if strings.ContainsAny(v.Raw, "\r\n") {
			return &facet.ArgumentError{
				Name:   "value",
				Reason: fmt.Sprintf("facet %q value %q contains a line break", f.UniqueName, v.Raw),
			}
		}

		text, err := v.Docs.EncodeBase64(c)
		if err != nil {
			return fmt.Errorf("encode value %q: %w", v.Raw, err)
		}

		if _, err := bw.WriteString(v.Raw + delimiter + text + Newline); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Decode reads a facet written by Encode.
// Malformed input fails with *facet.CorruptFacetError; Path is left empty.
func Decode(r io.Reader) (*facet.Facet, error) {
	br := bufio.NewReader(r)

	lineNo := 0
	readLine := func() (string, bool, error) {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", false, err
		}
		if line == "" && err != nil {
			return "", false, nil
		}
		lineNo++
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		return line, true, nil
	}

	header, ok, err := readLine()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &facet.CorruptFacetError{Line: 1, Reason: "missing header"}
	}

	fields := strings.Split(header, delimiter)
	if len(fields) != 3 {
		return nil, &facet.CorruptFacetError{
			Line:   1,
			Reason: fmt.Sprintf("header has %d fields, want 3", len(fields)),
		}
	}
	def := facet.Definition{UniqueName: fields[0], Field: fields[1], DisplayName: fields[2]}
	if err := def.Validate(); err != nil {
		return nil, &facet.CorruptFacetError{Line: 1, Reason: "invalid header", Err: err}
	}

	values := make([]facet.Value, 0)
	seen := make(map[string]struct{})

	for {
		line, ok, err := readLine()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		i := strings.LastIndex(line, delimiter)
		if i < 0 {
			return nil, &facet.CorruptFacetError{Line: lineNo, Reason: "missing value delimiter"}
		}
		raw := line[:i]

		if _, dup := seen[raw]; dup {
			return nil, &facet.CorruptFacetError{Line: lineNo, Reason: fmt.Sprintf("duplicate value %q", raw)}
		}
		seen[raw] = struct{}{}

		set, err := docset.DecodeBase64(line[i+1:])
		if err != nil {
			return nil, &facet.CorruptFacetError{Line: lineNo, Reason: fmt.Sprintf("value %q", raw), Err: err}
		}

		values = append(values, facet.Value{Raw: raw, Docs: set})
	}

	f, err := facet.New(def, values)
	if err != nil {
		return nil, &facet.CorruptFacetError{Reason: "invalid facet", Err: err}
	}
	return f, nil
}
