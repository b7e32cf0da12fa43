package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vesaa/lansite/internal/models"
)

// orderedSites marshals as a JSON object whose keys follow slice order.
type orderedSites []models.Entry

func (o orderedSites) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(e.Name)
		if err != nil {
			return nil, err
		}
		val, err := marshalNoEscape(e.Site)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeRegistry renders the sites.json document: two-space indent, markup left unescaped.
func encodeRegistry(entries []models.Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(orderedSites(entries)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeRegistry parses a sites.json document, keeping the key order of the file.
// A repeated key keeps its first position and its last value.
func decodeRegistry(r io.Reader) ([]models.Entry, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var entries []models.Entry
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", tok)
		}
		var site models.Site
		if err := dec.Decode(&site); err != nil {
			return nil, fmt.Errorf("decode site %q: %w", name, err)
		}
		if i, seen := index[name]; seen {
			entries[i].Site = site
			continue
		}
		index[name] = len(entries)
		entries = append(entries, models.Entry{Name: name, Site: site})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read closing token: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after registry object")
	}
	return entries, nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
