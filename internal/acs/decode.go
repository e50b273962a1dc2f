package acs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/census-cli/internal/census"
)

// DecodeExtract reads the provider's table format: a JSON array of rows,
// header first. Cells may be strings, numbers or null; null becomes the
// empty string so the ingestor reads it as absent.
func DecodeExtract(r io.Reader, nameCode string) (census.Extract, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return census.Extract{}, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return census.Extract{}, fmt.Errorf("%w: empty body", ErrMalformedTable)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return census.Extract{}, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	if len(raw) == 0 {
		return census.Extract{}, fmt.Errorf("%w: no header row", ErrMalformedTable)
	}
	header := make([]string, len(raw[0]))
	hasName := false
	for i, v := range raw[0] {
		s, ok := v.(string)
		if !ok {
			return census.Extract{}, fmt.Errorf("%w: header cell %d is not a string", ErrMalformedTable, i)
		}
		header[i] = strings.TrimSpace(s)
		if header[i] == nameCode {
			hasName = true
		}
	}
	if !hasName {
		return census.Extract{}, fmt.Errorf("%w: missing %s column", ErrMalformedTable, nameCode)
	}
	rows := make([][]string, 0, len(raw)-1)
	for _, r := range raw[1:] {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = cellString(v)
		}
		rows = append(rows, row)
	}
	return census.Extract{Columns: header, Rows: rows}, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}
