package census

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Num is a nullable finite number.
type Num struct {
	Value float64
	Valid bool
}

// Null is the absent value.
var Null = Num{}

// Some wraps v. Non-finite values are treated as absent.
func Some(v float64) Num {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}
	return Num{Value: v, Valid: true}
}

// Or returns the value, or def when absent.
func (n Num) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}

func (n Num) String() string {
	if !n.Valid {
		return "null"
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Num) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*n = Null
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Some(v)
	return nil
}

// ParseNum converts a raw cell. Anything that does not parse to a finite
// number, including the empty string, is absent.
func ParseNum(s string) Num {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Null
	}
	return Some(v)
}

// Record is one region's merged state.
type Record struct {
	Name   string
	values [numFields]Num
}

// NewRecord returns a record with every field absent.
func NewRecord(name string) Record { return Record{Name: name} }

// Get returns the value of f.
func (r Record) Get(f Field) Num {
	if f < 0 || f >= numFields {
		return Null
	}
	return r.values[f]
}

// Set assigns the value of f.
func (r *Record) Set(f Field, v Num) {
	if f < 0 || f >= numFields {
		return
	}
	r.values[f] = v
}

// MarshalJSON writes the name then every field in declaration order.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	name, err := json.Marshal(r.Name)
	if err != nil {
		return nil, err
	}
	b.WriteString(`{"` + NameField + `":`)
	b.Write(name)
	for f := Field(0); f < numFields; f++ {
		v, err := r.values[f].MarshalJSON()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, ",%q:", f.String())
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Record{}
	for k, v := range raw {
		if k == NameField {
			if err := json.Unmarshal(v, &r.Name); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			continue
		}
		f, ok := FieldByName(k)
		if !ok {
			continue
		}
		var n Num
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		r.values[f] = n
	}
	return nil
}

// Dataset is the national row followed by the selected regions.
type Dataset struct {
	Rows []Record
}

// National returns the first row.
func (d Dataset) National() (Record, bool) {
	if len(d.Rows) == 0 {
		return Record{}, false
	}
	return d.Rows[0], true
}

// Regions returns the selected regions without the national row.
func (d Dataset) Regions() []Record {
	if len(d.Rows) <= 1 {
		return nil
	}
	return d.Rows[1:]
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	if d.Rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Rows)
}

func (d *Dataset) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &d.Rows)
}
