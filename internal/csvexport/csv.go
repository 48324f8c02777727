package csvexport

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Field is one named column value of a record
type Field struct {
	Key   string
	Value any
}

// Record is an ordered list of fields, as returned by the warehouse
type Record []Field

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Header returns the keys of the first record, in order.
func Header(records []Record) []string {
	if len(records) == 0 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, f := range records[0] {
		header[i] = f.Key
	}
	return header
}

// Build renders records as CSV. Empty input yields an empty document.
func Build(records []Record) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes never fail
	_ = Write(&buf, records)
	return buf.Bytes()
}

// Write renders records as CSV to w. The header comes from the first
// record; values of later records are looked up by key, missing ones
// are left empty.
func Write(w io.Writer, records []Record) error {
	header := Header(records)
	if len(header) == 0 {
		return nil
	}

	line := make([]string, len(header))
	for i, h := range header {
		line[i] = Escape(h)
	}
	if _, err := io.WriteString(w, strings.Join(line, ",")+"\n"); err != nil {
		return err
	}

	for _, rec := range records {
		for i, h := range header {
			v, _ := rec.Get(h)
			line[i] = Escape(Coerce(v))
		}
		if _, err := io.WriteString(w, strings.Join(line, ",")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Escape quotes s when it contains a comma, a double quote or a newline,
// doubling inner quotes.
func Escape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Coerce renders a warehouse value as CSV text.
func Coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *big.Rat:
		if t == nil {
			return ""
		}
		return RatString(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case fmt.Stringer:
		return t.String()
	case []any, map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// ratDigits covers the BIGNUMERIC scale
const ratDigits = 38

// RatString renders r as a minimal decimal string.
func RatString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(ratDigits)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
