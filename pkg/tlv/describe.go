package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// WriteStructFields appends one report line per populated byte field of s,
// a struct or a pointer to one, followed by one line per packet held in its
// Unknown field. Lines are newline-separated without a trailing newline;
// when sb already holds text a newline separates the block from it.
func WriteStructFields(sb *strings.Builder, prefix string, s any) {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	var lines []string
	for _, fp := range planFor(v.Type()) {
		f := v.Field(fp.index)

		if fp.unknown {
			for _, p := range f.Interface().([]bertlv.TLV) {
				lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %X", prefix, strings.ToUpper(p.Tag), rawValue(p)))
			}
			continue
		}

		if !isBytes(f.Type()) || f.Len() == 0 {
			continue
		}
		label := fp.name
		if fp.tag != "" {
			label = fmt.Sprintf("%s (%s)", fp.name, fp.tag)
		}
		lines = append(lines, fmt.Sprintf("    - %s.%s: %s", prefix, label, FormatValue(f.Bytes(), fp.format)))
	}

	if len(lines) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Join(lines, "\n"))
}

// FormatValue renders data in upper-case hex. format "ascii" appends the
// printable rendering and "int" the big-endian unsigned value; values wider
// than eight bytes stay plain hex.
func FormatValue(data []byte, format string) string {
	switch {
	case format == "ascii":
		return fmt.Sprintf("%X (%q)", data, MakeSafeASCII(data))
	case format == "int" && len(data) <= 8:
		var n uint64
		for _, b := range data {
			n = n<<8 | uint64(b)
		}
		return fmt.Sprintf("%X (Dec: %d)", data, n)
	}
	return fmt.Sprintf("%X", data)
}

// MakeSafeASCII maps every byte outside the printable ASCII range to '.'.
// The result has exactly one character per input byte.
func MakeSafeASCII(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7E {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}
