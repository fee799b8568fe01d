// Package tlv handles Tag-Length-Value data on both sides of the card interface.
//
// The card side (ber.go) only sizes tag and length fields, which is all it
// needs to carve a command body into records and to frame responses.
//
// The host side decodes responses with github.com/moov-io/bertlv and maps the
// resulting packets onto structs whose fields carry `tlv:"<hex tag>"` tags.
// A field of type []bertlv.TLV named Unknown, or tagged `tlv:",unknown"`,
// collects every packet no other field claimed.
package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/moov-io/bertlv"
)

// Unmarshaler is implemented by field types that decode their own value.
// data is the packet value; for constructed packets it is the re-encoded
// children.
type Unmarshaler interface {
	UnmarshalTLV(data []byte) error
}

var unknownType = reflect.TypeOf([]bertlv.TLV(nil))

// fieldPlan is the mapping information of one exported struct field.
type fieldPlan struct {
	index   int
	name    string
	tag     string // upper-case hex; empty for untagged fields
	format  string // value of the fmt struct tag, used by the describer
	unknown bool
}

// plans caches the field plans per struct type.
var plans sync.Map

func planFor(t reflect.Type) []fieldPlan {
	if p, ok := plans.Load(t); ok {
		return p.([]fieldPlan)
	}

	var plan []fieldPlan
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, opts, _ := strings.Cut(sf.Tag.Get("tlv"), ",")
		plan = append(plan, fieldPlan{
			index:   i,
			name:    sf.Name,
			tag:     strings.ToUpper(tag),
			format:  sf.Tag.Get("fmt"),
			unknown: sf.Type == unknownType && (opts == "unknown" || sf.Name == "Unknown"),
		})
	}

	plans.Store(t, plan)
	return plan
}

// Unmarshal decodes BER-TLV data and maps it into target, a pointer to a
// struct.
func Unmarshal(data []byte, target any) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps already decoded packets into target. A tag seen
// several times fills a slice field one element per occurrence; any other
// field keeps the last occurrence.
func UnmarshalFromPackets(packets []bertlv.TLV, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct, got %T", target)
	}
	v = v.Elem()

	byTag := make(map[string]fieldPlan)
	catchAll := -1
	for _, fp := range planFor(v.Type()) {
		switch {
		case fp.unknown:
			catchAll = fp.index
		case fp.tag != "":
			byTag[fp.tag] = fp
		}
	}

	var leftovers []bertlv.TLV
	for _, p := range packets {
		fp, ok := byTag[strings.ToUpper(p.Tag)]
		if !ok {
			leftovers = append(leftovers, p)
			continue
		}
		if err := assign(v.Field(fp.index), p); err != nil {
			return fmt.Errorf("tag %s into %s: %w", fp.tag, fp.name, err)
		}
	}

	if catchAll >= 0 && len(leftovers) > 0 {
		v.Field(catchAll).Set(reflect.ValueOf(leftovers))
	}
	return nil
}

func assign(dst reflect.Value, p bertlv.TLV) error {
	if dst.Kind() == reflect.Slice && !isBytes(dst.Type()) {
		elem := reflect.New(dst.Type().Elem()).Elem()
		if err := assign(elem, p); err != nil {
			return err
		}
		dst.Set(reflect.Append(dst, elem))
		return nil
	}

	if dst.CanAddr() {
		if u, ok := dst.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalTLV(rawValue(p))
		}
	}

	switch {
	case isBytes(dst.Type()):
		dst.SetBytes(rawValue(p))
	case dst.Kind() == reflect.String:
		dst.SetString(hex.EncodeToString(p.Value))
	case dst.Kind() == reflect.Struct:
		return nested(p, dst.Addr().Interface())
	case dst.Kind() == reflect.Pointer && dst.Type().Elem().Kind() == reflect.Struct:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return nested(p, dst.Interface())
	}
	return nil
}

func nested(p bertlv.TLV, target any) error {
	if len(p.TLVs) > 0 {
		return UnmarshalFromPackets(p.TLVs, target)
	}
	return Unmarshal(p.Value, target)
}

// rawValue returns the value bytes of p. bertlv keeps the children of a
// constructed packet decoded, so they are encoded back.
func rawValue(p bertlv.TLV) []byte {
	if len(p.TLVs) == 0 {
		return p.Value
	}
	enc, err := bertlv.Encode(p.TLVs)
	if err != nil {
		return p.Value
	}
	return enc
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}
