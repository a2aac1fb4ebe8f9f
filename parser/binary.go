package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"github.com/mitchellh/mapstructure"

	"github.com/karagenc/socket.io-client-go/parser/json/serializer"
)

var ErrInvalidPlaceholder = fmt.Errorf("parser: invalid placeholder")

// Binary marks a value to be sent as an attachment.
// Plain []byte values are treated the same way.
type Binary []byte

type placeholder struct {
	Placeholder bool `json:"_placeholder"`
	Num         int  `json:"num"`
}

var (
	binaryType     = reflect.TypeOf(Binary(nil))
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
)

func isBinaryValue(rv reflect.Value) bool {
	t := rv.Type()
	if t == rawMessageType {
		return false
	}
	return t == binaryType || (t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8)
}

// HasBinary reports whether v contains a []byte or Binary anywhere.
func HasBinary(v any) bool {
	return hasBinary(reflect.ValueOf(v), 0)
}

const maxDepth = 64

func hasBinary(rv reflect.Value, depth int) bool {
	if !rv.IsValid() || depth > maxDepth {
		return false
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return hasBinary(rv.Elem(), depth+1)
	case reflect.Slice:
		if rv.IsNil() {
			return false
		}
		if isBinaryValue(rv) {
			return true
		}
		fallthrough
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if hasBinary(rv.Index(i), depth+1) {
				return true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if hasBinary(iter.Value(), depth+1) {
				return true
			}
		}
	case reflect.Struct:
		for _, f := range structs.Fields(rv.Interface()) {
			if !f.IsExported() {
				continue
			}
			if hasBinary(reflect.ValueOf(f.Value()), depth+1) {
				return true
			}
		}
	}
	return false
}

// EncodeArgs serializes each value. Binary values found anywhere in a value
// are replaced with placeholders and returned as attachments in placeholder order.
func EncodeArgs(s serializer.JSONMarshalUnmarshaler, values ...any) (args []json.RawMessage, attachments [][]byte, err error) {
	args = make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		if raw, ok := v.(json.RawMessage); ok {
			args = append(args, raw)
			continue
		}

		if HasBinary(v) {
			e := &deconstructor{json: s, attachments: attachments}
			v, err = e.deconstruct(reflect.ValueOf(v), 0)
			if err != nil {
				return nil, nil, err
			}
			attachments = e.attachments
		}

		b, err := s.Marshal(v)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, b)
	}
	return args, attachments, nil
}

type deconstructor struct {
	json        serializer.JSONMarshalUnmarshaler
	attachments [][]byte
}

func (d *deconstructor) newObject() *object {
	return &object{json: d.json}
}

func (d *deconstructor) deconstruct(rv reflect.Value, depth int) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}
	if depth > maxDepth {
		return nil, fmt.Errorf("parser: value is nested too deeply")
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return d.deconstruct(rv.Elem(), depth+1)
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if isBinaryValue(rv) {
			p := &placeholder{Placeholder: true, Num: len(d.attachments)}
			d.attachments = append(d.attachments, bytes.Clone(rv.Bytes()))
			return p, nil
		}
		fallthrough
	case reflect.Array:
		if !hasBinary(rv, depth) {
			return rv.Interface(), nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			v, err := d.deconstruct(rv.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case reflect.Map:
		if !hasBinary(rv, depth) {
			return rv.Interface(), nil
		}
		return d.deconstructMap(rv, depth)
	case reflect.Struct:
		if !hasBinary(rv, depth) {
			return rv.Interface(), nil
		}
		obj := d.newObject()
		err := d.deconstructStruct(obj, rv, depth)
		if err != nil {
			return nil, err
		}
		return obj, nil
	}
	return rv.Interface(), nil
}

func (d *deconstructor) deconstructMap(rv reflect.Value, depth int) (any, error) {
	keys := make([]string, 0, rv.Len())
	values := make(map[string]reflect.Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := fmt.Sprint(iter.Key().Interface())
		keys = append(keys, k)
		values[k] = iter.Value()
	}
	// Placeholders are numbered in key order.
	sort.Strings(keys)

	obj := d.newObject()
	for _, k := range keys {
		v, err := d.deconstruct(values[k], depth+1)
		if err != nil {
			return nil, err
		}
		obj.add(k, v)
	}
	return obj, nil
}

func (d *deconstructor) deconstructStruct(obj *object, rv reflect.Value, depth int) error {
	for _, f := range structs.Fields(rv.Interface()) {
		if !f.IsExported() {
			continue
		}
		name, opts := parseTag(f.Tag("json"))
		if name == "-" && opts == "" {
			continue
		}
		if strings.Contains(opts, "omitempty") && f.IsZero() {
			continue
		}

		fv := reflect.ValueOf(f.Value())
		if f.IsEmbedded() && name == "" && fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		if f.IsEmbedded() && name == "" && fv.Kind() == reflect.Struct {
			err := d.deconstructStruct(obj, fv, depth+1)
			if err != nil {
				return err
			}
			continue
		}
		if name == "" {
			name = f.Name()
		}

		v, err := d.deconstruct(fv, depth+1)
		if err != nil {
			return err
		}
		obj.add(name, v)
	}
	return nil
}

func parseTag(tag string) (name, opts string) {
	name, opts, _ = strings.Cut(tag, ",")
	return
}

// object is a JSON object that keeps insertion order.
// Keys and values are encoded with the serializer of the message.
type object struct {
	json   serializer.JSONMarshalUnmarshaler
	keys   []string
	values []any
}

func (o *object) add(k string, v any) {
	o.keys = append(o.keys, k)
	o.values = append(o.values, v)
}

func (o *object) MarshalJSON() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := o.json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := o.json.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ReconstructValue replaces placeholder objects in a decoded JSON tree
// with the attachments they point to.
func ReconstructValue(v any, attachments [][]byte) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		if isPlaceholder, _ := v["_placeholder"].(bool); isPlaceholder {
			num, ok := v["num"].(float64)
			if !ok || num < 0 || int(num) >= len(attachments) || num != float64(int(num)) {
				return nil, ErrInvalidPlaceholder
			}
			return attachments[int(num)], nil
		}
		for k, e := range v {
			r, err := ReconstructValue(e, attachments)
			if err != nil {
				return nil, err
			}
			v[k] = r
		}
		return v, nil
	case []any:
		for i, e := range v {
			r, err := ReconstructValue(e, attachments)
			if err != nil {
				return nil, err
			}
			v[i] = r
		}
		return v, nil
	}
	return v, nil
}

// DecodeArg decodes raw into v, restoring placeholders from attachments.
func DecodeArg(s serializer.JSONMarshalUnmarshaler, raw json.RawMessage, attachments [][]byte, v any) error {
	if len(attachments) == 0 {
		return s.Unmarshal(raw, v)
	}

	var tree any
	err := s.Unmarshal(raw, &tree)
	if err != nil {
		return err
	}
	tree, err = ReconstructValue(tree, attachments)
	if err != nil {
		return err
	}

	switch target := v.(type) {
	case *any:
		*target = tree
		return nil
	case *[]byte:
		b, ok := tree.([]byte)
		if !ok {
			return fmt.Errorf("parser: argument is not binary")
		}
		*target = b
		return nil
	case *Binary:
		b, ok := tree.([]byte)
		if !ok {
			return fmt.Errorf("parser: argument is not binary")
		}
		*target = b
		return nil
	}

	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Squash:  true,
		Result:  v,
	})
	if err != nil {
		return err
	}
	return d.Decode(tree)
}
