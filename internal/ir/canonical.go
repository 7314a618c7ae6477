package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Attribute values are persisted as tagged JSON so the variant survives a
// round trip through the store:
//
//	null
//	{"text":"Approved"}
//	{"option":100000002}
//	{"bool":true}
//	{"int":42}
//	{"ref":{"id":"0190...","type":"account"}}
//
// Encoding is canonical: object keys are sorted, text is NFC normalized and
// HTML characters are not escaped. Re-encoding an unchanged record therefore
// yields identical bytes, which keeps stored blobs and golden files stable.

// MarshalValue encodes a single Value to canonical tagged JSON.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Text:
		s, err := marshalCanonicalString(string(val))
		if err != nil {
			return nil, err
		}
		return tagged("text", s), nil
	case Option:
		return tagged("option", []byte(strconv.FormatInt(int64(val), 10))), nil
	case Bool:
		return tagged("bool", []byte(strconv.FormatBool(bool(val)))), nil
	case Int:
		return tagged("int", []byte(strconv.FormatInt(int64(val), 10))), nil
	case Ref:
		id, err := marshalCanonicalString(val.ID)
		if err != nil {
			return nil, err
		}
		typ, err := marshalCanonicalString(val.Type)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.WriteString(`{"id":`)
		buf.Write(id)
		buf.WriteString(`,"type":`)
		buf.Write(typ)
		buf.WriteByte('}')
		return tagged("ref", buf.Bytes()), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// MarshalJSON implements json.Marshaler with sorted keys.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(a[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Attributes.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Attributes, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = val
	}
	*a = out
	return nil
}

// UnmarshalValue decodes tagged JSON into a Value.
// Untagged scalars are rejected so a value's variant is never guessed.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}
	if bytes.Equal(data, []byte("null")) {
		return Null{}, nil
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("untagged value %s: want null or {\"<kind>\": ...}", data)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if len(obj) != 1 {
		return nil, fmt.Errorf("tagged value must have exactly one key, got %d", len(obj))
	}

	for tag, payload := range obj {
		switch tag {
		case "text":
			var s string
			if err := json.Unmarshal(payload, &s); err != nil {
				return nil, fmt.Errorf("text: %w", err)
			}
			return Text(norm.NFC.String(s)), nil
		case "option":
			n, err := unmarshalInt(payload)
			if err != nil {
				return nil, fmt.Errorf("option: %w", err)
			}
			return Option(n), nil
		case "bool":
			var b bool
			if err := json.Unmarshal(payload, &b); err != nil {
				return nil, fmt.Errorf("bool: %w", err)
			}
			return Bool(b), nil
		case "int":
			n, err := unmarshalInt(payload)
			if err != nil {
				return nil, fmt.Errorf("int: %w", err)
			}
			return Int(n), nil
		case "ref":
			var r Ref
			if err := json.Unmarshal(payload, &r); err != nil {
				return nil, fmt.Errorf("ref: %w", err)
			}
			if r.Type == "" || r.ID == "" {
				return nil, fmt.Errorf("ref: type and id are required")
			}
			return r, nil
		default:
			return nil, fmt.Errorf("unknown value tag %q", tag)
		}
	}
	panic("unreachable")
}

// unmarshalInt decodes a JSON number that must be an integer.
func unmarshalInt(data []byte) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, err
	}
	i, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	return i, nil
}

// marshalCanonicalString produces a JSON string with NFC normalization and
// without HTML escaping (<, >, & stay literal).
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func tagged(tag string, payload []byte) []byte {
	out := make([]byte, 0, len(tag)+len(payload)+5)
	out = append(out, `{"`...)
	out = append(out, tag...)
	out = append(out, `":`...)
	out = append(out, payload...)
	out = append(out, '}')
	return out
}
