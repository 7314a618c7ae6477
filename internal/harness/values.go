package harness

import (
	"fmt"

	"github.com/roach88/artifacts/internal/ir"
)

// convertAttributes converts YAML-decoded attribute values to ir values.
func convertAttributes(attrs map[string]any) (ir.Attributes, error) {
	out := make(ir.Attributes, len(attrs))
	for name, raw := range attrs {
		v, err := convertValue(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// convertValue converts one YAML value. Plain scalars map to Text, Int and
// Bool; Option and Ref need the tagged form.
func convertValue(val any) (ir.Value, error) {
	switch v := val.(type) {
	case nil:
		return ir.Null{}, nil
	case string:
		return ir.Text(v), nil
	case bool:
		return ir.Bool(v), nil
	case int, int64, float64:
		n, err := asInt(v)
		if err != nil {
			return nil, err
		}
		return ir.Int(n), nil
	case map[string]any:
		return convertTagged(v)
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}

func convertTagged(m map[string]any) (ir.Value, error) {
	if len(m) != 1 {
		return nil, fmt.Errorf("tagged value must have exactly one key, got %d", len(m))
	}
	for tag, payload := range m {
		switch tag {
		case "text":
			s, ok := payload.(string)
			if !ok {
				return nil, fmt.Errorf("text: want string, got %T", payload)
			}
			return ir.Text(s), nil
		case "option":
			n, err := asInt(payload)
			if err != nil {
				return nil, fmt.Errorf("option: %w", err)
			}
			return ir.Option(n), nil
		case "int":
			n, err := asInt(payload)
			if err != nil {
				return nil, fmt.Errorf("int: %w", err)
			}
			return ir.Int(n), nil
		case "bool":
			b, ok := payload.(bool)
			if !ok {
				return nil, fmt.Errorf("bool: want bool, got %T", payload)
			}
			return ir.Bool(b), nil
		case "ref":
			ref, ok := payload.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("ref: want {type, id}, got %T", payload)
			}
			typ, _ := ref["type"].(string)
			id, _ := ref["id"].(string)
			if typ == "" || id == "" || len(ref) != 2 {
				return nil, fmt.Errorf("ref: type and id are required")
			}
			return ir.NewRef(typ, id), nil
		default:
			return nil, fmt.Errorf("unknown value tag %q", tag)
		}
	}
	panic("unreachable")
}

func asInt(val any) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("want integer, got %T", val)
	}
}
