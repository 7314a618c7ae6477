package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/artifacts/internal/ir"
)

// CompileLabels parses a `labels` struct of the form
// recordType: attribute: code: label into option labels, in source order.
func CompileLabels(v cue.Value) ([]ir.OptionLabel, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.OptionLabel
	types, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for types.Next() {
		recordType := unquote(types.Label())
		attrs, err := types.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for attrs.Next() {
			attribute := unquote(attrs.Label())
			codes, err := attrs.Value().Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for codes.Next() {
				key := unquote(codes.Label())
				path := fmt.Sprintf("labels.%s.%s.%s", recordType, attribute, key)
				code, err := strconv.ParseInt(key, 10, 64)
				if err != nil {
					return nil, &CompileError{
						Field:   path,
						Message: "option code must be an integer",
						Pos:     codes.Value().Pos(),
					}
				}
				label, err := codes.Value().String()
				if err != nil {
					return nil, &CompileError{
						Field:   path,
						Message: "label must be a string",
						Pos:     codes.Value().Pos(),
					}
				}
				out = append(out, ir.OptionLabel{
					RecordType: recordType,
					Attribute:  attribute,
					Code:       code,
					Label:      label,
				})
			}
		}
	}
	return out, nil
}

// unquote strips the quotes CUE keeps on labels that are not identifiers.
func unquote(label string) string {
	return strings.Trim(label, `"`)
}
