// Package schema describes target Arrow schemas in text form, so pipelines
// can be configured from YAML without writing Go.
//
// A definition is a list of fields. Each field names a type string:
//
//	fields:
//	  - name: _id
//	    type: binary
//	  - name: amount
//	    type: decimal128(38, 10)
//	  - name: seen_at
//	    type: timestamp[ms, tz=UTC]
//	  - name: address
//	    type: struct
//	    fields:
//	      - {name: city, type: utf8}
//	      - {name: zip, type: int32, nullable: false}
//
// Fields are nullable unless nullable: false is given.
package schema

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"gopkg.in/yaml.v3"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// Field is the text form of one arrow.Field.
type Field struct {
	Name     string  `yaml:"name" json:"name"`
	Type     string  `yaml:"type" json:"type"`
	Nullable *bool   `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	Fields   []Field `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Definition is a schema file.
type Definition struct {
	Fields []Field `yaml:"fields" json:"fields"`
}

// IsNullable reports the effective nullability; fields are nullable by default.
func (f Field) IsNullable() bool {
	return f.Nullable == nil || *f.Nullable
}

// LoadFile reads a YAML schema definition.
func LoadFile(path string) ([]Field, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator configuration
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "read schema file").
			WithDetail("path", path)
	}
	return Parse(data)
}

// Parse decodes a YAML schema definition.
func Parse(data []byte) ([]Field, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeValidation, "parse schema definition")
	}
	return def.Fields, nil
}

// Validate checks names, types and nesting without building Arrow types.
// maxDepth bounds struct nesting; zero disables the check.
func Validate(fields []Field, maxDepth int) error {
	return validate(fields, maxDepth, 0, "")
}

func validate(fields []Field, maxDepth, depth int, parent string) error {
	if len(fields) == 0 {
		if parent == "" {
			return shrederrors.New(shrederrors.ErrorTypeValidation, "schema has no fields")
		}
		return invalid(parent, "struct has no fields")
	}
	if maxDepth > 0 && depth > maxDepth {
		return invalid(parent, fmt.Sprintf("struct nesting exceeds max depth %d", maxDepth))
	}

	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		path := joinPath(parent, f.Name)
		if f.Name == "" {
			return invalid(parent, "field with empty name")
		}
		if _, dup := seen[f.Name]; dup {
			return invalid(path, "field is declared more than once")
		}
		seen[f.Name] = struct{}{}

		if isStruct(f.Type) {
			if err := validate(f.Fields, maxDepth, depth+1, path); err != nil {
				return err
			}
			continue
		}
		if len(f.Fields) > 0 {
			return invalid(path, "only struct fields may have nested fields")
		}
		if _, err := ParseType(f.Type); err != nil {
			return shrederrors.Wrap(err, shrederrors.ErrorTypeValidation, "field "+strconv.Quote(path)).
				WithDetail("field", path)
		}
	}
	return nil
}

// ToArrow converts a text schema into Arrow fields.
func ToArrow(fields []Field) ([]arrow.Field, error) {
	if err := Validate(fields, 0); err != nil {
		return nil, err
	}
	return toArrow(fields)
}

func toArrow(fields []Field) ([]arrow.Field, error) {
	out := make([]arrow.Field, 0, len(fields))
	for _, f := range fields {
		var dt arrow.DataType
		if isStruct(f.Type) {
			children, err := toArrow(f.Fields)
			if err != nil {
				return nil, err
			}
			dt = arrow.StructOf(children...)
		} else {
			var err error
			if dt, err = ParseType(f.Type); err != nil {
				return nil, err
			}
		}
		out = append(out, arrow.Field{Name: f.Name, Type: dt, Nullable: f.IsNullable()})
	}
	return out, nil
}

// FromArrow converts Arrow fields into their text form.
func FromArrow(fields []arrow.Field) ([]Field, error) {
	out := make([]Field, 0, len(fields))
	for _, af := range fields {
		f := Field{Name: af.Name}
		if !af.Nullable {
			no := false
			f.Nullable = &no
		}

		if st, ok := af.Type.(*arrow.StructType); ok {
			children, err := FromArrow(st.Fields())
			if err != nil {
				return nil, err
			}
			f.Type = "struct"
			f.Fields = children
		} else {
			s, err := FormatType(af.Type)
			if err != nil {
				return nil, err
			}
			f.Type = s
		}
		out = append(out, f)
	}
	return out, nil
}

// ParseType parses a scalar type string. Struct types are built from nested
// field lists and are not accepted here.
func ParseType(s string) (arrow.DataType, error) {
	t := strings.ToLower(strings.TrimSpace(s))

	switch t {
	case "bool", "boolean":
		return arrow.FixedWidthTypes.Boolean, nil
	case "int32":
		return arrow.PrimitiveTypes.Int32, nil
	case "int64":
		return arrow.PrimitiveTypes.Int64, nil
	case "float64", "double":
		return arrow.PrimitiveTypes.Float64, nil
	case "utf8", "string":
		return arrow.BinaryTypes.String, nil
	case "large_utf8", "large_string":
		return arrow.BinaryTypes.LargeString, nil
	case "binary":
		return arrow.BinaryTypes.Binary, nil
	case "large_binary":
		return arrow.BinaryTypes.LargeBinary, nil
	case "date32":
		return arrow.FixedWidthTypes.Date32, nil
	case "date64":
		return arrow.FixedWidthTypes.Date64, nil
	}

	switch {
	case strings.HasPrefix(t, "decimal128(") && strings.HasSuffix(t, ")"):
		return parseDecimal(t[len("decimal128(") : len(t)-1])
	case strings.HasPrefix(t, "timestamp[") && strings.HasSuffix(t, "]"):
		// keep the time zone's original case
		inner := strings.TrimSpace(s)
		return parseTimestamp(inner[len("timestamp[") : len(inner)-1])
	}

	return nil, shrederrors.Newf(shrederrors.ErrorTypeValidation, "unknown type %q", s)
}

func parseDecimal(args string) (arrow.DataType, error) {
	parts := strings.Split(args, ",")
	if len(parts) != 2 {
		return nil, shrederrors.Newf(shrederrors.ErrorTypeValidation,
			"decimal128 takes (precision, scale), got (%s)", args)
	}
	precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeValidation, "decimal128 precision")
	}
	scale, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeValidation, "decimal128 scale")
	}
	if precision < 1 || precision > 38 || scale < 0 || scale > precision {
		return nil, shrederrors.Newf(shrederrors.ErrorTypeValidation,
			"decimal128(%d, %d) out of range", precision, scale)
	}
	return &arrow.Decimal128Type{Precision: int32(precision), Scale: int32(scale)}, nil
}

func parseTimestamp(args string) (arrow.DataType, error) {
	parts := strings.Split(args, ",")
	ts := &arrow.TimestampType{}

	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "s":
		ts.Unit = arrow.Second
	case "ms":
		ts.Unit = arrow.Millisecond
	case "us":
		ts.Unit = arrow.Microsecond
	default:
		return nil, shrederrors.Newf(shrederrors.ErrorTypeValidation,
			"timestamp unit %q: want s, ms or us", strings.TrimSpace(parts[0]))
	}

	for _, opt := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(opt), "=")
		if !ok || strings.ToLower(strings.TrimSpace(k)) != "tz" {
			return nil, shrederrors.Newf(shrederrors.ErrorTypeValidation,
				"timestamp option %q: want tz=<zone>", opt)
		}
		ts.TimeZone = strings.TrimSpace(v)
	}
	return ts, nil
}

// FormatType is the inverse of ParseType.
func FormatType(dt arrow.DataType) (string, error) {
	switch t := dt.(type) {
	case *arrow.BooleanType:
		return "bool", nil
	case *arrow.Int32Type:
		return "int32", nil
	case *arrow.Int64Type:
		return "int64", nil
	case *arrow.Float64Type:
		return "float64", nil
	case *arrow.StringType:
		return "utf8", nil
	case *arrow.LargeStringType:
		return "large_utf8", nil
	case *arrow.BinaryType:
		return "binary", nil
	case *arrow.LargeBinaryType:
		return "large_binary", nil
	case *arrow.Date32Type:
		return "date32", nil
	case *arrow.Date64Type:
		return "date64", nil
	case *arrow.Decimal128Type:
		return fmt.Sprintf("decimal128(%d, %d)", t.Precision, t.Scale), nil
	case *arrow.TimestampType:
		unit := map[arrow.TimeUnit]string{arrow.Second: "s", arrow.Millisecond: "ms", arrow.Microsecond: "us"}[t.Unit]
		if unit == "" {
			break
		}
		if t.TimeZone != "" {
			return fmt.Sprintf("timestamp[%s, tz=%s]", unit, t.TimeZone), nil
		}
		return fmt.Sprintf("timestamp[%s]", unit), nil
	}
	return "", shrederrors.Newf(shrederrors.ErrorTypeValidation, "type %s has no text form", dt)
}

func isStruct(t string) bool {
	return strings.ToLower(strings.TrimSpace(t)) == "struct"
}

func invalid(path, msg string) error {
	if path == "" {
		return shrederrors.New(shrederrors.ErrorTypeValidation, msg)
	}
	return shrederrors.Newf(shrederrors.ErrorTypeValidation, "field %q: %s", path, msg).
		WithDetail("field", path)
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
