package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

const exampleYAML = `
fields:
  - name: _id
    type: binary
  - name: amount
    type: decimal128(38, 10)
  - name: seen_at
    type: timestamp[ms, tz=Europe/Oslo]
  - name: address
    type: struct
    fields:
      - {name: city, type: utf8}
      - {name: zip, type: int32, nullable: false}
`

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want arrow.DataType
	}{
		{"bool", arrow.FixedWidthTypes.Boolean},
		{"Boolean", arrow.FixedWidthTypes.Boolean},
		{"int32", arrow.PrimitiveTypes.Int32},
		{"int64", arrow.PrimitiveTypes.Int64},
		{"double", arrow.PrimitiveTypes.Float64},
		{" utf8 ", arrow.BinaryTypes.String},
		{"large_string", arrow.BinaryTypes.LargeString},
		{"binary", arrow.BinaryTypes.Binary},
		{"large_binary", arrow.BinaryTypes.LargeBinary},
		{"date32", arrow.FixedWidthTypes.Date32},
		{"date64", arrow.FixedWidthTypes.Date64},
		{"decimal128(10,2)", &arrow.Decimal128Type{Precision: 10, Scale: 2}},
		{"timestamp[s]", &arrow.TimestampType{Unit: arrow.Second}},
		{"timestamp[us, tz=UTC]", &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			require.NoError(t, err)
			assert.True(t, arrow.TypeEqual(tt.want, got), "got %s", got)
		})
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, in := range []string{
		"uint8",
		"decimal128(10)",
		"decimal128(40, 2)",
		"decimal128(5, 6)",
		"timestamp[ns]",
		"timestamp[ms, zone=UTC]",
		"struct",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseType(in)
			require.Error(t, err)
			assert.True(t, shrederrors.IsType(err, shrederrors.ErrorTypeValidation))
		})
	}
}

func TestToArrow(t *testing.T) {
	fields, err := Parse([]byte(exampleYAML))
	require.NoError(t, err)

	got, err := ToArrow(fields)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.True(t, got[0].Nullable)
	assert.True(t, arrow.TypeEqual(
		&arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "Europe/Oslo"}, got[2].Type))

	address, ok := got[3].Type.(*arrow.StructType)
	require.True(t, ok)
	zip, ok := address.FieldByName("zip")
	require.True(t, ok)
	assert.False(t, zip.Nullable)
}

func TestFromArrowRoundTrip(t *testing.T) {
	fields, err := Parse([]byte(exampleYAML))
	require.NoError(t, err)
	af, err := ToArrow(fields)
	require.NoError(t, err)

	back, err := FromArrow(af)
	require.NoError(t, err)
	again, err := ToArrow(back)
	require.NoError(t, err)

	assert.True(t, arrow.NewSchema(af, nil).Equal(arrow.NewSchema(again, nil)))
	assert.Equal(t, "decimal128(38, 10)", back[1].Type)
	assert.Nil(t, back[0].Nullable)
}

func TestFromArrowRejectsUnsupported(t *testing.T) {
	_, err := FromArrow([]arrow.Field{{Name: "u", Type: arrow.PrimitiveTypes.Uint16}})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	nested := func(depth int) []Field {
		f := []Field{{Name: "leaf", Type: "int64"}}
		for i := 0; i < depth; i++ {
			f = []Field{{Name: "s", Type: "struct", Fields: f}}
		}
		return f
	}

	tests := []struct {
		name   string
		fields []Field
		max    int
		field  string
	}{
		{name: "empty", fields: nil},
		{name: "empty name", fields: []Field{{Type: "int64"}}},
		{name: "duplicate", fields: []Field{{Name: "a", Type: "int64"}, {Name: "a", Type: "utf8"}}, field: "a"},
		{name: "empty struct", fields: []Field{{Name: "s", Type: "struct"}}, field: "s"},
		{name: "scalar with children", fields: []Field{{Name: "a", Type: "int64", Fields: []Field{{Name: "b", Type: "int64"}}}}, field: "a"},
		{name: "bad nested type", fields: []Field{{Name: "s", Type: "struct", Fields: []Field{{Name: "x", Type: "blob"}}}}, field: "s.x"},
		{name: "too deep", fields: nested(3), max: 2, field: "s.s.s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.fields, tt.max)
			require.Error(t, err)

			var se *shrederrors.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, shrederrors.ErrorTypeValidation, se.Type)
			if tt.field != "" {
				assert.Equal(t, tt.field, se.Detail("field"))
			}
		})
	}

	assert.NoError(t, Validate(nested(2), 2))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleYAML), 0o600))

	fields, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, fields, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, shrederrors.IsType(err, shrederrors.ErrorTypeFile))
}
