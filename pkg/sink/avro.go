package sink

import (
	"math/big"
	"regexp"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/linkedin/goavro/v2"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
	jsonpool "github.com/ajitpratap0/shredder/pkg/json"
	"github.com/ajitpratap0/shredder/pkg/schema"
)

var avroName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// avroSink implements Sink for Avro object container files. Each batch
// becomes one OCF block.
type avroSink struct {
	stats
	codec   *goavro.Codec
	ocf     *goavro.OCFWriter
	columns []avroColumn
	batch   []interface{}
}

// avroColumn converts one Arrow column value into goavro's native form.
type avroColumn struct {
	name   string
	branch string // union branch name when nullable, empty otherwise
	value  func(arr arrow.Array, i int) interface{}
}

func newAvroSink(w *countingWriter, sc *arrow.Schema, cfg Config) (*avroSink, error) {
	var compression string
	switch cfg.Compression {
	case "", "none", "null":
		compression = goavro.CompressionNullLabel
	case "deflate":
		compression = goavro.CompressionDeflateLabel
	case "snappy":
		compression = goavro.CompressionSnappyLabel
	default:
		return nil, unsupportedCompression(Avro, cfg.Compression)
	}

	name := cfg.RecordName
	if name == "" {
		name = "Document"
	}
	fields, columns, err := avroFields(sc.Fields(), name)
	if err != nil {
		return nil, err
	}
	schemaJSON, err := jsonpool.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   name,
		"fields": fields,
	})
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeInternal, "encode Avro schema")
	}

	codec, err := goavro.NewCodec(string(schemaJSON))
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "create Avro codec")
	}

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compression,
	})
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "create Avro writer")
	}

	return &avroSink{
		stats:   stats{out: w, schema: sc},
		codec:   codec,
		ocf:     ocf,
		columns: columns,
	}, nil
}

func (s *avroSink) Write(rec arrow.Record) error {
	if err := s.check(rec); err != nil {
		return err
	}
	n := int(rec.NumRows())
	if n == 0 {
		return nil
	}

	s.batch = s.batch[:0]
	for i := 0; i < n; i++ {
		s.batch = append(s.batch, avroRecord(s.columns, rec.Columns(), i))
	}
	if err := s.ocf.Append(s.batch); err != nil {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "write Avro block")
	}
	s.rows += int64(n)
	return nil
}

// Close is a no-op: every Append already wrote a complete block.
func (s *avroSink) Close() error {
	return nil
}

func (s *avroSink) Format() Format {
	return Avro
}

func avroRecord(columns []avroColumn, arrays []arrow.Array, i int) map[string]interface{} {
	out := make(map[string]interface{}, len(columns))
	for j, c := range columns {
		arr := arrays[j]
		switch {
		case arr.IsNull(i):
			out[c.name] = nil
		case c.branch != "":
			out[c.name] = goavro.Union(c.branch, c.value(arr, i))
		default:
			out[c.name] = c.value(arr, i)
		}
	}
	return out
}

// avroFields derives the Avro record fields for an Arrow schema. Nested
// record names are qualified by their path so they stay unique. The Arrow
// type is kept in an "arrowType" attribute where Avro cannot express it.
func avroFields(fields []arrow.Field, path string) ([]map[string]interface{}, []avroColumn, error) {
	out := make([]map[string]interface{}, 0, len(fields))
	columns := make([]avroColumn, 0, len(fields))

	for _, f := range fields {
		if !avroName.MatchString(f.Name) {
			return nil, nil, shrederrors.Newf(shrederrors.ErrorTypeConfig,
				"field %q is not a valid Avro name", f.Name).WithDetail("field", f.Name)
		}

		typ, branch, value, err := avroType(f, path+"_"+f.Name)
		if err != nil {
			return nil, nil, err
		}

		field := map[string]interface{}{"name": f.Name, "type": typ}
		if text, err := schema.FormatType(f.Type); err == nil {
			field["arrowType"] = text
		}
		col := avroColumn{name: f.Name, value: value}
		if f.Nullable {
			field["type"] = []interface{}{"null", typ}
			field["default"] = nil
			col.branch = branch
		}

		out = append(out, field)
		columns = append(columns, col)
	}
	return out, columns, nil
}

func avroType(f arrow.Field, recordName string) (interface{}, string, func(arrow.Array, int) interface{}, error) {
	switch t := f.Type.(type) {
	case *arrow.BooleanType:
		return "boolean", "boolean", func(a arrow.Array, i int) interface{} {
			return a.(*array.Boolean).Value(i)
		}, nil
	case *arrow.Int32Type:
		return "int", "int", func(a arrow.Array, i int) interface{} {
			return a.(*array.Int32).Value(i)
		}, nil
	case *arrow.Int64Type:
		return "long", "long", func(a arrow.Array, i int) interface{} {
			return a.(*array.Int64).Value(i)
		}, nil
	case *arrow.Float64Type:
		return "double", "double", func(a arrow.Array, i int) interface{} {
			return a.(*array.Float64).Value(i)
		}, nil
	case *arrow.StringType:
		return "string", "string", func(a arrow.Array, i int) interface{} {
			return a.(*array.String).Value(i)
		}, nil
	case *arrow.LargeStringType:
		return "string", "string", func(a arrow.Array, i int) interface{} {
			return a.(*array.LargeString).Value(i)
		}, nil
	case *arrow.BinaryType:
		return "bytes", "bytes", func(a arrow.Array, i int) interface{} {
			return a.(*array.Binary).Value(i)
		}, nil
	case *arrow.LargeBinaryType:
		return "bytes", "bytes", func(a arrow.Array, i int) interface{} {
			return a.(*array.LargeBinary).Value(i)
		}, nil
	case *arrow.Date32Type:
		return "int", "int", func(a arrow.Array, i int) interface{} {
			return int32(a.(*array.Date32).Value(i))
		}, nil
	case *arrow.Date64Type:
		return "long", "long", func(a arrow.Array, i int) interface{} {
			return int64(a.(*array.Date64).Value(i))
		}, nil
	case *arrow.TimestampType:
		return "long", "long", func(a arrow.Array, i int) interface{} {
			return int64(a.(*array.Timestamp).Value(i))
		}, nil
	case *arrow.Decimal128Type:
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Scale)), nil)
		typ := map[string]interface{}{
			"type":        "bytes",
			"logicalType": "decimal",
			"precision":   t.Precision,
			"scale":       t.Scale,
		}
		return typ, "bytes.decimal", func(a arrow.Array, i int) interface{} {
			n := a.(*array.Decimal128).Value(i)
			return new(big.Rat).SetFrac(n.BigInt(), scale)
		}, nil
	case *arrow.StructType:
		children, columns, err := avroFields(t.Fields(), recordName)
		if err != nil {
			return nil, "", nil, err
		}
		typ := map[string]interface{}{
			"type":   "record",
			"name":   recordName,
			"fields": children,
		}
		return typ, recordName, func(a arrow.Array, i int) interface{} {
			st := a.(*array.Struct)
			arrays := make([]arrow.Array, st.NumField())
			for j := range arrays {
				arrays[j] = st.Field(j)
			}
			return avroRecord(columns, arrays, i)
		}, nil
	default:
		return nil, "", nil, shrederrors.Newf(shrederrors.ErrorTypeConfig,
			"type %s has no Avro mapping", f.Type).WithDetail("field", f.Name)
	}
}
