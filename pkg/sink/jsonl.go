package sink

import (
	"encoding/base64"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/shredder/pkg/compression"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
	jsonpool "github.com/ajitpratap0/shredder/pkg/json"
)

// jsonlSink implements Sink for newline delimited JSON. Keys follow schema
// order. Binary values are base64, decimals are exact strings, timestamps
// are RFC 3339 in the column's time zone and dates are YYYY-MM-DD.
type jsonlSink struct {
	stats
	zw  io.WriteCloser
	enc *jsonpool.StreamingEncoder
	row []byte
}

func newJSONLSink(w *countingWriter, schema *arrow.Schema, cfg Config) (*jsonlSink, error) {
	alg, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, unsupportedCompression(JSONL, cfg.Compression)
	}
	level := compression.Default
	if cfg.CompressionLevel != 0 {
		level = compression.Level(cfg.CompressionLevel)
	}
	zw, err := compression.NewWriter(w, alg, level)
	if err != nil {
		return nil, err
	}
	enc, err := jsonpool.NewStreamingEncoder(zw, false)
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "create JSON encoder")
	}
	return &jsonlSink{stats: stats{out: w, schema: schema}, zw: zw, enc: enc}, nil
}

func (s *jsonlSink) Write(rec arrow.Record) error {
	if err := s.check(rec); err != nil {
		return err
	}

	fields := rec.Schema().Fields()
	cols := rec.Columns()
	for i := 0; i < int(rec.NumRows()); i++ {
		var err error
		s.row, err = appendObject(s.row[:0], fields, cols, i)
		if err != nil {
			return err
		}
		if err := s.enc.Encode(jsonpool.RawMessage(s.row)); err != nil {
			return shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "write JSON line")
		}
	}
	s.rows += rec.NumRows()
	return nil
}

func (s *jsonlSink) Close() error {
	if err := s.enc.Close(); err != nil {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "close JSON encoder")
	}
	if err := s.zw.Close(); err != nil {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeFile, "flush compressed output")
	}
	return nil
}

func (s *jsonlSink) Format() Format {
	return JSONL
}

func appendObject(dst []byte, fields []arrow.Field, cols []arrow.Array, i int) ([]byte, error) {
	dst = append(dst, '{')
	for j, f := range fields {
		if j > 0 {
			dst = append(dst, ',')
		}
		dst = jsonpool.AppendString(dst, f.Name)
		dst = append(dst, ':')

		var err error
		if dst, err = appendValue(dst, cols[j], i); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

func appendValue(dst []byte, arr arrow.Array, i int) ([]byte, error) {
	if arr.IsNull(i) {
		return append(dst, "null"...), nil
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return strconv.AppendBool(dst, a.Value(i)), nil
	case *array.Int32:
		return strconv.AppendInt(dst, int64(a.Value(i)), 10), nil
	case *array.Int64:
		return strconv.AppendInt(dst, a.Value(i), 10), nil
	case *array.Float64:
		return appendFloat(dst, a.Value(i)), nil
	case *array.String:
		return jsonpool.AppendString(dst, a.Value(i)), nil
	case *array.LargeString:
		return jsonpool.AppendString(dst, a.Value(i)), nil
	case *array.Binary:
		return appendBase64(dst, a.Value(i)), nil
	case *array.LargeBinary:
		return appendBase64(dst, a.Value(i)), nil
	case *array.Decimal128:
		scale := a.DataType().(*arrow.Decimal128Type).Scale
		return jsonpool.AppendString(dst, a.Value(i).ToString(scale)), nil
	case *array.Timestamp:
		toTime, err := a.DataType().(*arrow.TimestampType).GetToTimeFunc()
		if err != nil {
			return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeValidation, "timestamp time zone")
		}
		return jsonpool.AppendString(dst, toTime(a.Value(i)).Format(time.RFC3339Nano)), nil
	case *array.Date32:
		return jsonpool.AppendString(dst, a.Value(i).FormattedString()), nil
	case *array.Date64:
		return jsonpool.AppendString(dst, a.Value(i).FormattedString()), nil
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		children := make([]arrow.Array, a.NumField())
		for j := range children {
			children[j] = a.Field(j)
		}
		return appendObject(dst, st.Fields(), children, i)
	default:
		data, err := jsonpool.Marshal(arr.GetOneForMarshal(i))
		if err != nil {
			return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeValidation, "encode JSON value").
				WithDetail("type", arr.DataType().String())
		}
		return append(dst, data...), nil
	}
}

// appendFloat writes non-finite doubles as the strings "NaN", "Infinity"
// and "-Infinity", which JSON numbers cannot express.
func appendFloat(dst []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(dst, `"NaN"`...)
	case math.IsInf(f, 1):
		return append(dst, `"Infinity"`...)
	case math.IsInf(f, -1):
		return append(dst, `"-Infinity"`...)
	}
	return strconv.AppendFloat(dst, f, 'g', -1, 64)
}

func appendBase64(dst, b []byte) []byte {
	dst = append(dst, '"')
	dst = base64.StdEncoding.AppendEncode(dst, b)
	return append(dst, '"')
}
