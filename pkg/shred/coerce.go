package shred

import (
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/decimal128"

	"github.com/ajitpratap0/shredder/pkg/document"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// coerce resolves val into out for a scalar column of type dt. It is pure:
// no builder is touched, so a failure leaves nothing to undo.
//
// Supported conversions:
//
//	boolean     -> Boolean, Utf8
//	double      -> Float64, Int32*, Int64*, Utf8
//	int32       -> Int32, Int64, Float64, Utf8
//	int64       -> Int64, Int32 (wrapping), Float64, Utf8
//	string      -> Utf8, LargeUtf8, Boolean/Int32/Int64/Float64 (parsed)
//	binary      -> Binary, LargeBinary
//	objectId    -> Utf8 (hex), Binary (12 bytes)
//	timestamp   -> Timestamp(s/ms/us), Date32, Date64
//	datetime    -> Timestamp(ms/us), Date64
//	array       -> Utf8 (relaxed extended JSON)
//	decimal128  -> Decimal128
//	null        -> any column (null)
//
// * truncated toward zero, saturating at the type bounds; NaN becomes 0.
// Documents resolve only into struct columns, which structColumn handles.
func coerce(val document.Value, dt arrow.DataType, out *cell, o *options, path string) error {
	out.reset()
	id := dt.ID()

	switch val.Kind() {
	case document.KindNull:
		out.null = true
		return nil

	case document.KindBoolean:
		switch id {
		case arrow.BOOL:
			out.b = val.Boolean()
			return nil
		case arrow.STRING:
			out.s = strconv.FormatBool(val.Boolean())
			return nil
		}

	case document.KindDouble:
		f := val.Double()
		switch id {
		case arrow.FLOAT64:
			out.f = f
			return nil
		case arrow.INT32:
			out.i = int64(truncInt32(f))
			return nil
		case arrow.INT64:
			out.i = truncInt64(f)
			return nil
		case arrow.STRING:
			out.s = formatDouble(f)
			return nil
		}

	case document.KindInt32:
		v := val.Int32()
		switch id {
		case arrow.INT32, arrow.INT64:
			out.i = int64(v)
			return nil
		case arrow.FLOAT64:
			out.f = float64(v)
			return nil
		case arrow.STRING:
			out.s = strconv.FormatInt(int64(v), 10)
			return nil
		}

	case document.KindInt64:
		v := val.Int64()
		switch id {
		case arrow.INT64:
			out.i = v
			return nil
		case arrow.INT32:
			out.i = int64(int32(v))
			return nil
		case arrow.FLOAT64:
			out.f = float64(v)
			return nil
		case arrow.STRING:
			out.s = strconv.FormatInt(v, 10)
			return nil
		}

	case document.KindString:
		s := val.StringValue()
		switch id {
		case arrow.STRING, arrow.LARGE_STRING:
			out.s = s
			return nil
		case arrow.BOOL, arrow.INT32, arrow.INT64, arrow.FLOAT64:
			return parseString(s, id, out, o, path)
		}

	case document.KindBinary:
		switch id {
		case arrow.BINARY, arrow.LARGE_BINARY:
			_, out.bin = val.Binary()
			return nil
		}

	case document.KindObjectID:
		oid := val.ObjectID()
		switch id {
		case arrow.STRING:
			out.s = oid.Hex()
			return nil
		case arrow.BINARY:
			out.bin = append([]byte(nil), oid[:]...)
			return nil
		}

	case document.KindTimestamp:
		secs, _ := val.Timestamp()
		t := int64(secs)
		switch id {
		case arrow.TIMESTAMP:
			switch dt.(*arrow.TimestampType).Unit {
			case arrow.Second:
				out.i = t
				return nil
			case arrow.Millisecond:
				out.i = t * 1000
				return nil
			case arrow.Microsecond:
				out.i = t * 1000000
				return nil
			}
		case arrow.DATE32:
			if t > math.MaxInt32 {
				return shrederrors.Newf(shrederrors.ErrorTypeNumericOverflow,
					"field %q: timestamp seconds %d overflow date32", path, t).
					WithDetail("field", path)
			}
			out.i = t
			return nil
		case arrow.DATE64:
			out.i = t * 1000
			return nil
		}

	case document.KindDateTime:
		ms := val.DateTime()
		switch id {
		case arrow.TIMESTAMP:
			switch dt.(*arrow.TimestampType).Unit {
			case arrow.Millisecond:
				out.i = ms
				return nil
			case arrow.Microsecond:
				if ms > math.MaxInt64/1000 || ms < math.MinInt64/1000 {
					return shrederrors.Newf(shrederrors.ErrorTypeNumericOverflow,
						"field %q: datetime %dms overflows microsecond timestamp", path, ms).
						WithDetail("field", path)
				}
				out.i = ms * 1000
				return nil
			}
		case arrow.DATE64:
			out.i = ms
			return nil
		}

	case document.KindArray:
		if id == arrow.STRING {
			s, err := arrayJSON(val.Array(), path)
			if err != nil {
				return err
			}
			out.s = s
			return nil
		}

	case document.KindDecimal128:
		if id == arrow.DECIMAL128 {
			hi, lo := val.Decimal128().GetBytes()
			out.dec = decimal128.New(int64(hi), lo)
			return nil
		}
	}

	return unsupported(val, dt, path)
}

func parseString(s string, id arrow.Type, out *cell, o *options, path string) error {
	var err error
	switch id {
	case arrow.BOOL:
		switch s {
		case "true":
			out.b = true
		case "false":
			out.b = false
		default:
			err = strconv.ErrSyntax
		}
	case arrow.INT32:
		var v int64
		v, err = strconv.ParseInt(s, 10, 32)
		if err == nil {
			out.i = v
		}
	case arrow.INT64:
		out.i, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			out.i = 0
		}
	case arrow.FLOAT64:
		var f float64
		f, err = strconv.ParseFloat(s, 64)
		// out of range parses saturate to +-Inf or 0 rather than fail
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			err = nil
		}
		if err == nil {
			out.f = f
		}
	}

	if err == nil {
		return nil
	}
	if o.parse == ParseStrict {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeParseFailure,
			"field "+strconv.Quote(path)+": cannot parse string as "+id.String()).
			WithDetail("field", path)
	}
	out.reset()
	return nil
}

func unsupported(val document.Value, dt arrow.DataType, path string) error {
	return shrederrors.Newf(shrederrors.ErrorTypeUnsupportedConversion,
		"field %q: cannot convert %s to %s", path, val.TypeName(), dt).
		WithDetail("field", path).
		WithDetail("from", val.TypeName()).
		WithDetail("to", dt.String())
}

// formatDouble renders f in plain decimal notation with the fewest digits
// that round-trip.
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func truncInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func truncInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}
