package document

import (
	"go.mongodb.org/mongo-driver/bson"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// Raw is an encoded BSON document.
type Raw bson.Raw

// RawArray is an encoded BSON array (a document keyed "0", "1", ...).
type RawArray bson.Raw

func (r Raw) Range(fn func(key string, val Value) error) error {
	elems, err := bson.Raw(r).Elements()
	if err != nil {
		return malformed(err, "iterate document")
	}

	for _, elem := range elems {
		key, err := elem.KeyErr()
		if err != nil {
			return malformed(err, "read element key")
		}
		rv, err := elem.ValueErr()
		if err != nil {
			return malformed(err, "read element value").WithDetail("field", key)
		}
		val, err := FromRawValue(rv)
		if err != nil {
			return err
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (a RawArray) Range(fn func(val Value) error) error {
	values, err := bson.Raw(a).Values()
	if err != nil {
		return malformed(err, "iterate array")
	}

	for _, rv := range values {
		val, err := FromRawValue(rv)
		if err != nil {
			return err
		}
		if err := fn(val); err != nil {
			return err
		}
	}
	return nil
}

// FromRawValue converts a single BSON value. Nested documents and arrays are
// not decoded; they are wrapped as Raw and RawArray.
func FromRawValue(rv bson.RawValue) (Value, error) {
	var (
		val Value
		ok  bool
	)

	switch rv.Type {
	case bson.TypeBoolean:
		var b bool
		b, ok = rv.BooleanOK()
		val = Bool(b)
	case bson.TypeDouble:
		var f float64
		f, ok = rv.DoubleOK()
		val = Double(f)
	case bson.TypeInt32:
		var i int32
		i, ok = rv.Int32OK()
		val = Int32(i)
	case bson.TypeInt64:
		var i int64
		i, ok = rv.Int64OK()
		val = Int64(i)
	case bson.TypeString:
		var s string
		s, ok = rv.StringValueOK()
		val = String(s)
	case bson.TypeBinary:
		subtype, data, bok := rv.BinaryOK()
		ok = bok
		val = Binary(subtype, data)
	case bson.TypeObjectID:
		oid, ook := rv.ObjectIDOK()
		ok = ook
		val = ObjectID(oid)
	case bson.TypeTimestamp:
		t, i, tok := rv.TimestampOK()
		ok = tok
		val = Timestamp(t, i)
	case bson.TypeDateTime:
		var ms int64
		ms, ok = rv.DateTimeOK()
		val = DateTime(ms)
	case bson.TypeEmbeddedDocument:
		var doc bson.Raw
		doc, ok = rv.DocumentOK()
		val = Doc(Raw(doc))
	case bson.TypeArray:
		var arr bson.Raw
		arr, ok = rv.ArrayOK()
		val = Arr(RawArray(arr))
	case bson.TypeDecimal128:
		d, dok := rv.Decimal128OK()
		ok = dok
		val = Decimal128(d)
	case bson.TypeNull, bson.TypeUndefined:
		return Null(), nil
	default:
		if err := rv.Validate(); err != nil {
			return Value{}, malformed(err, "validate value")
		}
		return Other(rv.Type.String()), nil
	}

	if !ok {
		return Value{}, shrederrors.Newf(shrederrors.ErrorTypeMalformedDocument,
			"value bytes do not decode as %s", rv.Type)
	}
	return val, nil
}

func malformed(err error, msg string) *shrederrors.Error {
	return shrederrors.Wrap(err, shrederrors.ErrorTypeMalformedDocument, msg)
}
