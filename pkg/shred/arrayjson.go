package shred

import (
	"bytes"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/shredder/pkg/document"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// maxArrayNesting bounds recursion while converting in-memory arrays.
const maxArrayNesting = 100

// arrayKey wraps an array in a one-field document, since extended JSON is
// only written for documents.
const arrayKey = "a"

var (
	wrapPrefix = []byte(`{"` + arrayKey + `":`)
	wrapSuffix = []byte(`}`)
)

// arrayJSON renders arr as relaxed extended JSON without HTML escaping.
// Encoded arrays are handed to the driver as they are; in-memory arrays are
// converted to driver values first. Key order inside embedded documents is
// preserved.
func arrayJSON(arr document.Array, path string) (string, error) {
	var val interface{}
	if raw, ok := arr.(document.RawArray); ok {
		val = bson.RawValue{Type: bson.TypeArray, Value: raw}
	} else {
		a, err := toBSONArray(arr, path, 0)
		if err != nil {
			return "", err
		}
		val = a
	}

	out, err := bson.MarshalExtJSON(bson.D{{Key: arrayKey, Value: val}}, false, false)
	if err != nil {
		return "", shrederrors.Wrap(err, shrederrors.ErrorTypeMalformedDocument,
			"field "+strconv.Quote(path)+": encode array as extended JSON").
			WithDetail("field", path)
	}
	out = bytes.TrimSuffix(bytes.TrimPrefix(out, wrapPrefix), wrapSuffix)
	return string(out), nil
}

func toBSONArray(arr document.Array, path string, depth int) (bson.A, error) {
	if depth >= maxArrayNesting {
		return nil, arrayFailure(path, "array nesting exceeds %d levels", maxArrayNesting)
	}
	out := bson.A{}
	err := arr.Range(func(v document.Value) error {
		bv, err := toBSONValue(v, path, depth+1)
		if err != nil {
			return err
		}
		out = append(out, bv)
		return nil
	})
	return out, err
}

func toBSONDocument(doc document.Document, path string, depth int) (interface{}, error) {
	if raw, ok := doc.(document.Raw); ok {
		return bson.Raw(raw), nil
	}
	if depth >= maxArrayNesting {
		return nil, arrayFailure(path, "array nesting exceeds %d levels", maxArrayNesting)
	}
	out := bson.D{}
	err := doc.Range(func(key string, v document.Value) error {
		bv, err := toBSONValue(v, path, depth+1)
		if err != nil {
			return err
		}
		out = append(out, bson.E{Key: key, Value: bv})
		return nil
	})
	return out, err
}

func toBSONValue(v document.Value, path string, depth int) (interface{}, error) {
	switch v.Kind() {
	case document.KindNull:
		return nil, nil
	case document.KindBoolean:
		return v.Boolean(), nil
	case document.KindInt32:
		return v.Int32(), nil
	case document.KindInt64:
		return v.Int64(), nil
	case document.KindDouble:
		return v.Double(), nil
	case document.KindString:
		return v.StringValue(), nil
	case document.KindObjectID:
		return v.ObjectID(), nil
	case document.KindDateTime:
		return primitive.DateTime(v.DateTime()), nil
	case document.KindTimestamp:
		t, i := v.Timestamp()
		return primitive.Timestamp{T: t, I: i}, nil
	case document.KindBinary:
		sub, data := v.Binary()
		return primitive.Binary{Subtype: sub, Data: data}, nil
	case document.KindDecimal128:
		return v.Decimal128(), nil
	case document.KindDocument:
		return toBSONDocument(v.Document(), path, depth)
	case document.KindArray:
		if raw, ok := v.Array().(document.RawArray); ok {
			return bson.RawValue{Type: bson.TypeArray, Value: raw}, nil
		}
		return toBSONArray(v.Array(), path, depth)
	}
	return nil, arrayFailure(path, "array element of type %s has no JSON form", v.TypeName())
}

func arrayFailure(path, format string, args ...interface{}) error {
	return shrederrors.Newf(shrederrors.ErrorTypeUnsupportedConversion,
		"field %q: "+format, append([]interface{}{path}, args...)...).
		WithDetail("field", path)
}
