package shred

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/shredder/pkg/document"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

func TestArrayJSON(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("65e1f0a2b3c4d5e6f7a8b9c0")
	require.NoError(t, err)
	dec, err := primitive.ParseDecimal128("1.5")
	require.NoError(t, err)

	arr := document.A{
		document.Int32(1),
		document.String("two"),
		document.Double(1),
		document.Double(0.5),
		document.Bool(true),
		document.Null(),
		document.ObjectID(oid),
		document.DateTime(0),
		document.Timestamp(5, 1),
		document.Binary(0, []byte{1, 2}),
		document.Decimal128(dec),
		document.Doc(document.D{{Key: "k", Value: document.Int64(3)}, {Key: "a", Value: document.String("<&>")}}),
		document.Arr(document.A{}),
	}

	got, err := arrayJSON(arr, "tags")
	require.NoError(t, err)
	assert.Equal(t, `[1,"two",1.0,0.5,true,null,{"$oid":"65e1f0a2b3c4d5e6f7a8b9c0"},`+
		`{"$date":"1970-01-01T00:00:00Z"},{"$timestamp":{"t":5,"i":1}},`+
		`{"$binary":{"base64":"AQI=","subType":"00"}},{"$numberDecimal":"1.5"},`+
		`{"k":3,"a":"<&>"},[]]`, got)
}

func TestArrayJSONSpecialValues(t *testing.T) {
	tests := []struct {
		name string
		val  document.Value
		want string
	}{
		{"nan", document.Double(math.NaN()), `[{"$numberDouble":"NaN"}]`},
		{"infinity", document.Double(math.Inf(1)), `[{"$numberDouble":"Infinity"}]`},
		{"small double", document.Double(1e-7), `[1E-07]`},
		{"negative zero fraction", document.Double(-2), `[-2.0]`},
		{"datetime before epoch", document.DateTime(-1), `[{"$date":{"$numberLong":"-1"}}]`},
		{"datetime with millis", document.DateTime(1709294400123), `[{"$date":"2024-03-01T12:00:00.123Z"}]`},
		{"int64", document.Int64(1 << 40), `[1099511627776]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := arrayJSON(document.A{tt.val}, "v")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArrayJSONFromRawBSON(t *testing.T) {
	raw, err := bson.Marshal(bson.D{{Key: "tags", Value: bson.A{"a", int32(2), bson.A{true}}}})
	require.NoError(t, err)

	var got string
	err = document.Raw(raw).Range(func(_ string, v document.Value) error {
		s, err := arrayJSON(v.Array(), "tags")
		got = s
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, `["a",2,[true]]`, got)
}

func TestArrayJSONMatchesDriver(t *testing.T) {
	arr := bson.A{
		"<a&b>",
		1.5,
		int64(1) << 40,
		primitive.DateTime(1709294400123),
		primitive.Regex{Pattern: "^a", Options: "i"},
		bson.D{{Key: "z", Value: int32(1)}, {Key: "a", Value: nil}},
	}
	raw, err := bson.Marshal(bson.D{{Key: "tags", Value: arr}})
	require.NoError(t, err)

	want, err := bson.MarshalExtJSON(bson.D{{Key: "tags", Value: arr}}, false, false)
	require.NoError(t, err)

	got, err := arrayJSON(document.RawArray(bson.Raw(raw).Lookup("tags").Array()), "tags")
	require.NoError(t, err)
	assert.Equal(t, string(want), `{"tags":`+got+`}`)
	assert.Contains(t, got, `"<a&b>"`)
	assert.Contains(t, got, `{"$regularExpression":{"pattern":"^a","options":"i"}}`)
}

func TestArrayJSONRejectsOpaqueElements(t *testing.T) {
	_, err := arrayJSON(document.A{document.Int32(1), document.Other("javascript")}, "code")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shrederrors.ErrUnsupportedConversion))
}
