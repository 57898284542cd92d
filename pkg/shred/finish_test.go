package shred

import (
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/shredder/pkg/document"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

var allTypesFields = []arrow.Field{
	{Name: "b", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	{Name: "i32", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "i64", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "f64", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "ls", Type: arrow.BinaryTypes.LargeString, Nullable: true},
	{Name: "bin", Type: arrow.BinaryTypes.Binary, Nullable: true},
	{Name: "lbin", Type: arrow.BinaryTypes.LargeBinary, Nullable: true},
	{Name: "dec", Type: &arrow.Decimal128Type{Precision: 20, Scale: 2}, Nullable: true},
	{Name: "ts", Type: arrow.FixedWidthTypes.Timestamp_ms, Nullable: true},
	{Name: "d32", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
	{Name: "d64", Type: arrow.FixedWidthTypes.Date64, Nullable: true},
	{Name: "st", Type: arrow.StructOf(
		arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	), Nullable: true},
}

func allTypesDoc(n int) document.D {
	return document.D{
		{Key: "b", Value: document.Bool(n%2 == 0)},
		{Key: "i32", Value: document.Int32(int32(n))},
		{Key: "i64", Value: document.Int64(int64(n) * 10)},
		{Key: "f64", Value: document.Double(float64(n) / 2)},
		{Key: "s", Value: document.String("row")},
		{Key: "ls", Value: document.String("large")},
		{Key: "bin", Value: document.Binary(0, []byte{byte(n)})},
		{Key: "lbin", Value: document.Binary(0, []byte{byte(n), 1})},
		{Key: "dec", Value: document.Decimal128(primitive.NewDecimal128(0, uint64(n)))},
		{Key: "ts", Value: document.DateTime(int64(n) * 1000)},
		{Key: "d32", Value: document.Timestamp(uint32(n), 0)},
		{Key: "d64", Value: document.DateTime(int64(n))},
		{Key: "st", Value: document.Doc(document.D{{Key: "x", Value: document.Int64(int64(n))}})},
	}
}

func TestFinishClonedKeepsBuilderLive(t *testing.T) {
	mem := checkedMem(t)
	b, err := New(allTypesFields, 4, WithAllocator(mem))
	require.NoError(t, err)

	require.NoError(t, b.AppendRecord(allTypesDoc(1)))
	require.NoError(t, b.AppendNulls())

	snapshot, err := b.FinishCloned()
	require.NoError(t, err)
	defer snapshot.Release()
	assert.Equal(t, 2, snapshot.Len())
	assert.Equal(t, 2, b.Len())

	require.NoError(t, b.AppendRecord(allTypesDoc(2)))
	assert.Equal(t, 3, b.Len())

	final, err := b.Finish()
	require.NoError(t, err)
	defer final.Release()
	require.Equal(t, 3, final.Len())

	for i := 0; i < final.NumField(); i++ {
		assert.True(t, array.SliceEqual(snapshot.Field(i), 0, 2, final.Field(i), 0, 2),
			"column %s differs after clone", allTypesFields[i].Name)
	}
	assert.True(t, final.Field(0).IsNull(1))
	assert.Equal(t, int32(2), final.Field(1).(*array.Int32).Value(2))
	assert.Equal(t, arrow.Date32(2), final.Field(10).(*array.Date32).Value(2))
	assert.Equal(t, int64(2), final.Field(12).(*array.Struct).Field(0).(*array.Int64).Value(2))
}

func TestFinishRecordCloned(t *testing.T) {
	mem := checkedMem(t)
	b, err := New(allTypesFields, 1, WithAllocator(mem))
	require.NoError(t, err)
	defer b.Release()

	require.NoError(t, b.AppendRecord(allTypesDoc(3)))

	rec, err := b.FinishRecordCloned()
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(1), rec.NumRows())
	assert.Equal(t, int64(len(allTypesFields)), rec.NumCols())
	assert.Equal(t, "large", rec.Column(5).(*array.LargeString).Value(0))
	assert.Equal(t, 1, b.Len())
}

func TestFinishedBuilderRejectsUse(t *testing.T) {
	mem := checkedMem(t)
	b, err := New(exampleFields, 1, WithAllocator(mem))
	require.NoError(t, err)

	arr, err := b.Finish()
	require.NoError(t, err)
	arr.Release()

	assert.Equal(t, 0, b.Len())
	for _, err := range []error{
		b.AppendRecord(document.D{}),
		b.ProjectAndAppend(document.D{}),
		b.AppendNulls(),
	} {
		assert.True(t, errors.Is(err, shrederrors.ErrBuilderFinished))
	}

	_, err = b.Finish()
	assert.True(t, errors.Is(err, shrederrors.ErrBuilderFinished))
	_, err = b.FinishCloned()
	assert.True(t, errors.Is(err, shrederrors.ErrBuilderFinished))
	_, err = b.FinishRecord()
	assert.True(t, errors.Is(err, shrederrors.ErrBuilderFinished))

	// Release after Finish is a no-op
	b.Release()
}

func TestFinishEmptyBuilder(t *testing.T) {
	mem := checkedMem(t)
	b, err := New(exampleFields, 8, WithAllocator(mem))
	require.NoError(t, err)

	rec, err := b.FinishRecord()
	require.NoError(t, err)
	defer rec.Release()
	assert.Equal(t, int64(0), rec.NumRows())
	assert.Equal(t, int64(3), rec.NumCols())
}
