package shred

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"

	"github.com/ajitpratap0/shredder/pkg/document"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// ColumnBuilder accumulates the values of one schema field. The set of
// implementations is closed: use NewColumnBuilder, WrapBuilder or
// RecordStructBuilder.AsColumn to obtain one.
type ColumnBuilder interface {
	// DataType is the Arrow type of the column being built.
	DataType() arrow.DataType
	// Len is the number of values appended so far.
	Len() int

	column
}

type column interface {
	resolve(val document.Value, out *cell, o *options, path string) error
	appendCell(c *cell)
	appendNull()
	reserve(n int)
	nullable() bool
	setNullable(bool)
	newArray() (arrow.Array, error)
	cloneArray() (arrow.Array, error)
	release()
}

// cell is one resolved value waiting to be committed. Only the member
// matching the column type is meaningful.
type cell struct {
	null bool
	b    bool
	i    int64
	f    float64
	s    string
	bin  []byte
	dec  decimal128.Num
}

func (c *cell) reset() { *c = cell{} }

type appender[T any] interface {
	array.Builder
	Append(v T)
}

type valuer[T any] interface {
	arrow.Array
	Value(i int) T
}

// scalarColumn wraps one concrete Arrow builder. get reads the committed
// value out of a resolved cell.
type scalarColumn[T any] struct {
	b        appender[T]
	get      func(c *cell) T
	nullOK   bool
	released bool
}

func newScalar[T any](b appender[T], get func(c *cell) T) *scalarColumn[T] {
	return &scalarColumn[T]{b: b, get: get, nullOK: true}
}

func (c *scalarColumn[T]) DataType() arrow.DataType { return c.b.Type() }

func (c *scalarColumn[T]) Len() int { return c.b.Len() }

func (c *scalarColumn[T]) resolve(val document.Value, out *cell, o *options, path string) error {
	return coerce(val, c.b.Type(), out, o, path)
}

func (c *scalarColumn[T]) appendCell(v *cell) {
	if v.null {
		c.b.AppendNull()
		return
	}
	c.b.Append(c.get(v))
}

func (c *scalarColumn[T]) appendNull() { c.b.AppendNull() }

func (c *scalarColumn[T]) reserve(n int) { c.b.Reserve(n) }

func (c *scalarColumn[T]) nullable() bool { return c.nullOK }

func (c *scalarColumn[T]) setNullable(ok bool) { c.nullOK = ok }

func (c *scalarColumn[T]) newArray() (arrow.Array, error) { return c.b.NewArray(), nil }

// cloneArray drains the builder into an array and appends the drained values
// back, leaving the builder as it was.
func (c *scalarColumn[T]) cloneArray() (arrow.Array, error) {
	arr := c.b.NewArray()
	vals, ok := arr.(valuer[T])
	if !ok {
		arr.Release()
		return nil, shrederrors.Newf(shrederrors.ErrorTypeInternal,
			"array %T does not expose values of the builder type", arr)
	}

	n := arr.Len()
	c.b.Reserve(n)
	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			c.b.AppendNull()
			continue
		}
		c.b.Append(vals.Value(i))
	}
	return arr, nil
}

func (c *scalarColumn[T]) release() {
	if c.released {
		return
	}
	c.released = true
	c.b.Release()
}

// structColumn holds a nested record builder for a struct field.
type structColumn struct {
	dt     *arrow.StructType
	nested *RecordStructBuilder
	nullOK bool
}

func (c *structColumn) DataType() arrow.DataType { return c.dt }

func (c *structColumn) Len() int { return c.nested.Len() }

// resolve plans the nested row into the nested builder's scratch space. A
// struct column accepts only documents (or null); nested levels always
// project, dropping keys their schema does not name, and apply their own
// options.
func (c *structColumn) resolve(val document.Value, out *cell, _ *options, path string) error {
	out.reset()
	switch val.Kind() {
	case document.KindNull:
		out.null = true
		return nil
	case document.KindDocument:
		return c.nested.resolve(val.Document(), false)
	default:
		return unsupported(val, c.dt, path)
	}
}

func (c *structColumn) appendCell(v *cell) {
	if v.null {
		c.nested.appendNullRow()
		return
	}
	c.nested.commit()
}

func (c *structColumn) appendNull() { c.nested.appendNullRow() }

func (c *structColumn) reserve(n int) {
	for _, col := range c.nested.columns {
		col.reserve(n)
	}
}

// nullable reports whether a null row can be appended, which requires every
// nested column to accept nulls as well.
func (c *structColumn) nullable() bool {
	if !c.nullOK {
		return false
	}
	for _, col := range c.nested.columns {
		if !col.nullable() {
			return false
		}
	}
	return true
}

func (c *structColumn) setNullable(ok bool) { c.nullOK = ok }

func (c *structColumn) newArray() (arrow.Array, error) {
	arr, err := c.nested.Finish()
	if err != nil {
		return nil, err
	}
	return arr, nil
}

func (c *structColumn) cloneArray() (arrow.Array, error) {
	arr, err := c.nested.FinishCloned()
	if err != nil {
		return nil, err
	}
	return arr, nil
}

func (c *structColumn) release() { c.nested.Release() }

func cellBool(c *cell) bool { return c.b }
func cellInt32(c *cell) int32 { return int32(c.i) }
func cellInt64(c *cell) int64 { return c.i }
func cellFloat64(c *cell) float64 { return c.f }
func cellString(c *cell) string { return c.s }
func cellBytes(c *cell) []byte { return c.bin }
func cellDecimal(c *cell) decimal128.Num { return c.dec }
func cellTimestamp(c *cell) arrow.Timestamp { return arrow.Timestamp(c.i) }
func cellDate32(c *cell) arrow.Date32 { return arrow.Date32(c.i) }
func cellDate64(c *cell) arrow.Date64 { return arrow.Date64(c.i) }

// NewColumnBuilder creates the column builder for field with room for
// capacity rows. Struct fields get a nested RecordStructBuilder.
func NewColumnBuilder(field arrow.Field, capacity int, opts ...Option) (ColumnBuilder, error) {
	return newColumn(field, capacity, newOptions(opts), 0, "")
}

func newColumn(field arrow.Field, capacity int, o *options, depth int, parent string) (ColumnBuilder, error) {
	path := joinPath(parent, field.Name)
	mem := o.mem

	var col ColumnBuilder
	switch dt := field.Type.(type) {
	case *arrow.BooleanType:
		col = newScalar[bool](array.NewBooleanBuilder(mem), cellBool)
	case *arrow.Int32Type:
		col = newScalar[int32](array.NewInt32Builder(mem), cellInt32)
	case *arrow.Int64Type:
		col = newScalar[int64](array.NewInt64Builder(mem), cellInt64)
	case *arrow.Float64Type:
		col = newScalar[float64](array.NewFloat64Builder(mem), cellFloat64)
	case *arrow.StringType:
		b := array.NewStringBuilder(mem)
		b.ReserveData(capacity * o.valueBytes)
		col = newScalar[string](b, cellString)
	case *arrow.LargeStringType:
		b := array.NewLargeStringBuilder(mem)
		b.ReserveData(capacity * o.valueBytes)
		col = newScalar[string](b, cellString)
	case *arrow.BinaryType:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		b.ReserveData(capacity * o.valueBytes)
		col = newScalar[[]byte](b, cellBytes)
	case *arrow.LargeBinaryType:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.LargeBinary)
		b.ReserveData(capacity * o.valueBytes)
		col = newScalar[[]byte](b, cellBytes)
	case *arrow.Decimal128Type:
		col = newScalar[decimal128.Num](array.NewDecimal128Builder(mem, dt), cellDecimal)
	case *arrow.TimestampType:
		if dt.Unit == arrow.Nanosecond {
			return nil, shrederrors.Newf(shrederrors.ErrorTypeConstruction,
				"field %q: timestamp unit %s is not supported", path, dt.Unit).
				WithDetail("field", path)
		}
		col = newScalar[arrow.Timestamp](array.NewTimestampBuilder(mem, dt), cellTimestamp)
	case *arrow.Date32Type:
		col = newScalar[arrow.Date32](array.NewDate32Builder(mem), cellDate32)
	case *arrow.Date64Type:
		col = newScalar[arrow.Date64](array.NewDate64Builder(mem), cellDate64)
	case *arrow.StructType:
		if depth+1 > o.maxDepth {
			return nil, shrederrors.Newf(shrederrors.ErrorTypeConstruction,
				"field %q: struct nesting exceeds max depth %d", path, o.maxDepth).
				WithDetail("field", path)
		}
		nested, err := newBuilder(dt.Fields(), capacity, o, depth+1, path)
		if err != nil {
			return nil, err
		}
		col = &structColumn{dt: dt, nested: nested, nullOK: true}
	default:
		return nil, shrederrors.Newf(shrederrors.ErrorTypeConstruction,
			"field %q: unsupported column type %s", path, field.Type).
			WithDetail("field", path)
	}

	col.setNullable(field.Nullable)
	col.reserve(capacity)
	return col, nil
}

// WrapBuilder adopts a caller-constructed Arrow builder as a column. The
// builder is owned by the column afterwards and released with it. Struct
// columns are supplied through RecordStructBuilder.AsColumn instead.
func WrapBuilder(b array.Builder) (ColumnBuilder, error) {
	switch bb := b.(type) {
	case *array.BooleanBuilder:
		return newScalar[bool](bb, cellBool), nil
	case *array.Int32Builder:
		return newScalar[int32](bb, cellInt32), nil
	case *array.Int64Builder:
		return newScalar[int64](bb, cellInt64), nil
	case *array.Float64Builder:
		return newScalar[float64](bb, cellFloat64), nil
	case *array.StringBuilder:
		return newScalar[string](bb, cellString), nil
	case *array.LargeStringBuilder:
		return newScalar[string](bb, cellString), nil
	case *array.BinaryBuilder:
		return newScalar[[]byte](bb, cellBytes), nil
	case *array.Decimal128Builder:
		return newScalar[decimal128.Num](bb, cellDecimal), nil
	case *array.TimestampBuilder:
		if bb.Type().(*arrow.TimestampType).Unit == arrow.Nanosecond {
			return nil, shrederrors.New(shrederrors.ErrorTypeConstruction,
				"nanosecond timestamp builders are not supported")
		}
		return newScalar[arrow.Timestamp](bb, cellTimestamp), nil
	case *array.Date32Builder:
		return newScalar[arrow.Date32](bb, cellDate32), nil
	case *array.Date64Builder:
		return newScalar[arrow.Date64](bb, cellDate64), nil
	default:
		return nil, shrederrors.Newf(shrederrors.ErrorTypeConstruction,
			"unsupported builder %T", b)
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
