package shred

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// Finish returns the accumulated rows as a struct array and releases the
// builder. Later calls on b fail with a finished error. The caller owns the
// returned array.
func (b *RecordStructBuilder) Finish() (*array.Struct, error) {
	if b.finished {
		return nil, finishedError()
	}
	b.finished = true
	defer b.releaseColumns()

	return b.build(func(col ColumnBuilder) (arrow.Array, error) { return col.newArray() })
}

// FinishCloned returns the accumulated rows as a struct array while leaving
// the builder intact, so appending can continue after it.
func (b *RecordStructBuilder) FinishCloned() (*array.Struct, error) {
	if b.finished {
		return nil, finishedError()
	}
	return b.build(func(col ColumnBuilder) (arrow.Array, error) { return col.cloneArray() })
}

// FinishRecord is Finish returning a record batch with the builder's schema.
func (b *RecordStructBuilder) FinishRecord() (arrow.Record, error) {
	arr, err := b.Finish()
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	return array.RecordFromStructArray(arr, b.Schema()), nil
}

// FinishRecordCloned is FinishCloned returning a record batch.
func (b *RecordStructBuilder) FinishRecordCloned() (arrow.Record, error) {
	arr, err := b.FinishCloned()
	if err != nil {
		return nil, err
	}
	defer arr.Release()
	return array.RecordFromStructArray(arr, b.Schema()), nil
}

func (b *RecordStructBuilder) build(drain func(ColumnBuilder) (arrow.Array, error)) (*array.Struct, error) {
	arrays := make([]arrow.Array, 0, len(b.columns))
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()

	for _, col := range b.columns {
		arr, err := drain(col)
		if err != nil {
			return nil, err
		}
		arrays = append(arrays, arr)
	}

	out, err := array.NewStructArrayWithFields(arrays, b.fields)
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeInternal, "assemble struct array")
	}
	return out, nil
}
