// Package shred converts streams of documents into Apache Arrow columnar
// batches.
//
// A RecordStructBuilder is created from a fixed schema (a list of Arrow
// fields) and holds one column builder per field. Each ingested document
// contributes exactly one row: values are coerced into their column type,
// absent fields become nulls, and embedded documents are shredded
// recursively into struct columns. Ingestion is atomic per document. If any
// field fails, no column is touched and the builder length is unchanged.
//
//	b, err := shred.New([]arrow.Field{
//	    {Name: "idx", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
//	    {Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
//	}, 1024)
//	if err != nil {
//	    return err
//	}
//	defer b.Release()
//
//	if err := b.AppendRecord(document.Raw(raw)); err != nil {
//	    // the document was rejected; b.Len() is unchanged
//	}
//	rec, err := b.FinishRecord()
//
// A RecordStructBuilder is not safe for concurrent use.
package shred

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/bits-and-blooms/bitset"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// RecordStructBuilder builds one Arrow struct array (or record batch) from
// documents sharing a schema.
type RecordStructBuilder struct {
	fields  []arrow.Field
	index   map[string]int
	paths   []string
	columns []ColumnBuilder
	opts    *options
	path    string

	// per-document scratch, reused across calls
	present *bitset.BitSet
	plan    []cell

	finished bool
}

// New creates a builder for fields with room for capacity rows. Struct
// fields are built recursively, up to the configured max depth.
func New(fields []arrow.Field, capacity int, opts ...Option) (*RecordStructBuilder, error) {
	return newBuilder(fields, capacity, newOptions(opts), 0, "")
}

func newBuilder(fields []arrow.Field, capacity int, o *options, depth int, path string) (*RecordStructBuilder, error) {
	if capacity < 0 {
		capacity = 0
	}

	columns := make([]ColumnBuilder, 0, len(fields))
	for _, f := range fields {
		col, err := newColumn(f, capacity, o, depth, path)
		if err != nil {
			for _, c := range columns {
				c.release()
			}
			return nil, err
		}
		columns = append(columns, col)
	}

	b, err := assemble(fields, columns, o, path)
	if err != nil {
		for _, c := range columns {
			c.release()
		}
		return nil, err
	}
	return b, nil
}

// NewWithBuilders creates a builder over caller-supplied columns, one per
// field and in field order. Each column's type must equal its field's type
// and all columns must hold the same number of rows. The builder takes
// ownership of the columns, including on error.
func NewWithBuilders(fields []arrow.Field, columns []ColumnBuilder, opts ...Option) (*RecordStructBuilder, error) {
	o := newOptions(opts)

	b, err := func() (*RecordStructBuilder, error) {
		if len(fields) != len(columns) {
			return nil, shrederrors.Newf(shrederrors.ErrorTypeConstruction,
				"%d fields but %d column builders", len(fields), len(columns))
		}
		for i, f := range fields {
			col := columns[i]
			if col == nil {
				return nil, shrederrors.Newf(shrederrors.ErrorTypeConstruction,
					"field %q: nil column builder", f.Name).WithDetail("field", f.Name)
			}
			if !arrow.TypeEqual(col.DataType(), f.Type) {
				return nil, shrederrors.Newf(shrederrors.ErrorTypeConstruction,
					"field %q: column builder type %s does not match field type %s",
					f.Name, col.DataType(), f.Type).WithDetail("field", f.Name)
			}
			if col.Len() != columns[0].Len() {
				return nil, shrederrors.Newf(shrederrors.ErrorTypeConstruction,
					"field %q: column builder holds %d rows, expected %d",
					f.Name, col.Len(), columns[0].Len()).WithDetail("field", f.Name)
			}
			col.setNullable(f.Nullable)
			if sc, ok := col.(*structColumn); ok {
				sc.nested.rebase(f.Name)
			}
		}
		return assemble(fields, columns, o, "")
	}()
	if err != nil {
		for _, c := range columns {
			if c != nil {
				c.release()
			}
		}
		return nil, err
	}
	return b, nil
}

func assemble(fields []arrow.Field, columns []ColumnBuilder, o *options, path string) (*RecordStructBuilder, error) {
	if len(fields) == 0 {
		return nil, shrederrors.New(shrederrors.ErrorTypeConstruction,
			"schema has no fields").WithDetail("field", path)
	}

	index := make(map[string]int, len(fields))
	paths := make([]string, len(fields))
	for i, f := range fields {
		if _, dup := index[f.Name]; dup {
			p := joinPath(path, f.Name)
			return nil, shrederrors.Newf(shrederrors.ErrorTypeConstruction,
				"field %q is declared more than once", p).WithDetail("field", p)
		}
		index[f.Name] = i
		paths[i] = joinPath(path, f.Name)
	}

	return &RecordStructBuilder{
		fields:  append([]arrow.Field(nil), fields...),
		index:   index,
		paths:   paths,
		columns: columns,
		opts:    o,
		path:    path,
		present: bitset.New(uint(len(fields))),
		plan:    make([]cell, len(fields)),
	}, nil
}

// rebase re-roots the dotted paths used in error messages under parent.
func (b *RecordStructBuilder) rebase(parent string) {
	b.path = parent
	for i, f := range b.fields {
		b.paths[i] = joinPath(parent, f.Name)
		if sc, ok := b.columns[i].(*structColumn); ok {
			sc.nested.rebase(b.paths[i])
		}
	}
}

// AsColumn exposes b as the column builder of a struct field, for use with
// NewWithBuilders. The parent builder takes ownership of b.
func (b *RecordStructBuilder) AsColumn() ColumnBuilder {
	return &structColumn{dt: arrow.StructOf(b.fields...), nested: b, nullOK: true}
}

// Len returns the number of rows appended so far.
func (b *RecordStructBuilder) Len() int {
	if b.finished {
		return 0
	}
	return b.columns[0].Len()
}

// IsEmpty reports whether no rows have been appended.
func (b *RecordStructBuilder) IsEmpty() bool { return b.Len() == 0 }

// NumColumns returns the number of top-level fields.
func (b *RecordStructBuilder) NumColumns() int { return len(b.fields) }

// Fields returns a copy of the schema fields.
func (b *RecordStructBuilder) Fields() []arrow.Field {
	return append([]arrow.Field(nil), b.fields...)
}

// Schema returns the schema of the record batches produced by FinishRecord.
func (b *RecordStructBuilder) Schema() *arrow.Schema {
	return arrow.NewSchema(b.fields, nil)
}

// AppendNulls appends a row that is null in every column. It fails without
// appending if any column is not nullable.
func (b *RecordStructBuilder) AppendNulls() error {
	if b.finished {
		return finishedError()
	}
	for i, col := range b.columns {
		if !col.nullable() {
			return nullViolation(b.paths[i])
		}
	}
	b.appendNullRow()
	return nil
}

func (b *RecordStructBuilder) appendNullRow() {
	for _, col := range b.columns {
		col.appendNull()
	}
}

// Release frees the column builders. The builder cannot be used afterwards.
// Release after Finish is a no-op.
func (b *RecordStructBuilder) Release() {
	if b.finished {
		return
	}
	b.finished = true
	b.releaseColumns()
}

func (b *RecordStructBuilder) releaseColumns() {
	for _, col := range b.columns {
		col.release()
	}
}

func finishedError() error {
	return shrederrors.New(shrederrors.ErrorTypeFinished, "builder already finished")
}

func nullViolation(path string) error {
	return shrederrors.Newf(shrederrors.ErrorTypeNullViolation,
		"field %q is not nullable", path).WithDetail("field", path)
}
