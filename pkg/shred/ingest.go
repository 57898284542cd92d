package shred

import (
	"github.com/ajitpratap0/shredder/pkg/document"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// AppendRecord appends doc as one row, failing with an unknown_field error
// if doc has a top-level key the schema does not name. Embedded documents
// are always projected onto their struct field.
func (b *RecordStructBuilder) AppendRecord(doc document.Document) error {
	return b.append(doc, true)
}

// ProjectAndAppend appends doc as one row, silently dropping keys the schema
// does not name. Unknown keys never cause a failure, but the row must still
// satisfy the schema: a non-nullable field that doc omits or sets to null
// fails with a null_violation error and no row is added, since Arrow could
// not represent the row otherwise.
func (b *RecordStructBuilder) ProjectAndAppend(doc document.Document) error {
	return b.append(doc, false)
}

// append resolves every field of doc before touching a builder, so a failed
// document leaves all columns as they were.
func (b *RecordStructBuilder) append(doc document.Document, strict bool) error {
	if b.finished {
		return finishedError()
	}
	if err := b.resolve(doc, strict); err != nil {
		return err
	}
	b.commit()
	return nil
}

// resolve coerces the pairs of doc into b.plan and records which columns
// were seen in b.present.
func (b *RecordStructBuilder) resolve(doc document.Document, strict bool) error {
	b.present.ClearAll()

	err := doc.Range(func(key string, val document.Value) error {
		idx, ok := b.index[key]
		if !ok {
			if strict {
				p := joinPath(b.path, key)
				return shrederrors.Newf(shrederrors.ErrorTypeUnknownField,
					"field %q is not in the schema", p).WithDetail("field", p)
			}
			b.trace(joinPathIfTraced(b, key), -1, ActionSkipUnknown)
			return nil
		}

		action := ActionAppend
		if b.present.Test(uint(idx)) {
			switch b.opts.duplicate {
			case KeepFirst:
				b.trace(b.paths[idx], idx, ActionSkipDuplicate)
				return nil
			case RejectDuplicates:
				return shrederrors.Newf(shrederrors.ErrorTypeDuplicateField,
					"field %q appears more than once", b.paths[idx]).
					WithDetail("field", b.paths[idx])
			}
			action = ActionReplaceDuplicate
		}

		if err := b.columns[idx].resolve(val, &b.plan[idx], b.opts, b.paths[idx]); err != nil {
			return err
		}
		b.present.Set(uint(idx))
		b.trace(b.paths[idx], idx, action)
		return nil
	})
	if err != nil {
		return err
	}

	for i, col := range b.columns {
		if b.present.Test(uint(i)) && !b.plan[i].null {
			continue
		}
		if !col.nullable() {
			return nullViolation(b.paths[i])
		}
	}
	return nil
}

// commit appends the resolved row. It cannot fail.
func (b *RecordStructBuilder) commit() {
	for i, col := range b.columns {
		if b.present.Test(uint(i)) {
			col.appendCell(&b.plan[i])
			continue
		}
		col.appendNull()
		b.trace(b.paths[i], i, ActionNullFill)
	}
}

func (b *RecordStructBuilder) trace(path string, column int, action Action) {
	if b.opts.tracer == nil {
		return
	}
	b.opts.tracer.TraceField(path, column, action)
}

// joinPathIfTraced avoids building the path of a dropped key when nobody
// will see it.
func joinPathIfTraced(b *RecordStructBuilder, key string) string {
	if b.opts.tracer == nil {
		return ""
	}
	return joinPath(b.path, key)
}
