// Package document defines the input unit of the shredder: an ordered,
// possibly duplicate-keyed sequence of key/value pairs whose values are
// dynamically typed.
//
// Two implementations are provided. Raw iterates an encoded BSON document
// (as read from a mongodump stream or a MongoDB cursor) without decoding it
// up front. D is an in-memory document, convenient for tests and for sources
// that already hold decoded values.
//
//	raw, _ := bson.Marshal(bson.D{{Key: "idx", Value: int64(1)}})
//	err := document.Raw(raw).Range(func(key string, v document.Value) error {
//	    fmt.Println(key, v.Kind())
//	    return nil
//	})
package document

// Document yields its pairs in order. Range stops at the first error
// returned by fn and returns it unchanged; failures to decode the document
// itself are reported as malformed_document errors.
type Document interface {
	Range(fn func(key string, val Value) error) error
}

// Array yields its elements in order, with the same error contract as
// Document.
type Array interface {
	Range(fn func(val Value) error) error
}

// E is a single pair of a D.
type E struct {
	Key   string
	Value Value
}

// D is an in-memory ordered document. Repeated keys are kept.
type D []E

func (d D) Range(fn func(key string, val Value) error) error {
	for _, e := range d {
		if err := fn(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// A is an in-memory array.
type A []Value

func (a A) Range(fn func(val Value) error) error {
	for _, v := range a {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}
