package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindInvalid is the zero Kind; no valid Value carries it.
	KindInvalid Kind = iota
	KindBoolean
	KindDouble
	KindInt32
	KindInt64
	KindString
	KindBinary
	KindObjectID
	// KindTimestamp is the internal MongoDB timestamp (seconds + increment).
	KindTimestamp
	// KindDateTime is a UTC wall-clock instant in milliseconds.
	KindDateTime
	KindDocument
	KindArray
	KindDecimal128
	// KindNull covers both BSON null and the deprecated undefined.
	KindNull
	// KindOther is any remaining BSON element type (regex, javascript, min/max key...).
	KindOther
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindBoolean:    "boolean",
	KindDouble:     "double",
	KindInt32:      "int32",
	KindInt64:      "int64",
	KindString:     "string",
	KindBinary:     "binary",
	KindObjectID:   "objectId",
	KindTimestamp:  "timestamp",
	KindDateTime:   "datetime",
	KindDocument:   "document",
	KindArray:      "array",
	KindDecimal128: "decimal128",
	KindNull:       "null",
	KindOther:      "other",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a dynamically typed document value. The zero Value is invalid.
// Values are immutable; Binary payloads alias the source document.
type Value struct {
	kind Kind
	num  int64
	f    float64
	str  string
	bin  []byte
	sub  byte
	oid  primitive.ObjectID
	dec  primitive.Decimal128
	doc  Document
	arr  Array
}

func Bool(v bool) Value {
	var n int64
	if v {
		n = 1
	}
	return Value{kind: KindBoolean, num: n}
}

func Double(v float64) Value { return Value{kind: KindDouble, f: v} }

func Int32(v int32) Value { return Value{kind: KindInt32, num: int64(v)} }

func Int64(v int64) Value { return Value{kind: KindInt64, num: v} }

func String(v string) Value { return Value{kind: KindString, str: v} }

// Binary holds a BSON binary payload with its subtype.
func Binary(subtype byte, data []byte) Value {
	return Value{kind: KindBinary, sub: subtype, bin: data}
}

func ObjectID(id primitive.ObjectID) Value { return Value{kind: KindObjectID, oid: id} }

// Timestamp holds the internal MongoDB timestamp; t is seconds since epoch.
func Timestamp(t, i uint32) Value {
	return Value{kind: KindTimestamp, num: int64(t)<<32 | int64(i)}
}

// DateTime holds milliseconds since the Unix epoch.
func DateTime(ms int64) Value { return Value{kind: KindDateTime, num: ms} }

func Doc(d Document) Value { return Value{kind: KindDocument, doc: d} }

func Arr(a Array) Value { return Value{kind: KindArray, arr: a} }

func Decimal128(d primitive.Decimal128) Value { return Value{kind: KindDecimal128, dec: d} }

func Null() Value { return Value{kind: KindNull} }

// Other records an element of an unsupported BSON type by name.
func Other(typeName string) Value { return Value{kind: KindOther, str: typeName} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Boolean() bool { return v.num != 0 }

func (v Value) Double() float64 { return v.f }

func (v Value) Int32() int32 { return int32(v.num) }

func (v Value) Int64() int64 { return v.num }

func (v Value) StringValue() string { return v.str }

func (v Value) Binary() (subtype byte, data []byte) { return v.sub, v.bin }

func (v Value) ObjectID() primitive.ObjectID { return v.oid }

func (v Value) Timestamp() (t, i uint32) {
	return uint32(uint64(v.num) >> 32), uint32(v.num)
}

func (v Value) DateTime() int64 { return v.num }

func (v Value) Document() Document { return v.doc }

func (v Value) Array() Array { return v.arr }

func (v Value) Decimal128() primitive.Decimal128 { return v.dec }

// TypeName describes the value for error messages; for KindOther it is the
// underlying BSON type name.
func (v Value) TypeName() string {
	if v.kind == KindOther {
		return v.str
	}
	return v.kind.String()
}
