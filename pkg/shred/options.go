package shred

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DefaultMaxDepth bounds struct nesting when no WithMaxDepth option is given.
const DefaultMaxDepth = 32

// defaultValueBytes is the per-row byte estimate used to pre-size variable
// width (string and binary) column data.
const defaultValueBytes = 10

// ParsePolicy controls string to number/boolean coercion failures.
type ParsePolicy uint8

const (
	// ParseZeroOnFailure appends the target type's zero value when a string
	// does not parse.
	ParseZeroOnFailure ParsePolicy = iota
	// ParseStrict rejects the document with a parse_failure error.
	ParseStrict
)

func (p ParsePolicy) String() string {
	switch p {
	case ParseZeroOnFailure:
		return "zero"
	case ParseStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// DuplicatePolicy controls repeated keys within a single document level.
type DuplicatePolicy uint8

const (
	// KeepFirst commits the first occurrence and ignores later ones.
	KeepFirst DuplicatePolicy = iota
	// KeepLast commits the last occurrence.
	KeepLast
	// RejectDuplicates fails the document with a duplicate_field error.
	RejectDuplicates
)

func (p DuplicatePolicy) String() string {
	switch p {
	case KeepFirst:
		return "first"
	case KeepLast:
		return "last"
	case RejectDuplicates:
		return "reject"
	default:
		return "unknown"
	}
}

// Action describes what ingestion did with one document key.
type Action uint8

const (
	ActionAppend Action = iota
	ActionSkipUnknown
	ActionSkipDuplicate
	ActionReplaceDuplicate
	ActionNullFill
)

func (a Action) String() string {
	switch a {
	case ActionAppend:
		return "append"
	case ActionSkipUnknown:
		return "skip_unknown"
	case ActionSkipDuplicate:
		return "skip_duplicate"
	case ActionReplaceDuplicate:
		return "replace_duplicate"
	case ActionNullFill:
		return "null_fill"
	default:
		return "unknown"
	}
}

// Tracer observes per-field ingestion decisions. It runs on the hot path and
// is only invoked when installed with WithTracer. Column is -1 for keys that
// are not in the schema.
type Tracer interface {
	TraceField(path string, column int, action Action)
}

type options struct {
	parse      ParsePolicy
	duplicate  DuplicatePolicy
	maxDepth   int
	tracer     Tracer
	mem        memory.Allocator
	valueBytes int
}

// Option configures a RecordStructBuilder.
type Option func(*options)

// WithParsePolicy sets the string parse failure policy.
func WithParsePolicy(p ParsePolicy) Option {
	return func(o *options) { o.parse = p }
}

// WithDuplicatePolicy sets the repeated key policy.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(o *options) { o.duplicate = p }
}

// WithMaxDepth bounds struct nesting; schemas nested deeper fail construction.
func WithMaxDepth(depth int) Option {
	return func(o *options) { o.maxDepth = depth }
}

// WithTracer installs a per-field tracing hook.
func WithTracer(t Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithAllocator sets the Arrow allocator used by every column.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithValueSizeHint sets the expected average byte size of string and binary
// values, used to pre-size their data buffers.
func WithValueSizeHint(n int) Option {
	return func(o *options) { o.valueBytes = n }
}

func newOptions(opts []Option) *options {
	o := &options{
		parse:      ParseZeroOnFailure,
		duplicate:  KeepFirst,
		maxDepth:   DefaultMaxDepth,
		valueBytes: defaultValueBytes,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.mem == nil {
		o.mem = memory.NewGoAllocator()
	}
	if o.valueBytes < 0 {
		o.valueBytes = 0
	}
	return o
}
