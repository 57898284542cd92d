package schema

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/shredder/pkg/document"
)

// DefaultConfidenceThreshold is the share of samples the dominant BSON type
// must reach before a mixed field gets that type rather than utf8.
const DefaultConfidenceThreshold = 0.95

// Inferrer derives a schema definition from sample documents. Types follow
// the conversions the shredder supports, so documents like the samples
// shred without errors.
type Inferrer struct {
	logger              *zap.Logger
	confidenceThreshold float64
	root                *objectStats
}

type objectStats struct {
	docs   int
	order  []string
	fields map[string]*fieldStats
}

type fieldStats struct {
	present  int // documents with a non-null value
	kinds    map[document.Kind]int
	children *objectStats
}

// NewInferrer creates an inferrer. A nil logger discards log output.
func NewInferrer(logger *zap.Logger) *Inferrer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inferrer{
		logger:              logger,
		confidenceThreshold: DefaultConfidenceThreshold,
		root:                newObjectStats(),
	}
}

// SetConfidenceThreshold overrides DefaultConfidenceThreshold.
func (e *Inferrer) SetConfidenceThreshold(t float64) {
	e.confidenceThreshold = t
}

// Samples returns the number of documents observed.
func (e *Inferrer) Samples() int {
	return e.root.docs
}

// Observe adds one sample. Repeated keys count once, by their first value.
func (e *Inferrer) Observe(doc document.Document) error {
	return e.root.observe(doc)
}

func newObjectStats() *objectStats {
	return &objectStats{fields: make(map[string]*fieldStats)}
}

func (o *objectStats) observe(doc document.Document) error {
	o.docs++
	seen := make(map[string]struct{})
	return doc.Range(func(key string, val document.Value) error {
		if _, dup := seen[key]; dup {
			return nil
		}
		seen[key] = struct{}{}

		f, ok := o.fields[key]
		if !ok {
			f = &fieldStats{kinds: make(map[document.Kind]int)}
			o.fields[key] = f
			o.order = append(o.order, key)
		}
		if val.Kind() == document.KindNull {
			return nil
		}
		f.present++
		f.kinds[val.Kind()]++

		if val.Kind() == document.KindDocument {
			if f.children == nil {
				f.children = newObjectStats()
			}
			return f.children.observe(val.Document())
		}
		return nil
	})
}

// Fields returns the inferred definition, with keys in first-seen order.
// A field is non-nullable only if every sample held a non-null value for
// it. Fields whose values cannot be shredded into any type are left out.
func (e *Inferrer) Fields() []Field {
	return e.fields(e.root, "")
}

func (e *Inferrer) fields(o *objectStats, parent string) []Field {
	out := make([]Field, 0, len(o.order))
	for _, name := range o.order {
		f := o.fields[name]
		path := joinPath(parent, name)

		typ, confidence := e.resolve(f)
		if typ == "" {
			e.logger.Warn("skipping field without a shreddable type", zap.String("field", path))
			continue
		}

		field := Field{Name: name, Type: typ}
		if typ == "struct" {
			field.Fields = e.fields(f.children, path)
			if len(field.Fields) == 0 {
				e.logger.Warn("skipping struct without fields", zap.String("field", path))
				continue
			}
		}
		if f.present == o.docs {
			no := false
			field.Nullable = &no
		}

		e.logger.Debug("inferred field",
			zap.String("field", path),
			zap.String("type", typ),
			zap.Float64("confidence", confidence))
		out = append(out, field)
	}
	return out
}

// resolve picks a type string for f and reports the share of samples that
// match it exactly.
func (e *Inferrer) resolve(f *fieldStats) (string, float64) {
	if f.present == 0 {
		return "utf8", 1
	}

	numeric := true
	temporal := true
	stringable := true
	for k := range f.kinds {
		switch k {
		case document.KindInt32, document.KindInt64, document.KindDouble:
			temporal = false
		case document.KindTimestamp, document.KindDateTime:
			numeric = false
			stringable = false
		default:
			numeric = false
			temporal = false
			if !toString[k] {
				stringable = false
			}
		}
	}

	switch {
	case numeric:
		switch {
		case f.kinds[document.KindDouble] > 0:
			return "float64", 1
		case f.kinds[document.KindInt64] > 0:
			return "int64", 1
		}
		return "int32", 1
	case temporal:
		if f.kinds[document.KindDateTime] == 0 {
			return "timestamp[s]", 1
		}
		return "timestamp[ms, tz=UTC]", 1
	}

	dominant, count := dominantKind(f.kinds)
	confidence := float64(count) / float64(f.present)
	if len(f.kinds) > 1 && confidence < e.confidenceThreshold && stringable {
		return "utf8", confidence
	}
	return kindTypes[dominant], confidence
}

func dominantKind(kinds map[document.Kind]int) (document.Kind, int) {
	keys := make([]document.Kind, 0, len(kinds))
	for k := range kinds {
		keys = append(keys, k)
	}
	// ties go to the lowest kind so the result is stable
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var best document.Kind
	most := 0
	for _, k := range keys {
		if kinds[k] > most {
			best, most = k, kinds[k]
		}
	}
	return best, most
}

// kindTypes maps a BSON kind to the type it shreds into most directly.
// Missing kinds have no target type.
var kindTypes = map[document.Kind]string{
	document.KindBoolean:    "bool",
	document.KindDouble:     "float64",
	document.KindInt32:      "int32",
	document.KindInt64:      "int64",
	document.KindString:     "utf8",
	document.KindBinary:     "binary",
	document.KindObjectID:   "binary",
	document.KindTimestamp:  "timestamp[s]",
	document.KindDateTime:   "timestamp[ms, tz=UTC]",
	document.KindDocument:   "struct",
	document.KindArray:      "utf8",
	document.KindDecimal128: "decimal128(38, 0)",
}

// toString lists the kinds a utf8 column accepts.
var toString = map[document.Kind]bool{
	document.KindBoolean:  true,
	document.KindDouble:   true,
	document.KindInt32:    true,
	document.KindInt64:    true,
	document.KindString:   true,
	document.KindObjectID: true,
	document.KindArray:    true,
}
