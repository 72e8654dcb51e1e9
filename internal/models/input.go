package models

import "encoding/json"

// Row is one raw input row as delivered by the host.
type Row map[string]json.RawMessage

// Params is the flat, normalized actor input payload.
type Params map[string]any

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type ValueKind int

const (
	KindScalar ValueKind = iota
	KindList
	KindJSON
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindJSON:
		return "json"
	}
	return "unknown"
}

// Value is a raw option value after it has been validated at the normalizer
// boundary. Exactly one of Scalar, List or JSON is meaningful, selected by Kind.
type Value struct {
	Kind   ValueKind
	Scalar any
	List   []any
	JSON   any
}
