package docstore

import (
	"encoding/json"
	"sort"
	"strings"

	apperrors "github.com/pinielabera/thriftndrift-backend/pkg/errors"
)

// Matches reports whether the snapshot document satisfies every filter.
// Store implementations share this so filter semantics stay identical
// across backends.
func Matches(snap Snapshot, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(snap.Data, &doc); err != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, err, "decoding document "+snap.ID)
	}

	for _, f := range filters {
		got, ok := fieldValue(doc, f.Field)
		if !ok {
			return false, nil
		}
		switch f.Op {
		case OpEqual:
			if !valuesEqual(got, f.Value) {
				return false, nil
			}
		case OpIn:
			if !valueIn(got, f.Value) {
				return false, nil
			}
		default:
			return false, apperrors.New(apperrors.CodeInternal, "unsupported filter operator "+string(f.Op))
		}
	}
	return true, nil
}

// SortByField orders snapshots in place by a document field. Snapshots
// missing the field keep their relative position at the end.
func SortByField(snaps []Snapshot, field string, desc bool) {
	keys := make(map[string]any, len(snaps))
	for _, snap := range snaps {
		var doc map[string]any
		if err := json.Unmarshal(snap.Data, &doc); err != nil {
			continue
		}
		if v, ok := fieldValue(doc, field); ok {
			keys[snap.ID] = v
		}
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		if desc {
			return lessValue(keys[snaps[j].ID], keys[snaps[i].ID])
		}
		return lessValue(keys[snaps[i].ID], keys[snaps[j].ID])
	})
}

func fieldValue(doc map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = doc
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// ApplyFieldUpdates merges dotted-path field updates into a decoded
// document, creating intermediate objects as needed.
func ApplyFieldUpdates(doc map[string]any, fields map[string]any) {
	for field, value := range fields {
		setField(doc, field, value)
	}
}

func setField(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = normalize(value)
}

// normalize round-trips a value through JSON so stored and filter
// values compare on the same representation.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func valuesEqual(got, want any) bool {
	g := normalize(got)
	w := normalize(want)

	if gf, ok := g.(float64); ok {
		wf, ok := w.(float64)
		return ok && gf == wf
	}
	gData, err := json.Marshal(g)
	if err != nil {
		return false
	}
	wData, err := json.Marshal(w)
	if err != nil {
		return false
	}
	return string(gData) == string(wData)
}

func valueIn(got, want any) bool {
	normalized := normalize(want)
	list, ok := normalized.([]any)
	if !ok {
		return false
	}
	for _, candidate := range list {
		if valuesEqual(got, candidate) {
			return true
		}
	}
	return false
}

func lessValue(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs
	}
	return false
}
