package types

import "fmt"

// RowOp names the six row-level record transformations of spec.md
// §4.3 "Row operators", each dispatched through ApplyRowOp rather than
// one handler function per operator (grounded on `orig:checker.rs`'s
// single dispatch point keyed on operator name).
type RowOp int

const (
	RowPick RowOp = iota
	RowOmit
	RowOptional
	RowRequired
	RowRename
	RowDefaulted
)

func ParseRowOp(name string) (RowOp, bool) {
	switch name {
	case "Pick":
		return RowPick, true
	case "Omit":
		return RowOmit, true
	case "Optional":
		return RowOptional, true
	case "Required":
		return RowRequired, true
	case "Rename":
		return RowRename, true
	case "Defaulted":
		return RowDefaulted, true
	}
	return 0, false
}

// RowOpError reports a failed row transformation, e.g. an unknown
// field name or a rename collision (spec.md §4.3, codes E3002/E3003).
type RowOpError struct {
	Op      RowOp
	Message string
}

func (e *RowOpError) Error() string { return e.Message }

func isOption(t Type) bool {
	c, ok := t.(*TCon)
	return ok && c.Name == OptionCon
}

func optionInner(t Type) (Type, bool) {
	c, ok := t.(*TCon)
	if !ok || c.Name != OptionCon || len(c.Args) != 1 {
		return nil, false
	}
	return c.Args[0], true
}

// ApplyRowOp rewrites src's field set according to op, then sets the
// resulting openness (Pick closes the record; the others keep src's).
// names is the field-name list for Pick/Omit/Optional/Required and
// renameMap the old->new name map for Rename; Defaulted uses neither
// and returns a copy of src with field types unchanged.
func ApplyRowOp(op RowOp, src *TRecord, names []string, renameMap map[string]string) (*TRecord, error) {
	switch op {
	case RowPick:
		out := &TRecord{Fields: map[string]Type{}, Open: false}
		for _, n := range names {
			t, ok := src.Fields[n]
			if !ok {
				return nil, &RowOpError{Op: op, Message: fmt.Sprintf("unknown field %q in Pick", n)}
			}
			out.Fields[n] = t
		}
		return out, nil
	case RowOmit:
		out := &TRecord{Fields: map[string]Type{}, Open: src.Open}
		omit := map[string]bool{}
		for _, n := range names {
			if _, ok := src.Fields[n]; !ok {
				return nil, &RowOpError{Op: op, Message: fmt.Sprintf("unknown field %q in Omit", n)}
			}
			omit[n] = true
		}
		for n, t := range src.Fields {
			if !omit[n] {
				out.Fields[n] = t
			}
		}
		return out, nil
	case RowOptional:
		// Idempotent: wraps named fields in Option, leaving an already-
		// Option field untouched (spec.md §8 invariant 8).
		out := &TRecord{Fields: map[string]Type{}, Open: src.Open}
		named := map[string]bool{}
		for _, n := range names {
			if _, ok := src.Fields[n]; !ok {
				return nil, &RowOpError{Op: op, Message: fmt.Sprintf("unknown field %q", n)}
			}
			named[n] = true
		}
		for n, t := range src.Fields {
			if named[n] && !isOption(t) {
				out.Fields[n] = TOption(t)
			} else {
				out.Fields[n] = t
			}
		}
		return out, nil
	case RowRequired:
		// Unwraps Option on named fields that are Option α; leaves other
		// named fields and all untouched fields as-is.
		out := &TRecord{Fields: map[string]Type{}, Open: src.Open}
		named := map[string]bool{}
		for _, n := range names {
			if _, ok := src.Fields[n]; !ok {
				return nil, &RowOpError{Op: op, Message: fmt.Sprintf("unknown field %q", n)}
			}
			named[n] = true
		}
		for n, t := range src.Fields {
			if named[n] {
				if inner, ok := optionInner(t); ok {
					out.Fields[n] = inner
					continue
				}
			}
			out.Fields[n] = t
		}
		return out, nil
	case RowRename:
		out := &TRecord{Fields: map[string]Type{}, Open: src.Open}
		seen := map[string]bool{}
		for n, t := range src.Fields {
			newName := n
			if mapped, ok := renameMap[n]; ok {
				newName = mapped
			}
			if seen[newName] {
				return nil, &RowOpError{Op: op, Message: fmt.Sprintf("rename collision on %q", newName)}
			}
			seen[newName] = true
			out.Fields[newName] = t
		}
		return out, nil
	case RowDefaulted:
		out := &TRecord{Fields: map[string]Type{}, Open: src.Open}
		for n, t := range src.Fields {
			out.Fields[n] = t
		}
		return out, nil
	}
	return nil, &RowOpError{Op: op, Message: "unknown row operator"}
}
