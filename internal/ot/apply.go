package ot

import "fmt"

// BoundsError reports an operation whose position or range falls outside
// the document it is being applied to. After transformation this indicates
// a transport or client bug, never a legitimate concurrent edit, so it is
// surfaced rather than coerced.
type BoundsError struct {
	Op     Operation
	DocLen int
}

// Error implements the error interface.
func (e *BoundsError) Error() string {
	return fmt.Sprintf("operation %s out of bounds for document of length %d", e.Op, e.DocLen)
}

// Apply returns a new buffer with op applied to content. content is in
// runes; the input slice is never mutated.
//
// An insert is valid at positions [0, len]; a delete's range must lie
// entirely within [0, len]. Anything else returns a *BoundsError and the
// original content.
func Apply(content []rune, op Operation) ([]rune, error) {
	switch op.Kind {
	case KindInsert:
		if op.Pos < 0 || op.Pos > len(content) {
			return content, &BoundsError{Op: op, DocLen: len(content)}
		}
		if op.Text == "" {
			return content, nil
		}
		payload := []rune(op.Text)
		out := make([]rune, 0, len(content)+len(payload))
		out = append(out, content[:op.Pos]...)
		out = append(out, payload...)
		out = append(out, content[op.Pos:]...)
		return out, nil

	case KindDelete:
		if op.Pos < 0 || op.Length < 0 || op.end() > len(content) {
			return content, &BoundsError{Op: op, DocLen: len(content)}
		}
		if op.Length == 0 {
			return content, nil
		}
		out := make([]rune, 0, len(content)-op.Length)
		out = append(out, content[:op.Pos]...)
		out = append(out, content[op.end():]...)
		return out, nil

	default:
		return content, &BoundsError{Op: op, DocLen: len(content)}
	}
}

// ApplyAll applies ops to content in order, failing on the first
// out-of-bounds operation.
func ApplyAll(content []rune, ops []Operation) ([]rune, error) {
	var err error
	for _, op := range ops {
		content, err = Apply(content, op)
		if err != nil {
			return content, err
		}
	}
	return content, nil
}
