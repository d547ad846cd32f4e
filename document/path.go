package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidPath      = errors.New("document: invalid path syntax")
	ErrExpectedMapping  = errors.New("document: path segment expects a Struct node")
	ErrExpectedSequence = errors.New("document: path segment expects a List node")
)

// PathSegmentNotFoundError reports that a path addressed a field or index
// that does not exist in the tree being walked.
type PathSegmentNotFoundError struct {
	Path    string
	Segment PathSegment
}

func (e *PathSegmentNotFoundError) Error() string {
	return fmt.Sprintf("document: path %q: segment %v not found", e.Path, e.Segment)
}

// PathSegment is one step of a parsed path: either a Struct field name or a
// List index.
type PathSegment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s PathSegment) String() string {
	if s.IsIndex {
		return fmt.Sprintf("[%d]", s.Index)
	}
	return s.Key
}

// ParsePath parses a dotted/indexed path like "a.b[0].c" into its ordered
// segments. Grammar: path := segment ('.' segment)*; segment := ident
// ('[' digits ']')*.
func ParsePath(path string) ([]PathSegment, error) {
	var segments []PathSegment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		name, indices, err := splitIndices(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		if name != "" {
			segments = append(segments, PathSegment{Key: name})
		}
		for _, idx := range indices {
			segments = append(segments, PathSegment{Index: idx, IsIndex: true})
		}
	}
	return segments, nil
}

// splitIndices splits "name[0][1]" into "name" and [0, 1].
func splitIndices(part string) (string, []int, error) {
	i := strings.IndexByte(part, '[')
	if i < 0 {
		return part, nil, nil
	}
	name := part[:i]
	rest := part[i:]

	var indices []int
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, fmt.Errorf("expected '[' in %q", part)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, fmt.Errorf("unterminated '[' in %q", part)
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, fmt.Errorf("non-numeric index in %q: %w", part, err)
		}
		indices = append(indices, n)
		rest = rest[end+1:]
	}
	return name, indices, nil
}

// At walks path from d and returns the node found there.
func At(d *Document, path string) (*Document, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	cur := d
	for _, seg := range segments {
		cur, err = step(cur, seg, path)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func step(cur *Document, seg PathSegment, path string) (*Document, error) {
	if seg.IsIndex {
		if cur == nil || cur.Kind != KindList {
			return nil, ErrExpectedSequence
		}
		if seg.Index < 0 || seg.Index >= len(cur.List) {
			return nil, &PathSegmentNotFoundError{Path: path, Segment: seg}
		}
		return cur.List[seg.Index], nil
	}
	if cur == nil || cur.Kind != KindStruct {
		return nil, ErrExpectedMapping
	}
	for _, f := range cur.Fields {
		if f.Name == seg.Key {
			return f.Value, nil
		}
	}
	return nil, &PathSegmentNotFoundError{Path: path, Segment: seg}
}

// SetAt walks all but the last segment of path from d, then sets the final
// segment's value to v, creating intermediate Struct nodes as needed but
// never creating List elements (lists are addressed, not grown, by path).
func SetAt(d *Document, path string, v *Document) error {
	segments, err := ParsePath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	cur := d
	for _, seg := range segments[:len(segments)-1] {
		next, err := step(cur, seg, path)
		if err != nil {
			var notFound *PathSegmentNotFoundError
			if !seg.IsIndex && errors.As(err, &notFound) {
				next = Struct()
				cur.Set(seg.Key, next)
			} else {
				return err
			}
		}
		cur = next
	}

	last := segments[len(segments)-1]
	if last.IsIndex {
		if cur == nil || cur.Kind != KindList {
			return ErrExpectedSequence
		}
		if last.Index < 0 || last.Index >= len(cur.List) {
			return &PathSegmentNotFoundError{Path: path, Segment: last}
		}
		cur.List[last.Index] = v
		return nil
	}
	if cur == nil || cur.Kind != KindStruct {
		return ErrExpectedMapping
	}
	cur.Set(last.Key, v)
	return nil
}
