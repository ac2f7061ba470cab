// Package difference compares two projections of the same note and turns the
// result back into the events that make one projection match the other.
package difference

import (
	"bytes"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/syftnotes/internal/note"
)

// Difference is one way in which two projections disagree. The set of
// variants is closed.
type Difference interface {
	// Swap returns the same difference seen from the other side.
	Swap() Difference
	String() string
	difference()
}

// ExistenceDifference is reported alone: when existence differs no other
// field is compared. Both projections are carried so a note can be rebuilt
// on a side where it was never created.
type ExistenceDifference struct {
	Left      note.Existence
	Right     note.Existence
	LeftNote  note.Note
	RightNote note.Note
}

type PathDifference struct {
	Left, Right string
}

type TitleDifference struct {
	Left, Right string
}

type ContentDifference struct {
	Left, Right string
}

// AttachmentDifference carries nil for the side where the attachment is missing.
type AttachmentDifference struct {
	Name        string
	Left, Right []byte
}

func (d ExistenceDifference) Swap() Difference {
	return ExistenceDifference{Left: d.Right, Right: d.Left, LeftNote: d.RightNote, RightNote: d.LeftNote}
}
func (d PathDifference) Swap() Difference    { return PathDifference{Left: d.Right, Right: d.Left} }
func (d TitleDifference) Swap() Difference   { return TitleDifference{Left: d.Right, Right: d.Left} }
func (d ContentDifference) Swap() Difference { return ContentDifference{Left: d.Right, Right: d.Left} }
func (d AttachmentDifference) Swap() Difference {
	return AttachmentDifference{Name: d.Name, Left: d.Right, Right: d.Left}
}

func (ExistenceDifference) difference()  {}
func (PathDifference) difference()       {}
func (TitleDifference) difference()      {}
func (ContentDifference) difference()    {}
func (AttachmentDifference) difference() {}

func (d ExistenceDifference) String() string {
	return fmt.Sprintf("existence(%s != %s)", d.Left, d.Right)
}
func (d PathDifference) String() string    { return fmt.Sprintf("path(%q != %q)", d.Left, d.Right) }
func (d TitleDifference) String() string   { return fmt.Sprintf("title(%q != %q)", d.Left, d.Right) }
func (d ContentDifference) String() string { return "content" }
func (d AttachmentDifference) String() string {
	return fmt.Sprintf("attachment(%s)", d.Name)
}

// Differences is the result of a comparison. Each kind occurs at most once,
// except attachments which occur once per name. The order is deterministic:
// existence, path, title, content, then attachments by name.
type Differences []Difference

// Empty reports whether the compared projections agree.
func (ds Differences) Empty() bool {
	return len(ds) == 0
}

// Swap mirrors every difference.
func (ds Differences) Swap() Differences {
	if ds == nil {
		return nil
	}
	out := make(Differences, len(ds))
	for i, d := range ds {
		out[i] = d.Swap()
	}
	return out
}

// Existence returns the existence difference, if there is one.
func (ds Differences) Existence() (ExistenceDifference, bool) {
	for _, d := range ds {
		if e, ok := d.(ExistenceDifference); ok {
			return e, true
		}
	}
	return ExistenceDifference{}, false
}

// Compare reports how left and right disagree. It is pure: the same inputs
// always produce the same output.
func Compare(left, right note.Note) Differences {
	le, re := left.Existence(), right.Existence()
	if le != re {
		return Differences{ExistenceDifference{Left: le, Right: re, LeftNote: left, RightNote: right}}
	}
	return compareFields(left, right)
}

func compareFields(left, right note.Note) Differences {
	var ds Differences

	if left.Path != right.Path {
		ds = append(ds, PathDifference{Left: left.Path, Right: right.Path})
	}
	if left.Title != right.Title {
		ds = append(ds, TitleDifference{Left: left.Title, Right: right.Title})
	}
	if left.Content != right.Content {
		ds = append(ds, ContentDifference{Left: left.Content, Right: right.Content})
	}

	for _, name := range attachmentNames(left, right) {
		lh, lok := left.AttachmentHashes[name]
		rh, rok := right.AttachmentHashes[name]
		if lok && rok && lh == rh {
			continue
		}
		ds = append(ds, AttachmentDifference{
			Name:  name,
			Left:  attachment(left, name),
			Right: attachment(right, name),
		})
	}

	return ds
}

func attachmentNames(left, right note.Note) []string {
	names := mapset.NewThreadUnsafeSetFromMapKeys(left.AttachmentHashes).
		Union(mapset.NewThreadUnsafeSetFromMapKeys(right.AttachmentHashes)).
		ToSlice()
	sort.Strings(names)
	return names
}

// attachment returns a copy of the named attachment, nil when absent. An
// attachment that exists but is empty is returned as an empty non-nil slice.
func attachment(n note.Note, name string) []byte {
	content, ok := n.Attachments[name]
	if !ok {
		return nil
	}
	if content == nil {
		return []byte{}
	}
	return bytes.Clone(content)
}
