package note

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"maps"
	"sort"
)

// Existence describes the lifecycle position of a note projection.
type Existence int

const (
	NotYetCreated Existence = iota
	Exists
	Removed
)

func (e Existence) String() string {
	switch e {
	case NotYetCreated:
		return "NOT_YET_CREATED"
	case Exists:
		return "EXISTS"
	case Removed:
		return "DELETED"
	default:
		return fmt.Sprintf("Existence(%d)", int(e))
	}
}

// Note is the projection of a note's events. It is a value: Apply never
// mutates the receiver and the attachment maps are copied on write.
type Note struct {
	ID               string
	Revision         int
	Exists           bool
	Path             string
	Title            string
	Content          string
	Attachments      map[string][]byte
	AttachmentHashes map[string]string
}

// Empty returns the revision 0 projection of a note.
func Empty(id string) Note {
	return Note{
		ID:               id,
		Attachments:      map[string][]byte{},
		AttachmentHashes: map[string]string{},
	}
}

// Existence reports whether the note was never created, exists, or was deleted.
func (n Note) Existence() Existence {
	switch {
	case n.Revision == 0:
		return NotYetCreated
	case n.Exists:
		return Exists
	default:
		return Removed
	}
}

// AttachmentNames returns the attachment names in sorted order.
func (n Note) AttachmentNames() []string {
	names := make([]string, 0, len(n.Attachments))
	for name := range n.Attachments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply applies e to the note. It returns the new projection and the applied
// event. When e would not change any observable field the note is returned
// unchanged together with a nil event.
func (n Note) Apply(e Event) (Note, *Event, error) {
	if e.NoteID != n.ID {
		return n, nil, fmt.Errorf("%w: event %s targets note %q, not %q", ErrInvalidTransition, e.EventID, e.NoteID, n.ID)
	}
	if e.Revision != n.Revision+1 {
		return n, nil, fmt.Errorf("%w: note %s is at revision %d, event %s has revision %d", ErrInvalidTransition, n.ID, n.Revision, e.EventID, e.Revision)
	}
	if e.Payload == nil {
		return n, nil, fmt.Errorf("%w: event %s has no payload", ErrInvalidTransition, e.EventID)
	}

	if _, ok := e.Payload.(Created); !ok && n.Revision == 0 {
		return n, nil, fmt.Errorf("%w: note %s does not exist, cannot apply %s", ErrInvalidTransition, n.ID, e.Type())
	}

	next := n
	changed := false

	switch p := e.Payload.(type) {
	case Created:
		if n.Revision > 0 {
			return n, nil, fmt.Errorf("%w: note %s already created", ErrIllegalState, n.ID)
		}
		next.Exists = true
		next.Path = p.Path
		next.Title = p.Title
		next.Content = p.Content
		next.Attachments = map[string][]byte{}
		next.AttachmentHashes = map[string]string{}
		changed = true

	case Deleted:
		if n.Exists {
			next.Exists = false
			changed = true
		}

	case Undeleted:
		if !n.Exists {
			next.Exists = true
			changed = true
		}

	case AttachmentAdded:
		hash := AttachmentHash(p.Content)
		if existing, ok := n.AttachmentHashes[p.Name]; ok {
			if existing != hash {
				return n, nil, fmt.Errorf("%w: note %s already has attachment %q", ErrInvalidTransition, n.ID, p.Name)
			}
			break
		}
		next.Attachments, next.AttachmentHashes = n.cloneAttachments()
		next.Attachments[p.Name] = bytes.Clone(p.Content)
		next.AttachmentHashes[p.Name] = hash
		changed = true

	case AttachmentDeleted:
		if _, ok := n.Attachments[p.Name]; ok {
			next.Attachments, next.AttachmentHashes = n.cloneAttachments()
			delete(next.Attachments, p.Name)
			delete(next.AttachmentHashes, p.Name)
			changed = true
		}

	case ContentChanged:
		if n.Content != p.Content {
			next.Content = p.Content
			changed = true
		}

	case TitleChanged:
		if n.Title != p.Title {
			next.Title = p.Title
			changed = true
		}

	case Moved:
		if n.Path != p.Path {
			next.Path = p.Path
			changed = true
		}

	default:
		return n, nil, fmt.Errorf("%w: unknown payload %T", ErrInvalidTransition, e.Payload)
	}

	if !changed {
		return n, nil, nil
	}

	next.Revision = e.Revision
	applied := e
	return next, &applied, nil
}

// EqualIgnoringRevision reports whether two projections describe the same
// observable note.
func (n Note) EqualIgnoringRevision(o Note) bool {
	if n.ID != o.ID || n.Existence() != o.Existence() {
		return false
	}
	if n.Path != o.Path || n.Title != o.Title || n.Content != o.Content {
		return false
	}
	return maps.Equal(n.AttachmentHashes, o.AttachmentHashes)
}

// Fold applies events to n in order. Events must carry consecutive revisions
// starting at n.Revision+1.
func Fold(n Note, events []Event) (Note, error) {
	for _, e := range events {
		next, _, err := n.Apply(e)
		if err != nil {
			return n, err
		}
		n = next
	}
	return n, nil
}

// Replay applies events to n, renumbering each onto the projection first.
// Use it to project events that were numbered by a different log.
func Replay(n Note, events []Event) (Note, error) {
	for _, e := range events {
		next, _, err := n.Apply(e.Renumber(e.EventID, n.Revision+1))
		if err != nil {
			return n, err
		}
		n = next
	}
	return n, nil
}

func (n Note) cloneAttachments() (map[string][]byte, map[string]string) {
	attachments := make(map[string][]byte, len(n.Attachments)+1)
	hashes := make(map[string]string, len(n.AttachmentHashes)+1)
	maps.Copy(attachments, n.Attachments)
	maps.Copy(hashes, n.AttachmentHashes)
	return attachments, hashes
}

// AttachmentHash is the content hash used to compare attachments.
func AttachmentHash(content []byte) string {
	return fmt.Sprintf("%x", md5.Sum(content))
}
