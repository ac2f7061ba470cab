package note

import (
	"encoding/json"
	"fmt"
)

type eventEnvelope struct {
	EventID  string          `json:"event_id"`
	NoteID   string          `json:"note_id"`
	Revision int             `json:"revision"`
	Type     EventType       `json:"type"`
	Data     json.RawMessage `json:"data"`
}

// EncodePayload serializes a payload without its type tag.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("encode payload: nil payload")
	}
	data, err := jsonMarshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload %s: %w", p.Type(), err)
	}
	return data, nil
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(t EventType, data []byte) (Payload, error) {
	var p Payload
	var err error

	switch t {
	case TypeCreated:
		var v Created
		err = decodeInto(data, &v)
		p = v
	case TypeDeleted:
		p = Deleted{}
	case TypeUndeleted:
		p = Undeleted{}
	case TypeAttachmentAdded:
		var v AttachmentAdded
		err = decodeInto(data, &v)
		p = v
	case TypeAttachmentDeleted:
		var v AttachmentDeleted
		err = decodeInto(data, &v)
		p = v
	case TypeContentChanged:
		var v ContentChanged
		err = decodeInto(data, &v)
		p = v
	case TypeTitleChanged:
		var v TitleChanged
		err = decodeInto(data, &v)
		p = v
	case TypeMoved:
		var v Moved
		err = decodeInto(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("decode payload: unknown event type %q", t)
	}

	if err != nil {
		return nil, fmt.Errorf("decode payload %s: %w", t, err)
	}
	return p, nil
}

func decodeInto(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return jsonUnmarshal(data, v)
}

func (e Event) MarshalJSON() ([]byte, error) {
	data, err := EncodePayload(e.Payload)
	if err != nil {
		return nil, err
	}
	return jsonMarshal(eventEnvelope{
		EventID:  e.EventID,
		NoteID:   e.NoteID,
		Revision: e.Revision,
		Type:     e.Payload.Type(),
		Data:     data,
	})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var env eventEnvelope
	if err := jsonUnmarshal(b, &env); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	p, err := DecodePayload(env.Type, env.Data)
	if err != nil {
		return err
	}
	*e = Event{
		EventID:  env.EventID,
		NoteID:   env.NoteID,
		Revision: env.Revision,
		Payload:  p,
	}
	return nil
}
