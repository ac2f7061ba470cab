package command

import (
	"encoding/json"
	"fmt"

	"github.com/openmined/syftnotes/internal/note"
)

// Envelope is the wire form of a command.
type Envelope struct {
	Kind Kind `json:"kind"`
	Target
	Data json.RawMessage `json:"data,omitempty"`
}

// Wrap puts a command into its envelope.
func Wrap(c Command) (*Envelope, error) {
	if c == nil {
		return nil, fmt.Errorf("wrap command: nil command")
	}
	data, err := note.EncodePayload(c.Payload())
	if err != nil {
		return nil, fmt.Errorf("wrap command %s: %w", c.Kind(), err)
	}
	return &Envelope{Kind: c.Kind(), Target: TargetOf(c), Data: data}, nil
}

// Unwrap decodes the command held by the envelope.
func (env *Envelope) Unwrap() (Command, error) {
	t, ok := typesByKind[env.Kind]
	if !ok {
		return nil, fmt.Errorf("unwrap command: unknown kind %q", env.Kind)
	}
	if env.NoteID == "" {
		return nil, fmt.Errorf("unwrap command %s: missing note id", env.Kind)
	}
	if env.LastRevision < 0 {
		return nil, fmt.Errorf("unwrap command %s: negative last revision %d", env.Kind, env.LastRevision)
	}
	p, err := note.DecodePayload(t, env.Data)
	if err != nil {
		return nil, fmt.Errorf("unwrap command %s: %w", env.Kind, err)
	}
	return FromPayload(env.Target, p)
}

// Marshal encodes a command as JSON.
func Marshal(c Command) ([]byte, error) {
	env, err := Wrap(c)
	if err != nil {
		return nil, err
	}
	return jsonMarshal(env)
}

// Unmarshal decodes a command encoded by Marshal.
func Unmarshal(data []byte) (Command, error) {
	var env Envelope
	if err := jsonUnmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	return env.Unwrap()
}

// KindOf returns the command kind reproducing an event type.
func KindOf(t note.EventType) (Kind, bool) {
	k, ok := kindsByType[t]
	return k, ok
}
