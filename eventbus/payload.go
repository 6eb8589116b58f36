package eventbus

import "fmt"

// PayloadAs returns the event payload as a T. Pointers to T are
// dereferenced.
func PayloadAs[T any](event Event) (T, error) {
	switch p := event.Payload.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s carries %T, want %T", ErrUnexpectedPayload, event.Topic, event.Payload, zero)
}
