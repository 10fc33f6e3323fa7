package queue

import "fmt"

// DecodeError reports a delivery whose body or image payload could not be decoded.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode error: %v", e.Err)
	}
	return fmt.Sprintf("decode error in %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
