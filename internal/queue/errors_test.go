package queue

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
)

func TestDecodeErrorUnwrap(t *testing.T) {
	_, cause := base64.StdEncoding.DecodeString("%%")
	err := fmt.Errorf("error processing message m-1: %w", &DecodeError{Field: "image", Err: cause})

	var de *DecodeError
	if !errors.As(err, &de) || de.Field != "image" {
		t.Fatalf("errors.As did not find the decode error in %v", err)
	}

	var corrupt base64.CorruptInputError
	if !errors.As(err, &corrupt) {
		t.Errorf("underlying base64 error not reachable through %v", err)
	}
}
