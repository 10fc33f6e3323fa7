package classifier

import "fmt"

// InvalidParameterError reports a model that cannot be built from the given inputs.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

// DimensionMismatchError reports a query vector whose length differs from the model's.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("feature dimension mismatch: model expects %d, got %d", e.Want, e.Got)
}
