package models

import "testing"

func TestNewClassification(t *testing.T) {
	c := NewClassification("m-1", "team", "BLUE", 2, 3)

	if c.MessageID != "m-1" || c.Category != "BLUE" || c.Deliveries != 1 {
		t.Errorf("got %+v", c)
	}
	if c.Confidence < 0.666 || c.Confidence > 0.667 {
		t.Errorf("confidence = %f, want 2/3", c.Confidence)
	}
	if c.ClassifiedAt.IsZero() || !c.CreatedAt.Equal(c.UpdatedAt) {
		t.Error("timestamps not initialized")
	}
}

func TestNewClassificationWithoutNeighbors(t *testing.T) {
	if c := NewClassification("m-2", "team", "RED", 0, 0); c.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", c.Confidence)
	}
}
