package classifier

import (
	"fmt"
	"image/color"
	"strings"
)

// Category is one of the fixed team labels the model can predict.
type Category int

const (
	Red Category = iota
	Blue
	Green

	numCategories = 3
)

var categoryNames = [numCategories]string{"RED", "BLUE", "GREEN"}

// Reference colors are the corners of the RGB cube so the categories stay maximally apart.
var categoryColors = [numCategories]color.NRGBA{
	{R: 255, A: 255},
	{B: 255, A: 255},
	{G: 255, A: 255},
}

// Categories returns every category in label-index order.
func Categories() []Category {
	return []Category{Red, Blue, Green}
}

func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Color returns the reference color used when synthesizing training images.
func (c Category) Color() color.NRGBA {
	if !c.Valid() {
		return color.NRGBA{A: 255}
	}
	return categoryColors[c]
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(categoryNames[c]), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory accepts a category name in any letter case.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if strings.EqualFold(s, name) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}
