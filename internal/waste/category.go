// Package waste holds the shared vocabulary of the classification pipeline:
// the closed category set and the prediction value both classifiers return.
package waste

import (
	"errors"
	"fmt"
	"strings"
)

// Category is one of the three disposal streams an item can be sorted into.
type Category string

const (
	Biodegradable Category = "biodegradable"
	Recyclable    Category = "recyclable"
	Hazardous     Category = "hazardous"
)

// ErrUnknownCategory is returned when input does not name a Category.
var ErrUnknownCategory = errors.New("unknown waste category")

var categories = [...]Category{Biodegradable, Recyclable, Hazardous}

// Categories returns the closed category set in enumeration order. Ties
// between categories are always broken in this order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

// ParseCategory matches raw case-insensitively against the category set.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// Index reports the enumeration position of c, or -1.
func (c Category) Index() int {
	for i, known := range categories {
		if c == known {
			return i
		}
	}
	return -1
}
