package domain

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// DefaultMaxInputChars bounds embedding input; upstream services reject overlong text.
const DefaultMaxInputChars = 8000

// EmbeddingText builds the canonical embedding input for a product:
// title, description, category and tags, trimmed and capped at maxChars runes.
func EmbeddingText(p Product, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}

	parts := make([]string, 0, 4)
	for _, s := range []string{p.Title, p.Description, p.Category, strings.Join(p.Tags, ", ")} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))

	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxChars]))
}

// HasTag reports whether the product carries tag, ignoring case.
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// MergeProduct applies an incoming catalog record over a stored one. Title,
// description and tags always take the incoming value; category, image and
// price keep the stored value when the incoming one is empty.
func MergeProduct(prev, next Product) Product {
	merged := next
	if merged.Category == "" {
		merged.Category = prev.Category
	}
	if merged.ImageURL == "" {
		merged.ImageURL = prev.ImageURL
	}
	if merged.Price == "" {
		merged.Price = prev.Price
	}
	return merged
}

// ValidateVector checks that v is a non-empty vector of finite numbers and,
// when dimension > 0, that it has that many components.
func ValidateVector(v []float32, dimension int) error {
	if len(v) == 0 {
		return fmt.Errorf("empty embedding")
	}
	if dimension > 0 && len(v) != dimension {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", dimension, len(v))
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding contains non-finite value")
		}
	}
	return nil
}
