package strategy

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"routine/internal/domain"
)

// Matches reports whether p satisfies f. Category predicates are ANDed, tag
// predicates are ANDed, and the two parts are ANDed unless f.MatchAny is set.
// TagsExclude always applies. A zero filter matches every product.
func Matches(p domain.Product, f domain.StepFilter) bool {
	for _, tag := range f.TagsExclude {
		if p.HasTag(tag) {
			return false
		}
	}

	hasCategory := f.CategoryEquals != "" || f.CategoryContains != "" || len(f.CategoryIn) > 0 || f.CategoryGlob != ""
	hasTags := len(f.TagsHasAny) > 0 || len(f.TagsHasAll) > 0

	switch {
	case !hasCategory && !hasTags:
		return true
	case !hasTags:
		return matchCategory(p, f)
	case !hasCategory:
		return matchTags(p, f)
	case f.MatchAny:
		return matchCategory(p, f) || matchTags(p, f)
	default:
		return matchCategory(p, f) && matchTags(p, f)
	}
}

// FilterProducts returns the products matching f, preserving order.
func FilterProducts(products []domain.Product, f domain.StepFilter) []domain.Product {
	matched := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if Matches(p, f) {
			matched = append(matched, p)
		}
	}
	return matched
}

func matchCategory(p domain.Product, f domain.StepFilter) bool {
	category := strings.ToLower(strings.TrimSpace(p.Category))

	if f.CategoryEquals != "" && category != strings.ToLower(f.CategoryEquals) {
		return false
	}
	if f.CategoryContains != "" && !strings.Contains(category, strings.ToLower(f.CategoryContains)) {
		return false
	}
	if len(f.CategoryIn) > 0 {
		found := false
		for _, c := range f.CategoryIn {
			if category == strings.ToLower(c) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CategoryGlob != "" {
		ok, err := doublestar.Match(strings.ToLower(f.CategoryGlob), category)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func matchTags(p domain.Product, f domain.StepFilter) bool {
	if len(f.TagsHasAny) > 0 {
		found := false
		for _, tag := range f.TagsHasAny {
			if p.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, tag := range f.TagsHasAll {
		if !p.HasTag(tag) {
			return false
		}
	}
	return true
}
