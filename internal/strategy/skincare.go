package strategy

import "routine/internal/domain"

// SkincareStrategy builds a four-step skin routine. Products that match no
// step are left out of the routine.
type SkincareStrategy struct{}

func (SkincareStrategy) Industry() string { return "skincare" }

func (SkincareStrategy) BuildSearchQuery(profile domain.CustomerProfile) string {
	return buildQuery("Skin care products", "skin", profile)
}

func (SkincareStrategy) StepConfigurations() []domain.StepConfiguration {
	return []domain.StepConfiguration{
		{
			Name:  "Cleanse",
			Order: 1,
			Filter: domain.StepFilter{
				CategoryContains: "cleans",
				TagsHasAny:       []string{"cleanser", "face wash", "micellar water", "cleansing oil"},
				MatchAny:         true,
			},
		},
		{
			Name:  "Treat",
			Order: 2,
			Filter: domain.StepFilter{
				CategoryIn: []string{"serum", "toner", "exfoliant", "treatment", "essence", "eye cream"},
				TagsHasAny: []string{"serum", "toner", "exfoliant", "retinol", "acne treatment", "vitamin c"},
				MatchAny:   true,
			},
		},
		{
			Name:  "Moisturize",
			Order: 3,
			Filter: domain.StepFilter{
				CategoryIn:  []string{"moisturizer", "cream", "lotion", "face oil"},
				TagsHasAny:  []string{"moisturizer", "cream", "lotion", "hydrating"},
				TagsExclude: []string{"spf", "sunscreen"},
				MatchAny:    true,
			},
		},
		{
			Name:  "Protect",
			Order: 4,
			Filter: domain.StepFilter{
				CategoryGlob: "*sun*",
				TagsHasAny:   []string{"spf", "sunscreen", "sun protection"},
				MatchAny:     true,
			},
		},
	}
}

func (SkincareStrategy) FilterProductsForStep(products []domain.Product, step domain.StepConfiguration) []domain.Product {
	return FilterProducts(products, step.Filter)
}

func (s SkincareStrategy) GeneratePrompt(stepName string, profile domain.CustomerProfile, products []domain.Product) []domain.Message {
	return buildPrompt(promptData{
		Industry:       s.Industry(),
		AttributeLabel: "Skin type",
		Step:           stepName,
		Profile:        profile,
		Products:       products,
	})
}
