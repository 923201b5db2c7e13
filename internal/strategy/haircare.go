package strategy

import (
	"strings"

	"routine/internal/domain"
)

const (
	StepCleansing        = "Cleansing"
	StepConditioning     = "Conditioning"
	StepTreatmentStyling = "Treatment & Styling"
)

// HaircareStrategy builds a three-step hair routine. The last step is a
// catch-all for whatever the cleansing and conditioning steps did not claim.
type HaircareStrategy struct{}

func (HaircareStrategy) Industry() string { return "haircare" }

func (HaircareStrategy) BuildSearchQuery(profile domain.CustomerProfile) string {
	return buildQuery("Hair care products", "hair", profile)
}

func (HaircareStrategy) StepConfigurations() []domain.StepConfiguration {
	return []domain.StepConfiguration{
		{
			Name:  StepCleansing,
			Order: 1,
			Filter: domain.StepFilter{
				CategoryIn: []string{"shampoo", "cleanser", "co-wash", "clarifying shampoo"},
				TagsHasAny: []string{"shampoo", "cleanser", "co-wash"},
				MatchAny:   true,
			},
		},
		{
			Name:  StepConditioning,
			Order: 2,
			Filter: domain.StepFilter{
				CategoryIn: []string{"conditioner", "hair mask", "mask", "leave-in conditioner", "deep conditioner"},
				TagsHasAny: []string{"conditioner", "mask", "hair mask", "deep conditioner", "leave-in"},
				MatchAny:   true,
			},
		},
		{
			Name:  StepTreatmentStyling,
			Order: 3,
		},
	}
}

func (HaircareStrategy) FilterProductsForStep(products []domain.Product, step domain.StepConfiguration) []domain.Product {
	return FilterProducts(products, step.Filter)
}

func (h HaircareStrategy) GeneratePrompt(stepName string, profile domain.CustomerProfile, products []domain.Product) []domain.Message {
	return buildPrompt(promptData{
		Industry:       h.Industry(),
		AttributeLabel: "Hair type",
		Step:           stepName,
		Profile:        profile,
		Products:       products,
	})
}

// buildQuery turns a profile into free text for the similarity search.
func buildQuery(prefix, subject string, profile domain.CustomerProfile) string {
	parts := []string{prefix}
	if a := strings.TrimSpace(profile.PrimaryAttribute); a != "" {
		parts = append(parts, "for "+a+" "+subject)
	}
	if len(profile.Concerns) > 0 {
		parts = append(parts, "addressing "+strings.Join(profile.Concerns, ", "))
	}
	if len(profile.Services) > 0 {
		parts = append(parts, "after "+strings.Join(profile.Services, ", "))
	}
	if len(profile.Restrictions) > 0 {
		parts = append(parts, "without "+strings.Join(profile.Restrictions, ", "))
	}
	if info := strings.TrimSpace(profile.AdditionalInfo); info != "" {
		parts = append(parts, info)
	}
	return strings.Join(parts, " ")
}
