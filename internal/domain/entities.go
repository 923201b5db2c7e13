package domain

import "time"

// Product is a catalog entry. ID is the external catalog id and the only identity;
// every other field is replaced on re-sync.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Price       string   `json:"price,omitempty"` // decimal string as reported by the catalog
}

// ScoredProduct is a product returned from a similarity query.
type ScoredProduct struct {
	Product
	Similarity float64 `json:"similarity"`
}

type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PageRequest selects one page of the upstream catalog.
type PageRequest struct {
	Cursor    string
	ChannelID string
	Status    string
}

type CatalogPage struct {
	Items       []Product
	NextCursor  string
	HasNextPage bool
}

// CustomerProfile is the ephemeral input to routine generation.
type CustomerProfile struct {
	PrimaryAttribute string            `json:"primary_attribute" yaml:"primary_attribute"`
	Concerns         []string          `json:"concerns" yaml:"concerns"`
	Services         []string          `json:"services,omitempty" yaml:"services"`
	CurrentRoutine   []string          `json:"current_routine,omitempty" yaml:"current_routine"`
	UsagePatterns    []string          `json:"usage_patterns,omitempty" yaml:"usage_patterns"`
	Restrictions     []string          `json:"restrictions,omitempty" yaml:"restrictions"`
	AdditionalInfo   string            `json:"additional_info,omitempty" yaml:"additional_info"`
	CustomAttributes map[string]string `json:"custom_attributes,omitempty" yaml:"custom_attributes"`
}

// StepFilter selects the products a routine step may claim.
// Category predicates are ANDed together, as are tag predicates. The category part
// and the tag part are ANDed unless MatchAny is set. A zero filter matches everything.
type StepFilter struct {
	CategoryEquals   string
	CategoryContains string
	CategoryIn       []string
	CategoryGlob     string
	TagsHasAny       []string
	TagsHasAll       []string
	TagsExclude      []string
	MatchAny         bool
}

// StepConfiguration is static per-industry policy data.
type StepConfiguration struct {
	Name   string
	Order  int
	Filter StepFilter
}

type RecommendationStep struct {
	Name        string    `json:"name"`
	Order       int       `json:"order"`
	Description string    `json:"description"`
	Products    []Product `json:"products"`
}

type RecommendationMetadata struct {
	Industry    string    `json:"industry"`
	GeneratedAt time.Time `json:"generated_at"`
}

type RecommendationResponse struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message"`
	Steps    []RecommendationStep    `json:"steps"`
	Metadata *RecommendationMetadata `json:"metadata,omitempty"`
}

// Message is one chat turn sent to a text generator.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerationOptions struct {
	MaxTokens   int
	Temperature float64
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Completion struct {
	Text         string
	FinishReason string
	Usage        TokenUsage
}

// IngestResult contains the results of a catalog sync.
type IngestResult struct {
	RunID       string        `json:"run_id"`
	Processed   int           `json:"processed"`
	Attempted   int           `json:"attempted"`
	Errors      []string      `json:"errors"`
	NothingToDo bool          `json:"nothing_to_do"`
	Duration    time.Duration `json:"duration"`
}
