package usecase

import (
	"context"
	"errors"
	"testing"

	"routine/internal/adapter/memstore"
	"routine/internal/domain"
	"routine/internal/strategy"
)

func TestRecommend_Haircare(t *testing.T) {
	store := seedStore(t, []domain.Product{
		{ID: "s1", Title: "Frizz shampoo", Tags: []string{"shampoo"}},
		{ID: "s2", Title: "Smooth shampoo", Tags: []string{"shampoo"}},
		{ID: "c1", Title: "Frizz conditioner", Tags: []string{"conditioner"}},
		{ID: "c2", Title: "Smooth conditioner", Tags: []string{"conditioner"}},
		{ID: "o1", Title: "Frizz serum"},
		{ID: "o2", Title: "Heat spray"},
		{ID: "o3", Title: "Curl cream"},
	})
	search := NewSearchUseCase(newScriptedEmbedder(), store, 0)
	uc := NewRecommendUseCase(search, strategy.DefaultRegistry(), strategy.NewEngine(nil, domain.GenerationOptions{}))

	resp, err := uc.Recommend(context.Background(), "haircare", domain.CustomerProfile{Concerns: []string{"frizz"}}, 30)
	if err != nil {
		t.Fatal(err)
	}
	sizes := []int{len(resp.Steps[0].Products), len(resp.Steps[1].Products), len(resp.Steps[2].Products)}
	if sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 3 {
		t.Errorf("expected step sizes [2 2 3], got %v", sizes)
	}
}

func TestRecommend_NoProducts(t *testing.T) {
	search := NewSearchUseCase(newScriptedEmbedder(), memstore.NewMemoryStore(), 0)
	uc := NewRecommendUseCase(search, strategy.DefaultRegistry(), strategy.NewEngine(nil, domain.GenerationOptions{}))

	_, err := uc.Recommend(context.Background(), "skincare", domain.CustomerProfile{}, 10)
	if !errors.Is(err, domain.ErrNoProducts) {
		t.Errorf("expected ErrNoProducts, got %v", err)
	}
}

func TestRecommend_UnknownIndustry(t *testing.T) {
	search := NewSearchUseCase(newScriptedEmbedder(), memstore.NewMemoryStore(), 0)
	uc := NewRecommendUseCase(search, strategy.DefaultRegistry(), strategy.NewEngine(nil, domain.GenerationOptions{}))

	_, err := uc.Recommend(context.Background(), "automotive", domain.CustomerProfile{}, 10)
	if !errors.Is(err, strategy.ErrUnknownIndustry) {
		t.Errorf("expected ErrUnknownIndustry, got %v", err)
	}
}

func TestRecommend_SearchFailureIsNotNoProducts(t *testing.T) {
	embedder := newScriptedEmbedder()
	embedder.failOn = func(int, []string) error { return errors.New("timeout") }
	uc := NewRecommendUseCase(NewSearchUseCase(embedder, memstore.NewMemoryStore(), 0), strategy.DefaultRegistry(), strategy.NewEngine(nil, domain.GenerationOptions{}))

	_, err := uc.Recommend(context.Background(), "haircare", domain.CustomerProfile{}, 10)
	if err == nil || errors.Is(err, domain.ErrNoProducts) {
		t.Fatalf("expected transport failure distinct from no-products, got %v", err)
	}
	var adapterErr *domain.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Errorf("expected AdapterError in chain, got %v", err)
	}
}
