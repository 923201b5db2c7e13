package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"routine/internal/domain"
)

var (
	recIndustry  string
	recProfile   string
	recAttribute string
	recConcerns  []string
	recLimit     int
	recJSON      bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Build a product routine for a customer profile",
	Long: `Search the product store for a customer profile and split the results
into an ordered routine with a description for each step.

The profile is a YAML or JSON file:

  primary_attribute: curly
  concerns: [frizz, dryness]
  restrictions: [sulfate-free]

Examples:
  routine recommend -i haircare -p profile.yaml
  routine recommend -i skincare --attribute oily --concern acne --json`,
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().StringVarP(&recIndustry, "industry", "i", "", "haircare or skincare (default from config)")
	recommendCmd.Flags().StringVarP(&recProfile, "profile", "p", "", "customer profile file (YAML or JSON)")
	recommendCmd.Flags().StringVar(&recAttribute, "attribute", "", "primary attribute, e.g. hair or skin type")
	recommendCmd.Flags().StringSliceVar(&recConcerns, "concern", nil, "customer concern (repeatable)")
	recommendCmd.Flags().IntVarP(&recLimit, "limit", "l", 0, "candidate pool size, 1-100 (default from config)")
	recommendCmd.Flags().BoolVar(&recJSON, "json", false, "output as JSON")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	profile, err := loadProfile(recProfile)
	if err != nil {
		return err
	}
	if recAttribute != "" {
		profile.PrimaryAttribute = recAttribute
	}
	profile.Concerns = append(profile.Concerns, recConcerns...)

	industry := cfg.Search.Industry
	if recIndustry != "" {
		industry = recIndustry
	}
	limit := cfg.Search.RecommendLimit
	if cmd.Flags().Changed("limit") {
		limit = recLimit
	}
	if err := domain.ValidateLimit(limit); err != nil {
		return err
	}

	svc, err := openServices(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	resp, err := svc.recommend.Recommend(cmd.Context(), industry, profile, limit)
	if err != nil {
		return fmt.Errorf("recommendation failed: %w", err)
	}

	if recJSON {
		return writeJSON(resp)
	}

	fmt.Println(resp.Message)
	for _, step := range resp.Steps {
		fmt.Printf("\n%d. %s\n", step.Order, step.Name)
		fmt.Printf("   %s\n", step.Description)
		if len(step.Products) == 0 {
			fmt.Println("   (no matching products)")
			continue
		}
		for _, p := range step.Products {
			line := "   - " + p.Title
			if p.Price != "" {
				line += " (" + p.Price + ")"
			}
			fmt.Println(line)
		}
	}
	return nil
}

// loadProfile reads a profile file. YAML is a superset of JSON, so one decoder
// handles both.
func loadProfile(path string) (domain.CustomerProfile, error) {
	var profile domain.CustomerProfile
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	profile.PrimaryAttribute = strings.TrimSpace(profile.PrimaryAttribute)
	return profile, nil
}
