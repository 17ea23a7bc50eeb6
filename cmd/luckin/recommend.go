package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/luckin/internal/config"
	"github.com/jonathan/luckin/internal/observability"
	"github.com/jonathan/luckin/internal/ranking"
	"github.com/jonathan/luckin/internal/types"
)

var (
	recommendSkills       string
	recommendInitialLimit int
	recommendAILimit      int
	recommendThreshold    float64
	recommendJSON         bool
	recommendNoCache      bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [skill...]",
	Short: "Rank stored postings against a set of skills",
	Long:  "Recommend retrieves stored postings mentioning any of the skills, scores the newest of them with Gemini, and prints those at or above the relevance threshold, best first.",
	Example: `  luckin recommend --skills "Go, PostgreSQL, Kubernetes"
  luckin recommend go postgres --threshold 0.5 --json`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringVarP(&recommendSkills, "skills", "s", "", "Comma-separated skills")
	recommendCmd.Flags().IntVar(&recommendInitialLimit, "initial-limit", 0, "Postings retrieved by keyword match (default from config)")
	recommendCmd.Flags().IntVar(&recommendAILimit, "ai-limit", 0, "Postings scored by the model (default from config)")
	recommendCmd.Flags().Float64Var(&recommendThreshold, "threshold", -1, "Minimum relevance score in [0,1] (default from config)")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "Print ranked postings as JSON")
	recommendCmd.Flags().BoolVar(&recommendNoCache, "no-cache", false, "Ignore the Redis score cache")

	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	skills := skillsFromInput(recommendSkills, args)

	ctx, stop := signalContext()
	defer stop()

	opts, err := recommendOptions(cfg.Rank)
	if err != nil {
		return err
	}

	if skills.Empty() {
		// No skills means no recommendations; skip the store and the model.
		return writeRanking(cmd.OutOrStdout(), skills, &ranking.Result{}, recommendJSON)
	}

	database, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	deps, err := newRanker(ctx, database, opts, !recommendNoCache)
	if err != nil {
		return err
	}
	defer deps.Close()

	res, err := deps.ranker.Evaluate(ctx, skills)
	if err != nil {
		if errors.Is(err, ranking.ErrRetrieval) {
			return fmt.Errorf("could not load postings: %w", err)
		}
		return err
	}
	return writeRanking(cmd.OutOrStdout(), skills, res, recommendJSON)
}

// skillsFromInput merges the --skills list with positional arguments.
func skillsFromInput(flag string, args []string) types.SkillSet {
	raw := strings.Split(flag, ",")
	for _, arg := range args {
		raw = append(raw, strings.Split(arg, ",")...)
	}
	return types.NewSkillSet(raw...)
}

// recommendOptions overlays command flags onto the configured limits.
func recommendOptions(rc config.RankConfig) (ranking.Options, error) {
	opts := rankOptions(rc)
	if recommendInitialLimit > 0 {
		opts.InitialCandidateLimit = recommendInitialLimit
	}
	if recommendAILimit > 0 {
		opts.AIProcessingLimit = recommendAILimit
	}
	if recommendThreshold >= 0 {
		if recommendThreshold > 1 {
			return opts, fmt.Errorf("threshold must be in [0,1], got %v", recommendThreshold)
		}
		opts.Threshold = recommendThreshold
	}
	return opts, nil
}

func writeRanking(out io.Writer, skills types.SkillSet, res *ranking.Result, asJSON bool) error {
	if asJSON {
		ranked := res.Ranked
		if ranked == nil {
			ranked = []types.Candidate{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ranked); err != nil {
			return fmt.Errorf("failed to encode ranking: %w", err)
		}
		return nil
	}
	observability.NewPrinter(out).PrintRanking(skills.String(), res)
	return nil
}
