// Package main provides the bowline CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/bowline/pkg/bowline"
	"github.com/orneryd/bowline/pkg/config"
	"github.com/orneryd/bowline/pkg/feedback"
	"github.com/orneryd/bowline/pkg/rules"
	"github.com/orneryd/bowline/pkg/vocab"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bowline",
		Short: "Bowline - Vocabulary linking engine for environmental bowtie diagrams",
		Long: `Bowline suggests causal links between the vocabularies of an
environmental-risk bowtie diagram: activities, pressures, consequences
and controls.

Features:
  • Causal rule engine enforcing the bowtie topology
  • Keyword themes, text similarity and causal-pattern signals
  • Confidence scoring adjusted by accumulated user feedback
  • Optional learned quality model for ranking`,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file (overlays environment)")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Bowline v%s (%s)\n", version, commit)
		},
	})

	// Suggest command
	suggestCmd := &cobra.Command{
		Use:   "suggest",
		Short: "Generate ranked link suggestions for a vocabulary",
		RunE:  runSuggest,
	}
	suggestCmd.Flags().String("vocab", "", "Vocabulary YAML file (default from config)")
	suggestCmd.Flags().StringSlice("selected", nil, "Restrict to pairs touching these item ids")
	suggestCmd.Flags().Bool("json", false, "Emit JSON instead of a table")
	rootCmd.AddCommand(suggestCmd)

	// Train command
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train the quality model from the feedback log",
		RunE:  runTrain,
	}
	rootCmd.AddCommand(trainCmd)

	// Feedback command
	feedbackCmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record a decision on a suggested link",
	}
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Append one accept/reject/ignore decision",
		RunE:  runFeedbackRecord,
	}
	recordCmd.Flags().String("from", "", "Source item id")
	recordCmd.Flags().String("to", "", "Target item id")
	recordCmd.Flags().String("from-type", "", "Source item type (activity|pressure|consequence|control)")
	recordCmd.Flags().String("to-type", "", "Target item type")
	recordCmd.Flags().String("method", "", "Method that derived the suggestion")
	recordCmd.Flags().String("action", "", "accepted, rejected or ignored")
	recordCmd.Flags().Float64("similarity", 0, "Suggestion similarity")
	recordCmd.Flags().Float64("confidence", 0, "Suggestion confidence")
	feedbackCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(feedbackCmd)

	// Stats command
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache and feedback statistics",
		RunE:  runStats,
	}
	rootCmd.AddCommand(statsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openEngine(cmd *cobra.Command) (*bowline.Engine, *config.Config, error) {
	cfg := config.LoadFromEnv()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, nil, err
		}
	}
	eng, err := bowline.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	eng, cfg, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	vocabPath, _ := cmd.Flags().GetString("vocab")
	if vocabPath == "" {
		vocabPath = cfg.Vocab.Path
	}
	if err := eng.LoadVocabulary(vocabPath); err != nil {
		return err
	}

	selected, _ := cmd.Flags().GetStringSlice("selected")
	groups, err := eng.GetSuggestions(context.Background(), selected)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	for _, pos := range rules.Positions {
		cands := groups[pos]
		if len(cands) == 0 {
			continue
		}
		fmt.Printf("\n%s (%s)\n", pos, pos.Relationship())
		for _, c := range cands {
			fmt.Printf("  %-8s -> %-8s  conf=%.3f (%s)  sim=%.3f  via %s\n",
				c.FromID, c.ToID, c.Confidence, c.Level, c.Similarity, c.Method)
		}
	}
	return nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	eng, _, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	model, err := eng.TrainQualityModel()
	if err != nil {
		return err
	}
	fmt.Printf("Trained %d trees on %d samples, out-of-bag accuracy %.3f\n",
		len(model.Trees), model.SampleCount, model.OOBAccuracy)
	return nil
}

func runFeedbackRecord(cmd *cobra.Command, args []string) error {
	eng, _, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	fromType, _ := cmd.Flags().GetString("from-type")
	ft, err := vocab.ParseItemType(fromType)
	if err != nil {
		return err
	}
	toType, _ := cmd.Flags().GetString("to-type")
	tt, err := vocab.ParseItemType(toType)
	if err != nil {
		return err
	}

	rec := feedback.Record{FromType: ft, ToType: tt}
	rec.FromID, _ = cmd.Flags().GetString("from")
	rec.ToID, _ = cmd.Flags().GetString("to")
	rec.Method, _ = cmd.Flags().GetString("method")
	rec.Similarity, _ = cmd.Flags().GetFloat64("similarity")
	rec.Confidence, _ = cmd.Flags().GetFloat64("confidence")
	action, _ := cmd.Flags().GetString("action")
	rec.Action = feedback.Action(action)

	if err := eng.RecordFeedback(rec); err != nil {
		return err
	}
	fmt.Printf("Recorded %s for %s -> %s\n", rec.Action, rec.FromID, rec.ToID)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	eng, _, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Close()

	cs := eng.CacheStats()
	fmt.Printf("Similarity cache: %d entries, %d hits, %d misses (%.1f%% hit rate)\n",
		cs.Entries, cs.Hits, cs.Misses, cs.HitRate)

	fs, err := eng.FeedbackStats()
	if err != nil {
		return err
	}
	fmt.Printf("Feedback: %d records (%d accepted, %d rejected, %d ignored)\n",
		fs.Total, fs.Accepted, fs.Rejected, fs.Ignored)
	for method, ms := range fs.PerMethod {
		fmt.Printf("  %-20s %3d decided, acceptance %.2f\n",
			method, ms.Accepted+ms.Rejected, ms.AcceptanceRate)
	}
	return nil
}
