package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keyfindings/backend/internal/keyfindings"
	"github.com/keyfindings/backend/internal/storage/models"
	"github.com/keyfindings/backend/pkg/errs"
)

var (
	genTool    string
	genSources []string
	genLang    string
	genForce   bool
	genModel   string
	genJSON    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Get or generate the report for a scenario",
	Example: `  keyfindings generate --tool Benchmarking --source "Google Trends" --source Crossref --lang es
  keyfindings generate --tool "Balanced Scorecard" --source Crossref --force --model gpt-4o-mini --json`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genTool, "tool", "t", "", "Management tool name")
	generateCmd.Flags().StringArrayVarP(&genSources, "source", "s", nil, "Data source (repeatable)")
	generateCmd.Flags().StringVarP(&genLang, "lang", "l", "en", "Report language")
	generateCmd.Flags().BoolVar(&genForce, "force", false, "Bypass the cache and regenerate")
	generateCmd.Flags().StringVarP(&genModel, "model", "m", "", "Preferred model, as model or provider/model")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "Output the report as JSON")
	generateCmd.MarkFlagRequired("tool")
	generateCmd.MarkFlagRequired("source")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, hit, err := components.Engine.GetOrGenerate(ctx, keyfindings.Request{
		ToolName:       genTool,
		Sources:        genSources,
		Language:       genLang,
		ForceRefresh:   genForce,
		PreferredModel: genModel,
	})
	if err != nil {
		return fmt.Errorf("generation failed (%s): %w", errs.CodeOf(err), err)
	}

	out := cmd.OutOrStdout()
	if genJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"report": report, "cache_hit": hit})
	}

	printReport(out, report, hit)
	return nil
}

func printReport(w interface{ Write([]byte) (int, error) }, r *models.CachedReport, hit bool) {
	source := "generated"
	if hit {
		source = "cache"
	}
	fmt.Fprintf(w, "%s | %s | %s\n", r.ToolName, strings.Join(r.Sources, ", "), r.Language)
	fmt.Fprintf(w, "key: %s (%s, accessed %d times)\n", r.ScenarioKey, source, r.AccessCount)
	fmt.Fprintf(w, "model: %s/%s  confidence: %.2f  structure: %s\n\n", r.ProviderUsed, r.ModelUsed, r.Confidence, r.StructureTag)
	fmt.Fprintf(w, "Executive summary\n%s\n\n", r.ExecutiveSummary)
	fmt.Fprintf(w, "Principal findings\n%s\n\n", r.PrincipalFindings)
	fmt.Fprintf(w, "PCA analysis\n%s\n", r.PCAAnalysis)
}
