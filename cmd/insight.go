package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sales-assistant/internal/insight"
	"github.com/sells-group/sales-assistant/internal/model"
)

// runner is the part of the pipeline the drivers call.
type runner interface {
	Run(ctx context.Context, in model.SalesInput) (*model.RunResult, error)
}

var insightFlags struct {
	product     string
	url         string
	category    string
	competitors string
	valueProp   string
	customer    string
	pdf         string
	jsonOut     bool
}

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Generate a sales insight report for one target company",
	Example: `  sales-assistant insight --product "Rocket Skates" --url acme.com \
    --category footwear --competitors globex.com,initech.com --pdf deck.pdf`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in, err := insightInput()
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "insight")
		if err != nil {
			return err
		}
		defer env.Close()

		return runInsight(ctx, env.Pipeline, in, insightFlags.jsonOut, cmd.OutOrStdout())
	},
}

// insightInput builds the request from flags, reading the PDF if given.
func insightInput() (model.SalesInput, error) {
	in := model.SalesInput{
		ProductName:      insightFlags.product,
		TargetURL:        insightFlags.url,
		ProductCategory:  insightFlags.category,
		CompetitorURLs:   model.ParseCompetitorURLs(insightFlags.competitors),
		ValueProposition: insightFlags.valueProp,
		TargetCustomer:   insightFlags.customer,
	}
	if insightFlags.pdf != "" {
		data, err := os.ReadFile(insightFlags.pdf)
		if err != nil {
			return in, eris.Wrap(err, "read pdf")
		}
		in.Document = data
		in.DocumentName = filepath.Base(insightFlags.pdf)
	}
	return in, nil
}

// runInsight runs the pipeline and writes Markdown, or the full result as
// JSON.
func runInsight(ctx context.Context, r runner, in model.SalesInput, jsonOut bool, out io.Writer) error {
	result, err := r.Run(ctx, in)
	if err != nil {
		return eris.Wrap(err, "insight")
	}

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if _, err := fmt.Fprintf(out, "# Sales insights: %s\n\n", result.Context.Target.DisplayName()); err != nil {
		return err
	}
	_, err = io.WriteString(out, insight.Markdown(result.Report))
	return err
}

func init() {
	f := insightCmd.Flags()
	f.StringVar(&insightFlags.product, "product", "", "product name (required)")
	f.StringVar(&insightFlags.url, "url", "", "target company URL (required)")
	f.StringVar(&insightFlags.category, "category", "", "product category")
	f.StringVar(&insightFlags.competitors, "competitors", "", "comma-separated competitor URLs, primary first")
	f.StringVar(&insightFlags.valueProp, "value-prop", "", "value proposition")
	f.StringVar(&insightFlags.customer, "customer", "", "target customer")
	f.StringVar(&insightFlags.pdf, "pdf", "", "path to a product PDF")
	f.BoolVar(&insightFlags.jsonOut, "json", false, "print the full run result as JSON")
	_ = insightCmd.MarkFlagRequired("product")
	_ = insightCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(insightCmd)
}
