package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schemadelta/schemadelta"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "schemadelta",
	Short: "Extract, compare, and migrate database schemas",
	Long: `schemadelta extracts database schemas into executable DDL, compares two
databases structurally, and generates migration scripts that respect
SQLite's restricted ALTER TABLE grammar.`,
	SilenceUsage: true,
}

var (
	extractOutput   string
	extractDoc      string
	extractPrint    bool
	extractTable    string
	includeDrop     bool
	excludeIndexes  bool
	excludeTriggers bool
	excludeViews    bool
	excludeComments bool
)

var extractCmd = &cobra.Command{
	Use:   "extract DATABASE",
	Short: "Extract a database schema as executable SQL",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var (
	diffReport   string
	diffMarkdown bool
)

var diffCmd = &cobra.Command{
	Use:   "diff OLD_DB NEW_DB",
	Short: "Compare two database schemas and report the differences",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var (
	migrateOutput string
	migrateDrop   bool
	migratePrint  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate OLD_DB NEW_DB",
	Short: "Generate a migration script transforming the old schema into the new",
	Args:  cobra.ExactArgs(2),
	RunE:  runMigrate,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output SQL file (default: stdout with --print)")
	extractCmd.Flags().StringVar(&extractDoc, "doc", "", "Export human-readable documentation to a text file")
	extractCmd.Flags().BoolVar(&extractPrint, "print", false, "Print schema SQL to the console")
	extractCmd.Flags().StringVarP(&extractTable, "table", "t", "", "Extract a single table only")
	extractCmd.Flags().BoolVar(&includeDrop, "drop", false, "Include DROP TABLE IF EXISTS statements")
	extractCmd.Flags().BoolVar(&excludeIndexes, "no-indexes", false, "Exclude indexes from output")
	extractCmd.Flags().BoolVar(&excludeTriggers, "no-triggers", false, "Exclude triggers from output")
	extractCmd.Flags().BoolVar(&excludeViews, "no-views", false, "Exclude views from output")
	extractCmd.Flags().BoolVar(&excludeComments, "no-comments", false, "Exclude SQL comments from output")

	diffCmd.Flags().StringVarP(&diffReport, "report", "r", "", "Write the diff report to a file (default: stdout)")
	diffCmd.Flags().BoolVar(&diffMarkdown, "markdown", false, "Render the report as markdown")

	migrateCmd.Flags().StringVarP(&migrateOutput, "output", "o", "", "Write the migration SQL to a file")
	migrateCmd.Flags().BoolVar(&migrateDrop, "drop", false, "Include DROP statements for removed tables")
	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "Print the migration SQL to the console")

	rootCmd.AddCommand(extractCmd, diffCmd, migrateCmd)
}

func renderOptionsFromFlags() schemadelta.RenderOptions {
	return schemadelta.RenderOptions{
		IncludeDrop:     includeDrop,
		IncludeIndexes:  !excludeIndexes,
		IncludeTriggers: !excludeTriggers,
		IncludeViews:    !excludeViews,
		IncludeComments: !excludeComments,
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	if extractOutput == "" && extractDoc == "" && !extractPrint {
		return fmt.Errorf("specify at least one of --output, --doc, or --print")
	}

	model, err := extract(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	opts := renderOptionsFromFlags()

	var schemaSQL string
	if extractTable != "" {
		schemaSQL, err = schemadelta.RenderTable(model, extractTable, &opts)
		if err != nil {
			return err
		}
	} else {
		schemaSQL = schemadelta.RenderSchema(model, &opts)
	}

	if extractOutput != "" {
		if err := os.WriteFile(extractOutput, []byte(schemaSQL), 0644); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}
		fmt.Fprintf(os.Stderr, "schema exported to %s\n", extractOutput)
	}
	if extractDoc != "" {
		if err := os.WriteFile(extractDoc, []byte(schemadelta.Document(model)), 0644); err != nil {
			return fmt.Errorf("failed to write documentation: %w", err)
		}
		fmt.Fprintf(os.Stderr, "documentation exported to %s\n", extractDoc)
	}
	if extractPrint {
		fmt.Print(schemaSQL)
	}
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldModel, newModel, err := extractPair(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	d := schemadelta.Compare(oldModel, newModel)

	var report string
	if diffMarkdown {
		report = schemadelta.MarkdownReport(d, args[0], args[1])
	} else {
		report = schemadelta.Report(d, args[0], args[1])
	}

	if diffReport != "" {
		if err := os.WriteFile(diffReport, []byte(report), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "diff report saved to %s\n", diffReport)
		return nil
	}
	fmt.Print(report)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateOutput == "" && !migratePrint {
		return fmt.Errorf("specify at least one of --output or --print")
	}

	oldModel, newModel, err := extractPair(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	d := schemadelta.Compare(oldModel, newModel)
	sql := schemadelta.GenerateMigration(d, oldModel, newModel, &schemadelta.MigrationOptions{
		IncludeDrop: migrateDrop,
	})

	if migrateOutput != "" {
		if err := os.WriteFile(migrateOutput, []byte(sql), 0644); err != nil {
			return fmt.Errorf("failed to write migration: %w", err)
		}
		fmt.Fprintf(os.Stderr, "migration script saved to %s\n", migrateOutput)
	}
	if migratePrint {
		fmt.Print(sql)
	}
	return nil
}

// extract wraps schemadelta.Extract, downgrading partial extraction to a
// stderr warning so the successfully extracted tables are still usable.
func extract(ctx context.Context, source string) (model *schemadelta.Model, err error) {
	model, err = schemadelta.Extract(ctx, source)
	var partial *schemadelta.PartialError
	if errors.As(err, &partial) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", partial)
		return model, nil
	}
	return model, err
}

func extractPair(ctx context.Context, oldSource, newSource string) (*schemadelta.Model, *schemadelta.Model, error) {
	oldModel, err := extract(ctx, oldSource)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract %s: %w", oldSource, err)
	}
	newModel, err := extract(ctx, newSource)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract %s: %w", newSource, err)
	}
	return oldModel, newModel, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
