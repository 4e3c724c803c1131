package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ecosort/internal/classify/imageclass"
	"ecosort/internal/pipeline"
	"ecosort/internal/sustainability"
)

func (c *cli) classifyCmd() *cobra.Command {
	var quantity float64
	var condition string

	factors := func() *sustainability.Factors {
		if quantity <= 0 && condition == "" {
			return nil
		}
		return &sustainability.Factors{Quantity: quantity, Condition: sustainability.Condition(strings.ToLower(condition))}
	}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a waste item and record the result",
	}
	cmd.PersistentFlags().Float64Var(&quantity, "quantity", 0, "Number of items, lowers the eco score above 5")
	cmd.PersistentFlags().StringVar(&condition, "condition", "", "Item condition: damaged or contaminated")

	cmd.AddCommand(&cobra.Command{
		Use:   "text <description...>",
		Short: "Classify a text description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text cannot be empty")
			}
			core, err := c.openCore()
			if err != nil {
				return err
			}
			defer core.Close()
			res := core.Service.ClassifyText(cmd.Context(), text, pipeline.WithFactors(factors()))
			return c.output(cmd, res)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "image <path>",
		Short: "Classify an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !imageclass.Supported(args[0]) {
				return fmt.Errorf("%s: %w", args[0], imageclass.ErrUnsupportedFormat)
			}
			core, err := c.openCore()
			if err != nil {
				return err
			}
			defer core.Close()
			res, err := core.Service.ClassifyImageFile(cmd.Context(), args[0], pipeline.WithFactors(factors()))
			if err != nil {
				return err
			}
			return c.output(cmd, res)
		},
	})
	return cmd
}

func (c *cli) tipsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tips <category>",
		Short: "Show disposal tips for a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := c.openCore()
			if err != nil {
				return err
			}
			defer core.Close()
			tips, err := core.Service.Tips(args[0])
			if err != nil {
				return err
			}
			return c.output(cmd, tips)
		},
	}
}

func (c *cli) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Compare the sustainability of every category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := c.openCore()
			if err != nil {
				return err
			}
			defer core.Close()
			return c.output(cmd, comparison(core.Service.Compare()))
		},
	}
}

func (c *cli) analyticsCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Report daily classification counts for a date range",
		Long: `Report daily classification counts. Both dates default to today.

Examples:
  ecosortctl analytics
  ecosortctl analytics --start 2024-09-01 --end 2024-09-30 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := c.openCore()
			if err != nil {
				return err
			}
			defer core.Close()
			today := core.Service.Today()
			if start == "" {
				start = today
			}
			if end == "" {
				end = today
			}
			rep, err := core.Service.Analytics(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			return c.output(cmd, rep)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "Last day, YYYY-MM-DD")
	return cmd
}

func (c *cli) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every daily aggregate from the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := c.openCore()
			if err != nil {
				return err
			}
			defer core.Close()
			res, err := core.Service.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			return c.output(cmd, res)
		},
	}
}

func (c *cli) keywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords [category]",
		Short: "List the keywords the text classifier trains on",
		Long: `List the keywords the text classifier trains on, including any
loaded from KEYWORDS_PATH.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := c.openCore()
			if err != nil {
				return err
			}
			defer core.Close()
			if len(args) == 0 {
				return c.output(cmd, core.Service.AllKeywords())
			}
			words, err := core.Service.Keywords(args[0])
			if err != nil {
				return err
			}
			return c.output(cmd, keywordList{Category: strings.ToLower(args[0]), Keywords: words})
		},
	}
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recent classifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			core, err := c.openCore()
			if err != nil {
				return err
			}
			defer core.Close()
			list, err := core.Store.ListEvents(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return c.output(cmd, list)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of classifications to show")
	return cmd
}
