// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/conceptbase/services/kb/config"
	"github.com/AleutianAI/conceptbase/services/kb/document"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

// cliOptions carries the persistent flags and what PersistentPreRunE
// derives from them.
type cliOptions struct {
	configPath string
	logLevel   string
	plain      bool

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and serve concept knowledge bases",
		Long: `kb loads knowledge base documents: multi-parent concept hierarchies
with scoped attribute values, constraint contexts and derived concepts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = strings.ToLower(opts.logLevel)
			}
			opts.cfg = cfg
			opts.logger = config.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to the engine configuration (YAML)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
	flags.BoolVar(&opts.plain, "plain", false, "Disable styled output even on a terminal")

	root.AddCommand(
		newCheckCmd(opts),
		newQueryCmd(opts),
		newTreeCmd(opts),
		newClassifyCmd(opts),
		newExportCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// kbOptions returns the knowledge base options from the configuration.
func (o *cliOptions) kbOptions() []ontology.Option {
	return o.cfg.KBOptions(o.logger)
}

// load reads and applies the document at path.
func (o *cliOptions) load(ctx context.Context, path string) (*ontology.KnowledgeBase, document.Summary, error) {
	kb, sum, err := document.Load(ctx, path, o.kbOptions()...)
	if err != nil {
		return nil, sum, fmt.Errorf("load %s: %w", path, err)
	}
	return kb, sum, nil
}

func newCheckCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [document]",
		Short: "Validate a document and report what it defines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newPrinter(cmd.OutOrStdout(), opts.plain)
			kb, sum, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				out.failure(err.Error())
				return err
			}
			if err := kb.ConceptHierarchy().DetectCycle(); err != nil {
				out.failure(err.Error())
				return err
			}
			out.success(fmt.Sprintf("%s: %d concepts, %d attributes, %d derived, %d values, %d classified",
				kb.Name(), sum.Concepts, sum.Attributes, sum.Derived, sum.Values, sum.Classified))
			return nil
		},
	}
}

func newQueryCmd(opts *cliOptions) *cobra.Command {
	var (
		op          string
		value       string
		constraints []string
		explain     bool
	)
	cmd := &cobra.Command{
		Use:   "query [document] [concept] [attribute]",
		Short: "Resolve an attribute on a concept",
		Long: `Resolves the attribute through the Local, All and Default tiers.

Constraints use attribute:op:value, e.g. --constraint year:>=:2015.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, _, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c, ok := kb.Concept(args[1])
			if !ok {
				return fmt.Errorf("%w: %q", ontology.ErrUnknownConcept, args[1])
			}
			a, ok := kb.Attribute(args[2])
			if !ok {
				return fmt.Errorf("%w: %q", ontology.ErrUnknownAttribute, args[2])
			}

			var qopts []ontology.QueryOption
			if op != "" {
				operator, operand, err := comparison(kb, a, op, value)
				if err != nil {
					return err
				}
				qopts = append(qopts, ontology.WithComparison(operator, operand))
			}
			if len(constraints) > 0 {
				clauses := make([]document.Clause, len(constraints))
				for i, s := range constraints {
					cl, err := parseClause(s)
					if err != nil {
						return err
					}
					clauses[i] = cl
				}
				cs, err := document.Constraints(clauses)
				if err != nil {
					return err
				}
				qopts = append(qopts, ontology.WithConstraints(cs...))
			}

			out := newPrinter(cmd.OutOrStdout(), opts.plain)
			if explain {
				for _, rv := range kb.Explain(c, a, qopts...) {
					out.explained(rv)
				}
				return nil
			}
			for _, v := range kb.Values(c, a, qopts...) {
				out.value(v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&op, "op", "", "Keep only values v with \"v op value\"")
	cmd.Flags().StringVar(&value, "value", "", "Operand for --op")
	cmd.Flags().StringArrayVar(&constraints, "constraint", nil, "Constraint context as attribute:op:value (repeatable)")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show the tier and source of every value")
	return cmd
}

func newTreeCmd(opts *cliOptions) *cobra.Command {
	var (
		root        string
		individuals bool
	)
	cmd := &cobra.Command{
		Use:   "tree [document]",
		Short: "Print the concept hierarchy",
		Long: `Prints the hierarchy depth-first from its roots. A concept with several
super-concepts is expanded under the first one and referenced elsewhere.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, _, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			starts := kb.Roots()
			if root != "" {
				c, ok := kb.Concept(root)
				if !ok {
					return fmt.Errorf("%w: %q", ontology.ErrUnknownConcept, root)
				}
				starts = []*ontology.Concept{c}
			}
			newPrinter(cmd.OutOrStdout(), opts.plain).tree(kb, starts, individuals)
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Print only the hierarchy below this concept")
	cmd.Flags().BoolVar(&individuals, "individuals", false, "Include individuals")
	return cmd
}

func newClassifyCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [document]",
		Short: "List the members of every derived concept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, sum, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := newPrinter(cmd.OutOrStdout(), opts.plain)
			for _, dc := range kb.DerivedConcepts() {
				out.members(dc.Name(), kb.Members(dc))
			}
			out.muted(fmt.Sprintf("%d concepts classified", sum.Classified))
			return nil
		},
	}
}

func newExportCmd(opts *cliOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [document]",
		Short: "Load a document and write it back in normalized form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, _, err := opts.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := document.Encode(document.Export(kb))
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return writeFile(output, data)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}
