// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/quarry/internal/bootstrap"
	"github.com/kraklabs/quarry/internal/contract"
	"github.com/kraklabs/quarry/internal/errors"
	"github.com/kraklabs/quarry/internal/output"
	"github.com/kraklabs/quarry/internal/ui"
	"github.com/kraklabs/quarry/pkg/enrich"
	"github.com/kraklabs/quarry/pkg/llm"
	"github.com/kraklabs/quarry/pkg/tools"
)

// queryResponse is the JSON payload of a query batch.
type queryResponse struct {
	Project   string                `json:"project"`
	Questions []string              `json:"questions"`
	Answers   [][]tools.QueryResult `json:"answers"`
}

// runQuery executes the 'query' CLI command, answering a batch of
// natural-language questions against the project's vector index.
//
// All questions run concurrently; answers come back in question order.
// The batch is all-or-nothing: one failed question fails the whole batch
// with a structured error payload.
//
// Flags:
//   - --question: A question to answer (repeatable)
//   - --node-id: Restrict matches to these node IDs (repeatable)
//   - --json: Output results as JSON (default: false)
//   - --timeout: Batch timeout (default: 60s)
//
// Examples:
//
//	quarry query --question "Where is authentication handled?"
//	quarry query --question "What does the parser do?" --question "Who calls it?" --json
//	quarry query --question "What is this?" --node-id ab12cd34ef56
func runQuery(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	questions := fs.StringArray("question", nil, "Question to answer (repeatable)")
	nodeIDs := fs.StringArray("node-id", nil, "Restrict matches to these node IDs (repeatable)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	timeout := fs.Duration("timeout", 60*time.Second, "Batch timeout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry query [options]

Answers a batch of questions against the project's knowledge graph.
Questions run concurrently and answers keep the input order. A batch
either fully succeeds or returns a single structured error.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # One question
  quarry query --question "Where is authentication handled?"

  # A concurrent batch
  quarry query --question "What does the ingest pipeline do?" \
               --question "Which functions touch the graph store?"

  # Restrict the search to known nodes
  quarry query --question "What is this function for?" --node-id ab12cd34ef56
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	globals.JSON = *jsonOutput

	if v := contract.ValidateQuestions(*questions); !v.OK {
		errors.FatalError(errors.NewInputError(
			"Invalid question batch",
			v.Message,
			"Pass at least one non-empty --question within the batch limit",
		), globals.JSON)
	}

	logger := newLogger(globals)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	root, err := bootstrap.DefaultStorageRoot()
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot resolve the storage root", err.Error(),
			"Set QUARRY_HOME to a writable directory", err), globals.JSON)
	}
	ws, err := bootstrap.Open(bootstrap.Config{StorageRoot: root}, logger)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open the local stores", err.Error(),
			"Run 'quarry ingest' first to create them", err), globals.JSON)
	}
	defer func() { _ = ws.Close() }()

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Type:         cfg.Provider.Type,
		BaseURL:      cfg.Provider.BaseURL,
		DefaultModel: cfg.Provider.Model,
		Timeout:      cfg.Provider.Timeout(),
	})
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot create the docstring provider", err.Error(),
			"Check the provider section of .quarry/project.yaml", err), globals.JSON)
	}
	embedder, err := enrich.NewEmbeddingProvider(cfg.Provider.Embedder, logger)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot create the embedding provider", err.Error(),
			"Check the embedder field of .quarry/project.yaml", err), globals.JSON)
	}

	var engineOpts []enrich.Option
	if cfg.TopK > 0 {
		engineOpts = append(engineOpts, enrich.WithTopK(cfg.TopK))
	}
	engine := enrich.NewEngine(ws.Graph, provider, embedder, logger, engineOpts...)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fanout := tools.NewFanout(ws.Projects, engine, logger)
	res := fanout.Run(ctx, *questions, cfg.Name, cfg.UserID, *nodeIDs)
	if res.Err != nil {
		if globals.JSON {
			_ = output.JSON(res.Err)
		} else {
			ui.Errorf("%s", res.Err.Error)
			if res.Err.Cause != "" {
				fmt.Fprintf(os.Stderr, "Cause: %s\n", res.Err.Cause)
			}
			if res.Err.Fix != "" {
				fmt.Fprintf(os.Stderr, "Fix:   %s\n", res.Err.Fix)
			}
		}
		os.Exit(res.Err.ExitCode)
	}

	if globals.JSON {
		if err := output.JSON(queryResponse{
			Project:   cfg.Name,
			Questions: *questions,
			Answers:   res.Answers,
		}); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	printAnswers(*questions, res.Answers)
}

// printAnswers renders one table of matches per question.
func printAnswers(questions []string, answers [][]tools.QueryResult) {
	for i, question := range questions {
		ui.SubHeader(question)
		if len(answers[i]) == 0 {
			fmt.Println("  no matches")
			continue
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  SIMILARITY\tLOCATION\tSUMMARY")
		for _, m := range answers[i] {
			fmt.Fprintf(w, "  %.3f\t%s:%d\t%s\n",
				m.Similarity, m.FilePath, m.StartLine, truncate(m.Docstring, 80))
		}
		_ = w.Flush()
	}
}

// truncate shortens s to max bytes with an ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
