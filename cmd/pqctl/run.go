// Copyright 2026 The Power Query Authors
// This file is part of Power Query.
//
// Power Query is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Power Query is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Power Query. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"encoding/csv"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/erigontech/powerquery/pkg/pqengine"
	"github.com/erigontech/powerquery/pkg/pqops"
	"github.com/erigontech/powerquery/pkg/pqquery"
	"github.com/erigontech/powerquery/pkg/pqsource"
)

// newRunCmd wires a small, flag-driven query: a CSV source plus an optional
// column selection and row limit. This stands in for the formula-language
// query definitions spec.md puts out of scope (§1): pqctl exposes the
// subset of pqops expressible as flags rather than a query file format.
func newRunCmd(state *rootState) *cobra.Command {
	var (
		source      string
		hasHeaders  bool
		selectCols  string
		take        int
		cacheTTLSec int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a CSV source through an optional select/take pipeline and print the result as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(source)
			if err != nil {
				return err
			}

			reg := pqsource.NewRegistry()
			reg.RegisterText(pqsource.NewCSVAdapter(map[string]string{source: string(data)}))

			store, err := openCacheStore(state.cfg)
			if err != nil {
				return err
			}

			engine := pqengine.NewEngine(store, reg, pqengine.WithLogger(state.log))

			var steps []pqquery.Step
			if selectCols != "" {
				cols := strings.Split(selectCols, ",")
				steps = append(steps, pqquery.Step{ID: "select", Name: "select columns", Operation: pqops.NewSelectColumns(cols)})
			}
			if take > 0 {
				steps = append(steps, pqquery.Step{ID: "take", Name: "take", Operation: pqops.NewTake(take)})
			}

			q := pqquery.NewQuery(
				pqquery.SourceDescriptor{Kind: "csv", Params: map[string]any{"location": source, "hasHeaders": hasHeaders}},
				steps,
			)

			opts := pqengine.ExecuteOptions{}
			if cacheTTLSec > 0 {
				opts.TTL = time.Duration(cacheTTLSec) * time.Second
			}
			tbl, err := engine.ExecuteQuery(context.Background(), q, nil, opts)
			if err != nil {
				return err
			}

			w := csv.NewWriter(cmd.OutOrStdout())
			defer w.Flush()
			return w.WriteAll(tbl.ToGrid(true))
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "path to a CSV file")
	cmd.Flags().BoolVar(&hasHeaders, "has-headers", true, "treat the CSV's first row as a header")
	cmd.Flags().StringVar(&selectCols, "select", "", "comma-separated column names to keep")
	cmd.Flags().IntVar(&take, "take", 0, "limit the result to the first N rows (0 = no limit)")
	cmd.Flags().IntVar(&cacheTTLSec, "cache-ttl", 0, "cache entry TTL in seconds (0 = no expiry)")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
