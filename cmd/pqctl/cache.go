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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/erigontech/powerquery/pkg/pqcache"
)

func newCacheCmd(state *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain a cache store",
	}
	cmd.AddCommand(newCacheGCCmd(state))
	return cmd
}

func newCacheGCCmd(state *rootState) *cobra.Command {
	var maxEntries int
	var maxBytes int64

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Prune expired entries, then enforce a quota if the store supports one",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(state.cfg)
			if err != nil {
				return err
			}
			ctx := context.Background()
			nowMs := time.Now().UnixMilli()

			if pruner, ok := store.(pqcache.ExpiryPruner); ok {
				if err := pruner.PruneExpired(ctx, nowMs); err != nil {
					return err
				}
			}
			if maxEntries > 0 || maxBytes > 0 {
				if pruner, ok := store.(pqcache.QuotaPruner); ok {
					if err := pruner.Prune(ctx, pqcache.PruneOptions{NowMs: nowMs, MaxEntries: maxEntries, MaxBytes: maxBytes}); err != nil {
						return err
					}
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache gc complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&maxEntries, "max-entries", 0, "evict LRU entries above this count (0 = unbounded)")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 0, "evict LRU entries above this total size (0 = unbounded)")
	return cmd
}
