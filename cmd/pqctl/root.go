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
	"github.com/spf13/cobra"

	"github.com/erigontech/powerquery/internal/pqlog"
	"github.com/erigontech/powerquery/pkg/pqcache"
	"github.com/erigontech/powerquery/pkg/pqconfig"
)

// rootState carries flags and derived config shared by every subcommand.
type rootState struct {
	configPath string
	flags      *pqconfig.FlagSet
	cfg        pqconfig.Config
	log        *pqlog.Logger
}

func newRootCmd() *cobra.Command {
	state := &rootState{log: pqlog.New("pqctl")}

	root := &cobra.Command{
		Use:           "pqctl",
		Short:         "Drive the power query engine and kernel dispatcher",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := pqconfig.Default()
			if state.configPath != "" {
				loaded, err := pqconfig.Load(state.configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			state.cfg = state.flags.Apply(cmd.Flags(), cfg)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&state.configPath, "config", "", "path to a pqctl TOML config file")
	state.flags = pqconfig.BindFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd(state))
	root.AddCommand(newCacheCmd(state))
	root.AddCommand(newKernelCmd(state))
	return root
}

// openCacheStore builds the pqcache.Store named by state.cfg.Cache.Kind.
// Only "memory" and "filesystem" are opened as named; every other kind,
// including "encryptedFilesystem", opens a MemoryStore.
func openCacheStore(cfg pqconfig.Config) (pqcache.Store, error) {
	switch cfg.Cache.Kind {
	case "", "memory":
		return pqcache.NewMemoryStore(cfg.Cache.Capacity), nil
	case "filesystem":
		return pqcache.NewFilesystemStore(cfg.Cache.Dir)
	default:
		return pqcache.NewMemoryStore(cfg.Cache.Capacity), nil
	}
}
