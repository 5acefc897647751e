// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/stower/stower/pkg/cfgstruct"
	"github.com/stower/stower/pkg/process"
	"github.com/stower/stower/pkg/stower"
)

var (
	rootCmd = &cobra.Command{
		Use:   "stower",
		Short: "Package lifecycle control plane",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the control plane",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Create a config file with the defaults",
		RunE:  cmdSetup,
	}

	runCfg   stower.Config
	setupCfg struct {
		stower.Config
		Overwrite bool `help:"whether to overwrite an existing config file" default:"false" setup:"true"`
	}

	confDir = process.DefaultConfDir()
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
	cfgstruct.Bind(runCmd.Flags(), &runCfg, cfgstruct.ConfDir(confDir))
	cfgstruct.Bind(setupCmd.Flags(), &setupCfg, cfgstruct.ConfDir(confDir))
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	log, err := process.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer zap.ReplaceGlobals(log)()
	defer zap.RedirectStdLog(log)()

	ctx, cancel := process.Ctx()
	defer cancel()

	if err := os.MkdirAll(confDir, 0700); err != nil {
		return errs.Wrap(err)
	}

	peer, err := stower.New(log, runCfg)
	if err != nil {
		return err
	}
	runErr := peer.Run(ctx)
	closeErr := peer.Close()
	return errs.Combine(runErr, closeErr)
}

func cmdSetup(cmd *cobra.Command, args []string) error {
	cfgFile := filepath.Join(confDir, "stower.yaml")
	if !setupCfg.Overwrite {
		if _, err := os.Stat(cfgFile); err == nil {
			return errs.New("config file %q already exists", cfgFile)
		}
	}
	if err := os.MkdirAll(confDir, 0700); err != nil {
		return errs.Wrap(err)
	}
	return process.SaveConfig(cmd.Flags(), cfgFile, nil)
}

func main() {
	process.Exec(rootCmd)
}
