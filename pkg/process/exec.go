// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package process sets up the shared plumbing of every stower binary:
// flag parsing, environment and config file binding, logging and
// signal-aware contexts.
package process

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// Error is the default process error class.
var Error = errs.Class("process")

// DefaultConfDir returns the default configuration directory,
// ~/.stower by default.
func DefaultConfDir() string {
	home, err := homedir.Dir()
	if err != nil {
		log.Println(err)
		return ".stower"
	}
	return filepath.Join(home, ".stower")
}

func defaultConfigPath(name string) string {
	if name == "" {
		name = filepath.Base(os.Args[0])
	}
	return filepath.Join(DefaultConfDir(), fmt.Sprintf("%s.yaml", name))
}

// Exec runs a *cobra.Command with process-wide configuration: values
// from STOWER_ prefixed environment variables and from the config file
// override the defaults of flags not set on the command line.
func Exec(cmd *cobra.Command) {
	cfgFile := flag.String("config", defaultConfigPath(cmd.Name()), "config file")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	cobra.OnInitialize(func() {
		Must(LoadConfig(cmd, *cfgFile))
	})

	Must(cmd.Execute())
}

// LoadConfig binds environment variables and the config file at
// cfgFile into the flags of cmd. Flags set on the command line win; a
// missing config file is not an error.
func LoadConfig(cmd *cobra.Command, cfgFile string) error {
	vip := viper.New()
	if err := vip.BindPFlags(cmd.Flags()); err != nil {
		return Error.Wrap(err)
	}
	vip.SetEnvPrefix("stower")
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()

	if cfgFile != "" {
		vip.SetConfigFile(cfgFile)
		if err := vip.ReadInConfig(); err != nil {
			if _, missing := err.(*os.PathError); !missing {
				return Error.Wrap(err)
			}
		}
	}

	settings := map[string]interface{}{}
	flatten("", vip.AllSettings(), settings)
	for key, value := range settings {
		f := cmd.Flags().Lookup(key)
		if f == nil || f.Changed {
			continue
		}
		if err := cmd.Flags().Set(key, fmt.Sprint(value)); err != nil {
			return Error.New("invalid setting %q: %v", key, err)
		}
	}
	return nil
}

// flatten turns viper's nested settings into dotted flag names.
func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for key, value := range in {
		if nested, ok := value.(map[string]interface{}); ok {
			flatten(prefix+key+".", nested, out)
			continue
		}
		out[prefix+key] = value
	}
}

// Ctx returns a context canceled on an interrupt or termination
// signal. A second signal kills the process immediately.
func Ctx() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig, ok := <-signals
		if !ok {
			return
		}
		zap.S().Infof("got signal %v, shutting down", sig)
		cancel()

		if _, ok := <-signals; ok {
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(signals)
		close(signals)
		cancel()
	}
}

// Must can be used for default error handling in main.
func Must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
