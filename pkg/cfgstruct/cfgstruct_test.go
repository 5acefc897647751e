// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package cfgstruct

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBind(t *testing.T) {
	var config struct {
		Address    string        `help:"address to listen on" default:"127.0.0.1:7777"`
		QueueSize  int           `help:"queue size" default:"1024"`
		MinBackoff time.Duration `help:"initial backoff" default:"100ms"`
		Debug      bool          `default:"true"`
		Database   struct {
			Path string `help:"database file" default:"$CONFDIR/stower.db"`
		}
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Bind(flags, &config, ConfDir("/tmp/confdir"))

	require.NoError(t, flags.Parse([]string{"--queue-size=7", "--database.path=/override.db"}))

	assert.Equal(t, "127.0.0.1:7777", config.Address)
	assert.Equal(t, 7, config.QueueSize)
	assert.Equal(t, 100*time.Millisecond, config.MinBackoff)
	assert.True(t, config.Debug)
	assert.Equal(t, "/override.db", config.Database.Path)
}

func TestBindEmbedded(t *testing.T) {
	type Base struct {
		Address string `default:"127.0.0.1:7777"`
	}
	var config struct {
		Base
		Overwrite bool `default:"false"`
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Bind(flags, &config)

	// embedded fields bind without a prefix
	require.NotNil(t, flags.Lookup("address"))
	require.NotNil(t, flags.Lookup("overwrite"))
}

func TestBindHidesFlags(t *testing.T) {
	var config struct {
		Secret string `default:"" hidden:"true"`
		Extra  string `default:"" setup:"true"`
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Bind(flags, &config)

	secret := flags.Lookup("secret")
	require.NotNil(t, secret)
	assert.True(t, secret.Hidden)

	extra := flags.Lookup("extra")
	require.NotNil(t, extra)
	assert.Equal(t, []string{"true"}, extra.Annotations["setup"])
}

func TestHyphenate(t *testing.T) {
	assert.Equal(t, "queue-size", hyphenate("QueueSize"))
	assert.Equal(t, "address", hyphenate("Address"))
	assert.Equal(t, "max-attempts", hyphenate("MaxAttempts"))
}

func TestBindInvalidType(t *testing.T) {
	var config struct {
		Bad []string `default:""`
	}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	assert.Panics(t, func() { Bind(flags, &config) })
	assert.Panics(t, func() { Bind(flags, config) })
}
