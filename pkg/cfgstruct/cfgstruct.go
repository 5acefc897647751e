// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package cfgstruct turns configuration structs into flags by walking
// them with reflection. Field tags drive the flag definition:
//
//	help:    the flag usage string
//	default: the default value, parsed per field type
//	hidden:  "true" hides the flag from help output
//	setup:   "true" marks the flag as setup-only
//
// Nested structs become dotted flag prefixes, so a field QueueSize on
// a struct bound under "publisher" becomes publisher.queue-size.
package cfgstruct

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// BindOpt is an option for Bind.
type BindOpt func(vars map[string]string)

// ConfDir sets the $CONFDIR variable usable in default values.
func ConfDir(path string) BindOpt {
	return func(vars map[string]string) {
		vars["CONFDIR"] = strings.TrimSuffix(path, "/")
	}
}

// Bind defines one flag on flags for every leaf field of the config
// struct. config must be a pointer to a struct; the flags write
// through into its fields. Invalid field types and unparsable defaults
// are programmer errors and panic.
func Bind(flags *pflag.FlagSet, config interface{}, opts ...BindOpt) {
	ptr := reflect.ValueOf(config)
	if ptr.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("invalid config type: %T, expected pointer to struct", config))
	}
	vars := map[string]string{}
	for _, opt := range opts {
		opt(vars)
	}
	bindConfig(flags, "", ptr.Elem(), vars)
}

func bindConfig(flags *pflag.FlagSet, prefix string, structval reflect.Value, vars map[string]string) {
	typ := structval.Type()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("invalid config type: %v, expected struct", typ))
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldval := structval.Field(i)
		flagname := prefix + hyphenate(field.Name)

		if field.Type.Kind() == reflect.Struct {
			if field.Anonymous {
				bindConfig(flags, prefix, fieldval, vars)
			} else {
				bindConfig(flags, flagname+".", fieldval, vars)
			}
			continue
		}

		help := field.Tag.Get("help")
		def := expand(field.Tag.Get("default"), vars)
		fieldaddr := fieldval.Addr().Interface()

		switch field.Type {
		case reflect.TypeOf(time.Duration(0)):
			flags.DurationVar(fieldaddr.(*time.Duration), flagname, parseDuration(flagname, def), help)
		default:
			switch field.Type.Kind() {
			case reflect.Bool:
				flags.BoolVar(fieldaddr.(*bool), flagname, parseBool(flagname, def), help)
			case reflect.Int:
				flags.IntVar(fieldaddr.(*int), flagname, int(parseInt(flagname, def)), help)
			case reflect.Int64:
				flags.Int64Var(fieldaddr.(*int64), flagname, parseInt(flagname, def), help)
			case reflect.Uint:
				flags.UintVar(fieldaddr.(*uint), flagname, uint(parseUint(flagname, def)), help)
			case reflect.Uint64:
				flags.Uint64Var(fieldaddr.(*uint64), flagname, parseUint(flagname, def), help)
			case reflect.Float64:
				flags.Float64Var(fieldaddr.(*float64), flagname, parseFloat(flagname, def), help)
			case reflect.String:
				flags.StringVar(fieldaddr.(*string), flagname, def, help)
			default:
				panic(fmt.Sprintf("invalid field type %v for flag %q", field.Type, flagname))
			}
		}

		if field.Tag.Get("hidden") == "true" {
			must(flagname, flags.MarkHidden(flagname))
			must(flagname, flags.SetAnnotation(flagname, "hidden", []string{"true"}))
		}
		if field.Tag.Get("setup") == "true" {
			must(flagname, flags.SetAnnotation(flagname, "setup", []string{"true"}))
		}
	}
}

// hyphenate turns a Go field name into a flag name segment,
// QueueSize becomes queue-size.
func hyphenate(name string) string {
	var out strings.Builder
	for i, r := range name {
		if 'A' <= r && r <= 'Z' {
			if i > 0 {
				out.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		out.WriteRune(r)
	}
	return out.String()
}

func expand(def string, vars map[string]string) string {
	for name, value := range vars {
		def = strings.Replace(def, "$"+name, value, -1)
	}
	return def
}

func parseDuration(flagname, def string) time.Duration {
	if def == "" {
		return 0
	}
	val, err := time.ParseDuration(def)
	must(flagname, err)
	return val
}

func parseBool(flagname, def string) bool {
	if def == "" {
		return false
	}
	val, err := strconv.ParseBool(def)
	must(flagname, err)
	return val
}

func parseInt(flagname, def string) int64 {
	if def == "" {
		return 0
	}
	val, err := strconv.ParseInt(def, 0, 64)
	must(flagname, err)
	return val
}

func parseUint(flagname, def string) uint64 {
	if def == "" {
		return 0
	}
	val, err := strconv.ParseUint(def, 0, 64)
	must(flagname, err)
	return val
}

func parseFloat(flagname, def string) float64 {
	if def == "" {
		return 0
	}
	val, err := strconv.ParseFloat(def, 64)
	must(flagname, err)
	return val
}

func must(flagname string, err error) {
	if err != nil {
		panic(fmt.Sprintf("invalid default for flag %q: %v", flagname, err))
	}
}
