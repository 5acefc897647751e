// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package process

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
	yaml "gopkg.in/yaml.v2"
)

// SaveConfig writes the flags of flagset as a yaml config file to
// outfile, with the values in overrides taking precedence over the
// current flag values. Hidden and setup-only flags are not saved.
func SaveConfig(flagset *pflag.FlagSet, outfile string, overrides map[string]interface{}) error {
	settings := map[string]interface{}{}

	flagset.VisitAll(func(f *pflag.Flag) {
		if readBoolAnnotation(f, "hidden") || readBoolAnnotation(f, "setup") {
			return
		}
		if f.Name == "config" || f.Name == "help" {
			return
		}
		value := f.Value.String()
		if override, ok := overrides[f.Name]; ok {
			settings[f.Name] = override
			return
		}
		settings[f.Name] = value
	})

	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, key := range keys {
		data, err := yaml.Marshal(map[string]interface{}{key: settings[key]})
		if err != nil {
			return errs.Wrap(err)
		}
		out.Write(data)
	}

	if err := os.MkdirAll(filepath.Dir(outfile), 0700); err != nil {
		return errs.Wrap(err)
	}
	return errs.Wrap(atomicWrite(outfile, 0600, []byte(out.String())))
}

// readBoolAnnotation is a helper to see if a boolean annotation is set to true on the flag.
func readBoolAnnotation(flag *pflag.Flag, key string) bool {
	annotation := flag.Annotations[key]
	return len(annotation) > 0 && annotation[0] == "true"
}

// atomicWrite is a helper to atomically write the data to the outfile.
func atomicWrite(outfile string, mode os.FileMode, data []byte) (err error) {
	fh, err := ioutil.TempFile(filepath.Dir(outfile), filepath.Base(outfile))
	if err != nil {
		return errs.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, fh.Close())
			err = errs.Combine(err, os.Remove(fh.Name()))
		}
	}()
	if _, err := fh.Write(data); err != nil {
		return errs.Wrap(err)
	}
	if err := fh.Sync(); err != nil {
		return errs.Wrap(err)
	}
	if err := fh.Close(); err != nil {
		return errs.Wrap(err)
	}
	if err := os.Chmod(fh.Name(), mode); err != nil {
		return errs.Wrap(err)
	}
	if err := os.Rename(fh.Name(), outfile); err != nil {
		return errs.Wrap(err)
	}
	return nil
}
