// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"flag"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// File is the contents of a configuration file, for example:
//
//	[flags]
//	debug = true
//	frames = 2048
//	log-format = "json"
type File struct {
	// Flags maps flag names to values. Each value is converted to a flag
	// string the way it would be given on the command line.
	Flags map[string]any `toml:"flags"`
}

// LoadFile reads a configuration file.
func LoadFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %q has unknown keys: %v", path, undecoded)
	}
	return &f, nil
}

// apply sets each flag named in f that was not given on the command line.
func (f *File) apply(flagSet *flag.FlagSet) error {
	explicit := make(map[string]bool)
	flagSet.Visit(func(fl *flag.Flag) {
		explicit[fl.Name] = true
	})

	names := make([]string, 0, len(f.Flags))
	for name := range f.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "config" {
			return fmt.Errorf("config file cannot set flag %q", name)
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			return fmt.Errorf("config file sets unknown flag %q", name)
		}
		if explicit[name] {
			continue
		}
		if err := fl.Value.Set(fmt.Sprint(f.Flags[name])); err != nil {
			return fmt.Errorf("error setting flag %s=%v from config file: %w", name, f.Flags[name], err)
		}
	}
	return nil
}
