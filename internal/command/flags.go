// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os"
	"os/exec"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/staranto/docsite/internal/config"
	"github.com/staranto/docsite/internal/offline"
)

func init() {
	cfg, _ = config.Load("")
}

var (
	cfg config.Type

	schemaFlag *cli.BoolFlag = &cli.BoolFlag{
		Name:        "schema",
		Usage:       "dump the schema",
		HideDefault: true,
	}

	tldrFlag *cli.BoolFlag = &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show tldr page",
		Hidden:      !pathHas("tldr"),
		HideDefault: true,
	}
)

// NewGlobalFlags returns the output flags shared by every listing command.
// params[0] is the command namespace used for config lookups.
func NewGlobalFlags(params ...string) (flags []cli.Flag) {
	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of attributes to include in results",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"color", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("color", altsrc.StringSourcer(cfg.Source)),
			),
			Value: isTerminal(os.Stdout),
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"output", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("output", altsrc.StringSourcer(cfg.Source)),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"sort", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(params[0]+"."+"titles", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("titles", altsrc.StringSourcer(cfg.Source)),
			),
			Value: false,
		},
	}

	return
}

// NewCacheFlags returns the flags that select the cache generation, where it
// is stored and where misses are fetched from. Every flag can also be set
// through the environment or the config file, namespaced by command.
func NewCacheFlags(ns string) []cli.Flag {
	return []cli.Flag{
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "cache-version",
			Aliases: []string{"V"},
			Usage:   "name of the current cache generation",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DOCSITE_CACHE_VERSION")),
			Value:   offline.DefaultVersion,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, NotEmptyValidator)
			},
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "scope",
			Usage:   "origin URL the cache serves",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DOCSITE_SCOPE")),
			Value:   "http://localhost:8080/",
			Validator: func(value string) error {
				return FlagValidators(value, AbsoluteURLValidator)
			},
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "local directory to use as the origin instead of the network",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DOCSITE_ROOT")),
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "manifest",
			Aliases: []string{"m"},
			Usage:   "web app manifest whose start_url and icons are precached too",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DOCSITE_MANIFEST")),
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "storage",
			Usage:   "cache storage backend (file, memory, s3)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DOCSITE_STORAGE")),
			Value:   "file",
			Validator: func(value string) error {
				return FlagValidators(value, StorageValidator)
			},
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "bucket",
			Usage:   "s3 bucket holding the generations",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DOCSITE_BUCKET")),
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "prefix",
			Usage:   "s3 key prefix of the generations",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DOCSITE_PREFIX")),
			Value:   "docsite",
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:  "region",
			Usage: "s3 region",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DOCSITE_REGION"),
				cli.EnvVar("AWS_REGION"),
			),
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:  "profile",
			Usage: "aws shared config profile",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DOCSITE_PROFILE"),
				cli.EnvVar("AWS_PROFILE"),
			),
		}),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "endpoint",
			Usage:   "s3 compatible endpoint; implies path-style addressing",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DOCSITE_ENDPOINT")),
		}),
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "network timeout per request, 0 for none",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("DOCSITE_TIMEOUT"),
				yaml.YAML(ns+".timeout", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("timeout", altsrc.StringSourcer(cfg.Source)),
			),
			Value: time.Duration(0),
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "parallel fetches while precaching",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+".concurrency", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("concurrency", altsrc.StringSourcer(cfg.Source)),
			),
			Value: offline.DefaultConcurrency,
		},
	}
}

// NameSpacedValueChainFlagFromConfigFile adds namespaced and global config file
// sources to the given flag's Sources chain.
func NameSpacedValueChainFlagFromConfigFile(ns string, path string, flag *cli.StringFlag) *cli.StringFlag {
	src := yaml.YAML(ns+"."+flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	src = yaml.YAML(flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	return flag
}

// pathHas checks if the given binary is on the PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}

// isTerminal reports whether f is attached to a terminal. Colour defaults to
// on only then.
func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
