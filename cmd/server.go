// Package cmd holds the CLI subcommands and the backend launch settings they
// share with the root command.
package cmd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/smazurov/sidecar/internal/config"
	"github.com/smazurov/sidecar/internal/process"
)

// Defaults for the environment every backend is started with.
const (
	DefaultBrowserEnv = "DISABLE_BROWSER_OPEN"
	DefaultLogEnv     = "RUST_LOG"
	DefaultLogLevel   = "info"
)

// ServerOptions describes how to launch the backend.
type ServerOptions struct {
	Command    string   // executable and arguments, shell-style quoting
	Args       []string // appended to Command, or the whole argv when Command is empty
	ExtraEnv   string   // KEY=VALUE pairs separated by commas
	BrowserEnv string   // set to "1" to keep the backend from opening a browser
	LogEnv     string   // receives LogLevel
	LogLevel   string
}

// ServerSpec builds the process spec for the backend. The browser and log
// variables are always set and take precedence over ExtraEnv.
func ServerSpec(o ServerOptions) (process.Spec, error) {
	env, err := config.ParseEnvPairs(o.ExtraEnv)
	if err != nil {
		return process.Spec{}, err
	}

	env[orDefault(o.BrowserEnv, DefaultBrowserEnv)] = "1"
	env[orDefault(o.LogEnv, DefaultLogEnv)] = orDefault(o.LogLevel, DefaultLogLevel)

	if o.Command == "" {
		if len(o.Args) == 0 {
			return process.Spec{}, errors.New("no backend command configured")
		}
		return process.Spec{Path: o.Args[0], Args: slices.Clone(o.Args[1:]), Env: env}, nil
	}

	spec, err := process.ParseSpec(o.Command, env)
	if err != nil {
		return process.Spec{}, fmt.Errorf("parse server command: %w", err)
	}
	spec.Args = append(spec.Args, o.Args...)
	return spec, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
