// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/gops/agent"

	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/internal/orchestrator"
	"github.com/yandex-load/volta-go/pkg/log"
)

// patchFlags collects repeated -p/--patch-cfg occurrences.
type patchFlags []string

func (p *patchFlags) String() string { return fmt.Sprint([]string(*p)) }
func (p *patchFlags) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	var configPath, defaultsPath, logPath string
	var debug, verbose, quiet, trace bool
	var patches patchFlags

	flag.StringVar(&configPath, "c", "", "Path to the run's YAML `config` file")
	flag.StringVar(&configPath, "config", "", "Path to the run's YAML `config` file")
	flag.StringVar(&defaultsPath, "defaults", "", "Optional YAML `defaults` file, merged underneath the main config")
	flag.StringVar(&logPath, "l", "", "Write the runtime log to `path` instead of stderr")
	flag.StringVar(&logPath, "log", "", "Write the runtime log to `path` instead of stderr")
	flag.BoolVar(&debug, "d", false, "Enable debug-level logging")
	flag.BoolVar(&debug, "debug", false, "Enable debug-level logging")
	flag.BoolVar(&verbose, "v", false, "Enable info-level logging")
	flag.BoolVar(&verbose, "verbose", false, "Enable info-level logging")
	flag.BoolVar(&quiet, "q", false, "Only log warnings and errors")
	flag.BoolVar(&quiet, "quiet", false, "Only log warnings and errors")
	flag.BoolVar(&trace, "t", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&trace, "trace", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Var(&patches, "p", "A YAML `snippet` to deep-merge over the config file (repeatable)")
	flag.Var(&patches, "patch-cfg", "A YAML `snippet` to deep-merge over the config file (repeatable)")
	flag.Parse()

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "volta: -c/--config is required")
		os.Exit(2)
	}

	switch {
	case debug:
		log.SetLogLevel("debug")
	case verbose:
		log.SetLogLevel("info")
	case quiet:
		log.SetLogLevel("warn")
	default:
		log.SetLogLevel("info")
	}

	var logFile *os.File
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("opening log file %s: %s", logPath, err.Error())
		}
		logFile = f
		log.SetOutput(f)
	}

	if trace {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	config.LoadDotEnv("")

	cfg, err := config.Load(configPath, defaultsPath, patches)
	if err != nil {
		log.Fatalf("loading config: %s", err.Error())
	}

	orch, err := orchestrator.New(cfg)
	if err != nil {
		log.Fatalf("initializing run: %s", err.Error())
	}
	if logFile != nil {
		orch.RuntimeLogPath = logPath
	}

	if snapshot, err := json.MarshalIndent(cfg, "", "  "); err == nil {
		if err := orch.Session().WriteConfigSnapshot(snapshot); err != nil {
			log.Warnf("writing config snapshot: %s", err.Error())
		}
	}

	if err := orch.Configure(); err != nil {
		log.Fatalf("configuring run: %s", err.Error())
	}

	orch.StartTest()
	orch.Wait(orchestrator.WaitForInterrupt())
	orch.EndTest()

	if err := orch.PostProcess(); err != nil {
		log.Errorf("post-processing run: %s", err.Error())
		os.Exit(1)
	}

	log.Infof("run %s complete, artifacts in %s", cfg.Core.TestID, orch.Session().ArtifactsDir)
}
