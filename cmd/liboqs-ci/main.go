package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli"

	"liboqs-ci/internal/config"
	"liboqs-ci/internal/core"
	"liboqs-ci/internal/history"
	"liboqs-ci/internal/identity"
	"liboqs-ci/internal/storage"
)

const defaultConfig = ".ci/config.yml"

func main() {
	app := cli.NewApp()
	app.Name = "liboqs-ci"
	app.Usage = "validate, resolve and run pipeline documents"
	app.Commands = []cli.Command{
		validateCommand,
		resolveCommand,
		runCommand,
		journalCommand,
		keysCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configPath(c *cli.Context) string {
	if path := c.Args().First(); path != "" {
		return path
	}
	return defaultConfig
}

var validateCommand = cli.Command{
	Name:      "validate",
	Usage:     "parse a pipeline document and check it against the runner schema",
	ArgsUsage: "[config.yml]",
	Action: func(c *cli.Context) error {
		path := configPath(c)
		p, err := config.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s: ok (%d job(s), %d workflow(s))\n", path, len(p.Jobs), len(p.Workflows))
		return nil
	},
}

var resolveCommand = cli.Command{
	Name:      "resolve",
	Usage:     "print every job with its template fully bound",
	ArgsUsage: "[config.yml]",
	Action: func(c *cli.Context) error {
		p, err := config.Load(configPath(c))
		if err != nil {
			return err
		}
		jobs, err := core.ResolveAll(p)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	},
}

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "execute a workflow (or a single job) from a pipeline document",
	ArgsUsage: "[config.yml]",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "workflow, w", Usage: "workflow to run (defaults to the only one declared)"},
		cli.StringFlag{Name: "job, j", Usage: "run a single job instead of a workflow"},
		cli.StringFlag{Name: "source", Value: ".", Usage: "what the checkout step materializes"},
		cli.StringFlag{Name: "data", Value: ".liboqs-ci", Usage: "directory for workspaces, logs and the journal"},
		cli.DurationFlag{Name: "step-timeout", Usage: "per-step timeout (default 30m)"},
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	p, err := config.Load(configPath(c))
	if err != nil {
		return err
	}

	runner, journal, err := buildRunner(c.String("data"), c.String("source"), c.Duration("step-timeout"))
	if err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102-150405")
	ctx := context.Background()

	if job := c.String("job"); job != "" {
		rj, err := core.Resolve(p, job)
		if err != nil {
			return err
		}
		jr := runner.RunJob(ctx, runID, "", rj)
		if jr.Err != nil {
			return fmt.Errorf("job %s failed: %w", job, jr.Err)
		}
		return verifyJournal(journal)
	}

	workflow := c.String("workflow")
	if workflow == "" {
		if len(p.Workflows) != 1 {
			return fmt.Errorf("document declares %d workflows, pick one with --workflow", len(p.Workflows))
		}
		for name := range p.Workflows {
			workflow = name
		}
	}

	result, err := core.NewScheduler(runner).RunWorkflow(ctx, p, runID, workflow)
	if err != nil {
		return err
	}

	fmt.Println()
	for _, jr := range result.Jobs {
		fmt.Printf("  %-20s %s\n", jr.Job, jr.Status)
	}
	fmt.Printf("Workflow %s finished in %s\n", workflow, result.Duration.Round(time.Millisecond))

	if err := verifyJournal(journal); err != nil {
		return err
	}
	if result.Failed() {
		return fmt.Errorf("workflow %s failed", workflow)
	}
	return nil
}

func buildRunner(dataDir, source string, stepTimeout time.Duration) (*core.Runner, *history.Journal, error) {
	signer, err := identity.LoadOrGenerate(filepath.Join(dataDir, "keys"))
	if err != nil {
		return nil, nil, fmt.Errorf("init runner identity: %w", err)
	}
	journal, err := history.Open(filepath.Join(dataDir, "journal.jsonl"), signer)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}

	executor := core.NewExecutor(source)
	executor.Timeout = stepTimeout
	runner := core.NewRunner(
		executor,
		storage.NewLogStorage(filepath.Join(dataDir, "logs")),
		journal,
		filepath.Join(dataDir, "work"),
	)
	return runner, journal, nil
}

func verifyJournal(journal *history.Journal) error {
	if err := journal.Verify(); err != nil {
		return fmt.Errorf("journal verification failed: %w", err)
	}
	return nil
}

var journalCommand = cli.Command{
	Name:  "journal",
	Usage: "inspect or verify the run journal",
	Subcommands: []cli.Command{
		{
			Name:      "inspect",
			Usage:     "print the journal records",
			ArgsUsage: "<journal.jsonl>",
			Action: func(c *cli.Context) error {
				journal, err := openJournal(c)
				if err != nil {
					return err
				}
				for _, rec := range journal.Records() {
					fmt.Printf("%4d  %s  run=%s job=%s step=%q exit=%d hash=%s\n",
						rec.Index, rec.Timestamp, rec.RunID, rec.Job, rec.Step, rec.ExitCode, short(rec.Hash))
				}
				return nil
			},
		},
		{
			Name:      "verify",
			Usage:     "recompute hashes, chain links and signatures",
			ArgsUsage: "<journal.jsonl>",
			Action: func(c *cli.Context) error {
				journal, err := openJournal(c)
				if err != nil {
					return err
				}
				if err := journal.Verify(); err != nil {
					return fmt.Errorf("verification FAILED: %w", err)
				}
				fmt.Println("journal verification ok")
				return nil
			},
		},
	},
}

func openJournal(c *cli.Context) (*history.Journal, error) {
	path := c.Args().First()
	if path == "" {
		path = filepath.Join(".liboqs-ci", "journal.jsonl")
	}
	return history.Open(path, nil)
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

var keysCommand = cli.Command{
	Name:  "keys",
	Usage: "manage the runner identity keypair",
	Subcommands: []cli.Command{
		{
			Name:  "generate",
			Usage: "generate a fresh keypair",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "dir", Value: filepath.Join(".liboqs-ci", "keys"), Usage: "where to write runner.pub / runner.priv"},
			},
			Action: func(c *cli.Context) error {
				dir := c.String("dir")
				signer, err := identity.Generate()
				if err != nil {
					return err
				}
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return err
				}
				if err := signer.Save(filepath.Join(dir, "runner.pub"), filepath.Join(dir, "runner.priv")); err != nil {
					return err
				}
				fmt.Println("wrote keypair to", dir)
				fmt.Println("public key:", signer.PublicKeyHex())
				return nil
			},
		},
	},
}
