package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"github.com/programme-lv/grader/api"
	"github.com/programme-lv/grader/internal/compiler"
	"github.com/programme-lv/grader/internal/config"
	"github.com/programme-lv/grader/internal/grader"
	"github.com/programme-lv/grader/internal/natsgath"
	"github.com/programme-lv/grader/internal/pool"
	"github.com/programme-lv/grader/internal/runner"
	"github.com/programme-lv/grader/internal/sqsgath"
	"github.com/programme-lv/grader/internal/testcase"
)

func main() {
	cmd := &cli.Command{
		Name:  "grader",
		Usage: "grade native-code submissions against a testcase directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "grader.toml",
				Usage: "path to the TOML configuration file",
			},
			&cli.StringFlag{
				Name:  "testcases",
				Usage: "override the testcase directory",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "override the worker count",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "grade",
				Usage:     "submit source files and wait for their reports",
				ArgsUsage: "<file.cpp> [more files...]",
				Action:    runGrade,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runGrade(ctx context.Context, cmd *cli.Command) error {
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if v := cmd.String("testcases"); v != "" {
		cfg.TestcaseDir = v
	}
	if v := cmd.Int("workers"); v > 0 {
		cfg.Workers = int(v)
	}

	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("no source files given")
	}

	progress, err := progressFactory(ctx, cfg)
	if err != nil {
		return err
	}

	eng := grader.New(
		compiler.NewGcc(cfg.Limits.CompileTimeout, logger),
		testcase.NewCatalog(cfg.TestcaseDir),
		runner.New(logger),
		cfg.Limits,
		cfg.ScratchDir,
		logger,
	)
	p := pool.New(eng, cfg.Workers, cfg.QueueCap, cfg.Limits.MaxSourceBytes, progress, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	ids := p.SubmitBatch(files)
	if len(ids) == 0 {
		return fmt.Errorf("no valid submissions")
	}

	for _, id := range ids {
		rep := awaitCompletion(p, id)
		printReport(rep)
	}
	return nil
}

func awaitCompletion(p *pool.Pool, submID string) api.Report {
	for {
		rep := p.Status(submID)
		if rep.Status == api.StatusCompleted {
			return rep
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func printReport(rep api.Report) {
	header := color.New(color.Bold)
	header.Printf("%s (%s)\n", rep.Filename, rep.SubmID)

	switch rep.Overall {
	case api.VerdictSuccess:
		color.Green("  overall: %s  score: %s", rep.Overall, rep.Score())
	case api.VerdictPartial:
		color.Yellow("  overall: %s  score: %s", rep.Overall, rep.Score())
	default:
		color.Red("  overall: %s", rep.Overall)
	}
	fmt.Printf("  public: %s  hidden: %s\n", rep.PublicScore(), rep.HiddenScore())

	if rep.Compile == api.CompileFailed {
		fmt.Printf("  compile error:\n%s\n", rep.CompileErr)
		return
	}
	for _, out := range rep.Outcomes {
		verdict := color.GreenString("PASS")
		if out.Verdict != api.TestPass {
			verdict = color.RedString("FAIL")
		}
		fmt.Printf("  %s-%d: %s", out.Kind, out.Ordinal, verdict)
		if out.Reason != "" {
			fmt.Printf(" (%s)", out.Reason)
		}
		fmt.Println()
	}
}

func progressFactory(ctx context.Context, cfg config.Config) (pool.ProgressFactory, error) {
	var sinks []func(job grader.Job) grader.Gatherer

	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		sinks = append(sinks, func(job grader.Job) grader.Gatherer {
			return natsgath.New(nc, "grader.progress", job.SubmID, job.Filename)
		})
	}

	if cfg.SqsQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := sqs.NewFromConfig(awsCfg)
		sinks = append(sinks, func(job grader.Job) grader.Gatherer {
			return sqsgath.New(client, cfg.SqsQueueURL, job.SubmID, job.Filename)
		})
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	return func(job grader.Job) grader.Gatherer {
		fan := make(grader.Fanout, 0, len(sinks))
		for _, mk := range sinks {
			fan = append(fan, mk(job))
		}
		return fan
	}, nil
}
