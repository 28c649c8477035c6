package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"jenkinsflow/config"
	"jenkinsflow/internal/observability"
	"jenkinsflow/jenkins"
	"jenkinsflow/workflow"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		testConn   bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:           "jenkinsflow",
		Short:         "Trigger Jenkins jobs in sequence and track them to completion",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if dryRun {
				printDryRun(configPath, cfg)
				return nil
			}

			logger, err := observability.NewLogger(cfg.LogFile)
			if err != nil {
				return err
			}

			metrics := observability.NewMetrics(nil)
			client := jenkins.NewClient(cfg.JenkinsURL, cfg.Username, cfg.PasswordOrToken, jenkins.Options{
				QueuePolicy: jenkins.QueuePolicy{
					MaxAttempts: cfg.Queue.MaxAttempts,
					Interval:    time.Duration(cfg.Queue.IntervalSeconds) * time.Second,
				},
				Logger:  logger,
				Metrics: metrics,
			})

			ctx := context.Background()

			if testConn {
				if err := client.TestConnection(ctx); err != nil {
					return err
				}
				fmt.Println("connection test passed")
				return nil
			}

			if cfg.MetricsListen != "" {
				if err := startMetricsServer(cfg.MetricsListen, logger); err != nil {
					return err
				}
			}

			client.ResolveCrumb(ctx)

			tracker := &workflow.Tracker{}
			workflow.NewInterruptHandler(client, tracker, logger).Watch()

			orchestrator := workflow.New(client, cfg, tracker,
				workflow.NewPoller(logger, metrics), logger, metrics)
			if err := orchestrator.Run(ctx); err != nil {
				logger.Errorf("build workflow failed: %v", err)
				return err
			}

			fmt.Println("build workflow completed")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "jenkins_config.json", "Path to the JSON configuration file")
	cmd.Flags().BoolVar(&testConn, "test", false, "Probe Jenkins connectivity and exit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the resolved settings and job list without building")

	return cmd
}

func printDryRun(configPath string, cfg *config.Config) {
	fmt.Println("dry run - resolved settings, nothing will be built")
	fmt.Printf("config file: %s\n", configPath)
	fmt.Printf("Jenkins URL: %s\n", cfg.JenkinsURL)
	fmt.Printf("user: %s\n", cfg.Username)
	fmt.Printf("branch: %s\n", cfg.Branch)

	jobs := cfg.Jobs()
	fmt.Printf("jobs: %d\n", len(jobs))
	for i, job := range jobs {
		fmt.Printf("  %d. %s - %s\n", i+1, job.Name, job.Description)
		if len(job.Parameters) > 0 {
			fmt.Printf("     parameters: %v\n", job.Parameters)
		}
	}

	if cfg.FirstJob != "" || cfg.SecondJob != "" {
		fmt.Println("legacy job settings:")
		fmt.Printf("  first_job: %s\n", orNA(cfg.FirstJob))
		fmt.Printf("  second_job: %s\n", orNA(cfg.SecondJob))
	}

	fmt.Printf("polling enabled: %v\n", cfg.EnablePolling)
	fmt.Printf("polling URL: %s\n", orNA(cfg.PollingURL))
	fmt.Printf("wait between builds: %d seconds\n", cfg.WaitBetweenBuilds)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// startMetricsServer exposes /metrics in the background for the lifetime of
// the run.
func startMetricsServer(listen string, logger *logrus.Logger) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("metrics listener on %s: %w", listen, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = server.Serve(ln)
	}()

	logger.Infof("metrics listening on %s", ln.Addr())
	return nil
}
