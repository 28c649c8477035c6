package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"jenkinsflow/config"
	"jenkinsflow/internal/observability"
	"jenkinsflow/jenkins"
)

// Orchestrator runs the configured jobs strictly one at a time: trigger,
// track, await completion, untrack, then move on. The first failure aborts
// the whole pipeline; later jobs are never attempted.
type Orchestrator struct {
	client   *jenkins.Client
	cfg      *config.Config
	tracker  *Tracker
	poller   *Poller
	progress *Progress
	logger   *logrus.Logger
	metrics  *observability.Metrics
}

func New(client *jenkins.Client, cfg *config.Config, tracker *Tracker, poller *Poller, logger *logrus.Logger, metrics *observability.Metrics) *Orchestrator {
	if logger == nil {
		logger = observability.NewConsoleLogger()
	}
	if tracker == nil {
		tracker = &Tracker{}
	}
	if poller == nil {
		poller = NewPoller(logger, metrics)
	}
	return &Orchestrator{
		client:   client,
		cfg:      cfg,
		tracker:  tracker,
		poller:   poller,
		progress: NewProgress(),
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes the full workflow and returns nil only when every job
// succeeded.
func (o *Orchestrator) Run(ctx context.Context) error {
	jobs := o.cfg.Jobs()
	if len(jobs) == 0 {
		return fmt.Errorf("no jobs configured")
	}

	o.logBanner(jobs)

	for i, job := range jobs {
		o.logger.Infof("step %d/%d: building [%s] - %s", i+1, len(jobs), job.Name, job.Description)

		ref, err := o.client.Trigger(ctx, job.Name, o.cfg.Branch, job.Parameters)
		if err != nil {
			o.logger.Errorf("trigger failed, aborting the pipeline: %v", err)
			return err
		}
		o.metrics.IncTrigger(job.Name)

		o.tracker.Set(job.Name, ref)
		o.progress.StartSpinner(fmt.Sprintf("building %s %s", job.Name, ref))
		ok := o.client.WaitForCompletion(ctx, job.Name, ref,
			time.Duration(o.cfg.Build.TimeoutSeconds)*time.Second,
			time.Duration(o.cfg.Build.CheckIntervalSeconds)*time.Second)
		o.progress.StopSpinner()
		o.tracker.Clear()

		if !ok {
			return fmt.Errorf("job %s did not complete successfully", job.Name)
		}
		o.logger.Infof("job %s built successfully", job.Name)

		if i == len(jobs)-1 {
			continue
		}

		// Readiness polling runs only after the first job; later jobs
		// depend on state the first one established.
		if i == 0 && o.cfg.EnablePolling {
			o.logger.Info("endpoint readiness check")
			if !o.poller.PollUntilSuccess(ctx, o.cfg.PollingURL,
				o.cfg.Polling.MaxAttempts,
				time.Duration(o.cfg.Polling.IntervalSeconds)*time.Second,
				o.cfg.Polling.ExpectedStatusCode) {
				return fmt.Errorf("endpoint polling failed, aborting the pipeline")
			}
		}

		next := jobs[i+1]
		if o.cfg.WaitBetweenBuilds > 0 {
			o.logger.Infof("waiting %d seconds before the next job [%s]", o.cfg.WaitBetweenBuilds, next.Name)
			o.progress.Countdown(ctx, time.Duration(o.cfg.WaitBetweenBuilds)*time.Second, "next job in")
			o.logger.Info("wait finished, starting the next job")
		} else {
			o.logger.Infof("starting the next job immediately [%s]", next.Name)
		}
	}

	o.logger.Info("all jobs completed")
	return nil
}

func (o *Orchestrator) logBanner(jobs []config.Job) {
	o.logger.Info("starting the automated build workflow")
	o.logger.Infof("Jenkins: %s", o.cfg.JenkinsURL)
	o.logger.Infof("user: %s", o.cfg.Username)
	o.logger.Infof("branch: %s", o.cfg.Branch)
	o.logger.Infof("jobs: %d", len(jobs))
	for i, job := range jobs {
		o.logger.Infof("  %d. %s - %s", i+1, job.Name, job.Description)
	}
	o.logger.Infof("wait between builds: %d seconds", o.cfg.WaitBetweenBuilds)
	if o.cfg.EnablePolling {
		o.logger.Infof("readiness endpoint: %s", o.cfg.PollingURL)
	} else {
		o.logger.Info("mode: direct builds, no endpoint polling")
	}
}
