package workflow

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"jenkinsflow/config"
	"jenkinsflow/jenkins"
)

// fakeJenkins simulates the controller endpoints the workflow touches:
// trigger, queue item, and build status.
type fakeJenkins struct {
	mu          sync.Mutex
	attempts    []string        // jobs in trigger order
	rejectJobs  map[string]bool // trigger answers 500
	failJobs    map[string]bool // build finishes with FAILURE
	pollCalls   int             // hits on /health
	healthCode  int
	nextNumber  int
	buildNumber map[string]int
	baseURL     string
}

func newFakeJenkins() *fakeJenkins {
	return &fakeJenkins{
		rejectJobs:  map[string]bool{},
		failJobs:    map[string]bool{},
		healthCode:  http.StatusOK,
		buildNumber: map[string]int{},
	}
}

func (f *fakeJenkins) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/health" {
		f.pollCalls++
		w.WriteHeader(f.healthCode)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "job" && parts[2] == "buildWithParameters":
		job := parts[1]
		f.attempts = append(f.attempts, job)
		if f.rejectJobs[job] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.nextNumber++
		f.buildNumber[job] = f.nextNumber
		w.Header().Set("Location", fmt.Sprintf("%s/queue/item/%d/", f.baseURL, f.nextNumber))
		w.WriteHeader(http.StatusCreated)

	case len(parts) == 5 && parts[0] == "queue" && parts[4] == "json":
		fmt.Fprintf(w, `{"executable":{"number":%s}}`, parts[2])

	case len(parts) == 5 && parts[0] == "job" && parts[4] == "json":
		job := parts[1]
		number, _ := strconv.Atoi(parts[2])
		result := jenkins.ResultSuccess
		if f.failJobs[job] {
			result = jenkins.ResultFailure
		}
		fmt.Fprintf(w, `{"number":%d,"building":false,"result":"%s"}`, number, result)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeJenkins) triggerOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.attempts...)
}

func (f *fakeJenkins) healthHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCalls
}

func newTestOrchestrator(t *testing.T, fake *fakeJenkins, cfg *config.Config) (*Orchestrator, *Tracker) {
	t.Helper()
	srv := mustTestServer(t, fake)
	if srv == nil {
		return nil, nil
	}
	t.Cleanup(srv.Close)
	fake.baseURL = srv.URL

	cfg.JenkinsURL = srv.URL
	if cfg.PollingURL == "" {
		cfg.PollingURL = srv.URL + "/health"
	}

	logger := newTestLogger()
	client := jenkins.NewClient(srv.URL, "ci", "token", jenkins.Options{
		QueuePolicy: jenkins.QueuePolicy{MaxAttempts: 3, Interval: time.Millisecond},
		Logger:      logger,
	})
	tracker := &Tracker{}
	return New(client, cfg, tracker, NewPoller(logger, nil), logger, nil), tracker
}

func testConfig(jobs ...string) *config.Config {
	cfg := &config.Config{
		Username:        "ci",
		PasswordOrToken: "token",
		Branch:          "main",
		Build:           config.BuildConfig{TimeoutSeconds: 5},
		Polling:         config.PollingConfig{MaxAttempts: 2, ExpectedStatusCode: 200},
	}
	for _, name := range jobs {
		cfg.JobList = append(cfg.JobList, config.Job{Name: name})
	}
	return cfg
}

func TestRunVisitsAllJobsInOrder(t *testing.T) {
	fake := newFakeJenkins()
	orch, tracker := newTestOrchestrator(t, fake, testConfig("boot", "slave", "report"))
	if orch == nil {
		return
	}

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	order := fake.triggerOrder()
	want := []string{"boot", "slave", "report"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
	if _, _, ok := tracker.Current(); ok {
		t.Fatal("expected the tracker to be clear after the run")
	}
}

func TestRunAbortsOnTriggerFailure(t *testing.T) {
	fake := newFakeJenkins()
	fake.rejectJobs["slave"] = true
	orch, tracker := newTestOrchestrator(t, fake, testConfig("boot", "slave", "report"))
	if orch == nil {
		return
	}

	if err := orch.Run(context.Background()); err == nil {
		t.Fatal("expected the run to fail")
	}

	order := fake.triggerOrder()
	if len(order) != 2 || order[1] != "slave" {
		t.Fatalf("expected the run to stop at slave, got %v", order)
	}
	if _, _, ok := tracker.Current(); ok {
		t.Fatal("expected the tracker to be clear after a trigger failure")
	}
}

func TestRunAbortsOnBuildFailure(t *testing.T) {
	fake := newFakeJenkins()
	fake.failJobs["slave"] = true
	orch, tracker := newTestOrchestrator(t, fake, testConfig("boot", "slave", "report"))
	if orch == nil {
		return
	}

	if err := orch.Run(context.Background()); err == nil {
		t.Fatal("expected the run to fail")
	}

	order := fake.triggerOrder()
	if len(order) != 2 {
		t.Fatalf("expected report to never be triggered, got %v", order)
	}
	if _, _, ok := tracker.Current(); ok {
		t.Fatal("expected the tracker to be clear after a build failure")
	}
}

func TestRunPollsOnlyAfterTheFirstJob(t *testing.T) {
	fake := newFakeJenkins()
	cfg := testConfig("boot", "slave", "report")
	cfg.EnablePolling = true
	orch, _ := newTestOrchestrator(t, fake, cfg)
	if orch == nil {
		return
	}

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if hits := fake.healthHits(); hits != 1 {
		t.Fatalf("expected exactly one readiness poll (after job 1 only), got %d", hits)
	}
}

func TestRunAbortsWhenPollingFails(t *testing.T) {
	fake := newFakeJenkins()
	fake.healthCode = http.StatusInternalServerError
	cfg := testConfig("boot", "slave")
	cfg.EnablePolling = true
	orch, _ := newTestOrchestrator(t, fake, cfg)
	if orch == nil {
		return
	}

	if err := orch.Run(context.Background()); err == nil {
		t.Fatal("expected the run to fail when polling exhausts")
	}

	order := fake.triggerOrder()
	if len(order) != 1 {
		t.Fatalf("expected slave to never be triggered, got %v", order)
	}
}

func TestRunSingleJobSkipsPollingAndWaits(t *testing.T) {
	fake := newFakeJenkins()
	cfg := testConfig("boot")
	cfg.EnablePolling = true
	orch, _ := newTestOrchestrator(t, fake, cfg)
	if orch == nil {
		return
	}

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if hits := fake.healthHits(); hits != 0 {
		t.Fatalf("expected no readiness poll after the last job, got %d", hits)
	}
}

func TestRunRequiresJobs(t *testing.T) {
	fake := newFakeJenkins()
	orch, _ := newTestOrchestrator(t, fake, testConfig())
	if orch == nil {
		return
	}

	if err := orch.Run(context.Background()); err == nil {
		t.Fatal("expected an error when no jobs are configured")
	}
}
