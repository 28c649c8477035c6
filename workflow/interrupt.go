package workflow

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/sirupsen/logrus"

	"jenkinsflow/jenkins"
)

const stopRequestTimeout = 15 * time.Second

// InterruptHandler watches for termination signals and, when a build is in
// flight, offers to stop it before exiting. It runs on an ordinary goroutine
// (not inside asynchronous signal delivery), so blocking on the prompt is
// safe even while an HTTP call is outstanding elsewhere.
type InterruptHandler struct {
	client  *jenkins.Client
	tracker *Tracker
	logger  *logrus.Logger

	// Overridable for tests.
	confirm func(message string) (bool, error)
	exit    func(code int)
}

func NewInterruptHandler(client *jenkins.Client, tracker *Tracker, logger *logrus.Logger) *InterruptHandler {
	return &InterruptHandler{
		client:  client,
		tracker: tracker,
		logger:  logger,
		confirm: askConfirm,
		exit:    os.Exit,
	}
}

// Watch registers for SIGINT/SIGTERM and handles the first delivery.
// The process always exits non-zero after an interrupt.
func (h *InterruptHandler) Watch() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		h.handle()
	}()
}

func (h *InterruptHandler) handle() {
	h.logger.Info("interrupt received")

	if job, ref, ok := h.tracker.Current(); ok {
		h.logger.Infof("currently running: %s %s", job, ref)

		stop, err := h.confirm(fmt.Sprintf("Stop the running Jenkins build %s %s?", job, ref))
		switch {
		case err != nil:
			h.logger.Warnf("no answer to the stop prompt, leaving the build running: %v", err)
		case stop:
			h.logger.Infof("stopping build: %s %s", job, ref)
			ctx, cancel := context.WithTimeout(context.Background(), stopRequestTimeout)
			defer cancel()
			if err := h.client.StopBuild(ctx, job, ref); err != nil {
				h.logger.Errorf("stop request failed: %v", err)
			} else {
				h.logger.Info("build stopped")
			}
		default:
			h.logger.Info("leaving the build running")
		}
	}

	h.logger.Info("exiting")
	h.exit(1)
}

func askConfirm(message string) (bool, error) {
	answer := false
	err := survey.AskOne(&survey.Confirm{Message: message}, &answer)
	return answer, err
}
