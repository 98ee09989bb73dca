package devtools

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// actions is the fixed set of commands the console may run. Arbitrary argv
// from the client is never executed.
var actions = map[string][]string{
	"git-status": {"git", "status", "--short", "--branch"},
	"git-log":    {"git", "log", "--oneline", "-n", "20"},
	"test":       {"go", "test", "./..."},
	"build":      {"go", "build", "./..."},
}

const runTimeout = 10 * time.Minute

// Actions lists the runnable action names.
func Actions() []string {
	out := make([]string, 0, len(actions))
	for name := range actions {
		out = append(out, name)
	}
	return out
}

// Runner starts console jobs and tracks them in a bounded store.
type Runner struct {
	Store *Store
}

func NewRunner(store *Store) *Runner {
	return &Runner{Store: store}
}

// Start launches the named action as a subprocess and returns immediately.
// The job's output accumulates in the store; subprocess failure marks the
// job FAILED but never propagates beyond it.
func (r *Runner) Start(action string) (*Job, error) {
	argv, ok := actions[action]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", action)
	}

	job := newJob(action)
	if err := r.Store.add(job); err != nil {
		return nil, err
	}

	go r.run(job, argv)
	return job, nil
}

func (r *Runner) run(job *Job, argv []string) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		job.finish(-1, err)
		return
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		job.finish(-1, err)
		return
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		job.append(scanner.Text())
	}

	err = cmd.Wait()
	code := cmd.ProcessState.ExitCode()
	job.finish(code, err)
	log.Debug().Str("action", job.Action).Int("exit_code", code).Msg("console job finished")
}
