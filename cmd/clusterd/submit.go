package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
)

// submitAndWait runs e's scheduler just long enough to drive one
// action to a terminal state, since the CLI (unlike `serve`) has no
// already-running dispatch loop to hand the action to. It polls the
// Action Store rather than subscribing to pkg/event, matching the
// teacher's own synchronous command style (e.g. `warren service
// create` waits for the task to reach RUNNING before returning).
func submitAndWait(ctx context.Context, e *env, submit func(context.Context) (*domain.Action, error)) (*domain.Action, error) {
	a, err := submit(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = e.scheduler.Run(runCtx) }()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			got, err := e.actions.Get(a.ID)
			if err != nil {
				return nil, err
			}
			if got.Status.IsTerminal() {
				return got, nil
			}
		}
	}
}

func printActionResult(a *domain.Action) {
	fmt.Printf("action %s  %-24s status=%-10s result=%-8s", a.ID, a.ActionName, a.Status, a.ResultCode)
	if a.ResultReason != "" {
		fmt.Printf(" reason=%q", a.ResultReason)
	}
	fmt.Println()
}
