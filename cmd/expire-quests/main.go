// Command expire-quests marks every active quest whose end date has passed
// as expired. It is intended to be invoked by an external cron job, not as
// an in-process goroutine; overlapping invocations are safe.
//
// Exit codes: 0 = success (including runs stopped at the duration budget),
// 1 = fatal error.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/heartmarshall/questline-reconciler/internal/app"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.RunJob(ctx, domain.JobKindQuest)
	stop()
	os.Exit(code)
}
