// Package wait tracks the background goroutines a mailbox owns.
package wait

import (
	"context"
	"sync"

	"github.com/ProtonMail/uidlist/async"
	"github.com/ProtonMail/uidlist/logging"
)

type Group struct {
	wg           sync.WaitGroup
	PanicHandler async.PanicHandler
}

// Go runs f in a goroutine labelled for profiling with labels.
func (wg *Group) Go(ctx context.Context, labels logging.Labels, f func(context.Context)) {
	wg.wg.Add(1)

	logging.GoAnnotate(ctx, func(ctx context.Context) {
		defer wg.wg.Done()
		defer async.HandlePanic(wg.PanicHandler)

		f(ctx)
	}, labels)
}

func (wg *Group) Wait() {
	wg.wg.Wait()
}
