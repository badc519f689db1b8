package cli

import (
	"context"
	"fmt"

	"github.com/nexuscloud/drivesync/internal/client/models"
	"github.com/nexuscloud/drivesync/internal/client/upload"
	"github.com/nexuscloud/drivesync/internal/common"
)

// Put enqueues a local file for encrypted upload into the current folder:
// put <path>. The record appears in the listing immediately; progress is
// printed asynchronously as the workers report it.
func (a *App) Put(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: put <path>", common.ErrValidation)
	}

	src, err := upload.NewFileSource(args[0])
	if err != nil {
		return err
	}

	taskID, err := a.queue.Enqueue(ctx, src, a.cwd())
	if err != nil {
		return err
	}
	fmt.Printf("Queued %s (task %s)\n", src.Name(), taskID)
	return nil
}

// Retry re-runs a failed upload: retry <task>.
func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: retry <task>", common.ErrValidation)
	}
	return a.queue.Retry(ctx, args[0])
}

func printEvent(e models.ProgressEvent) {
	switch e.Status {
	case models.TaskCompleted:
		fmt.Printf("Upload %s: done\n", e.TaskID)
	case models.TaskError:
		fmt.Printf("Upload %s failed: %s (use 'retry %s')\n", e.TaskID, e.Err, e.TaskID)
	case models.TaskUploading:
		fmt.Printf("Upload %s: %d%%\n", e.TaskID, e.Progress)
	}
}
