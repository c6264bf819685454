package deployer

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watch deploys everything in the folder, then applies filesystem events
// until the context is cancelled.
func (d *Deployer) Watch(ctx context.Context, folder string) error {
	if err := d.AddAllFromFolder(ctx, folder); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	if err := watcher.Add(folder); err != nil {
		_ = watcher.Close()

		return fmt.Errorf("failed to watch folder %s: %w", folder, err)
	}

	d.logger.Info("Watching workflows folder", "folder", folder)

	go func() {
		defer func() { _ = watcher.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				d.HandleFSEvent(ctx, event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				d.logger.Error("Filesystem watcher error", "error", err)
			}
		}
	}()

	return nil
}

// HandleFSEvent applies one filesystem notification. Errors are contained to
// the owning source path.
func (d *Deployer) HandleFSEvent(ctx context.Context, event fsnotify.Event) {
	if !isWorkflowFile(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
		if err := d.Add(ctx, event.Name); err != nil {
			d.logger.Error("Failed to apply workflow file", "path", event.Name, "error", err)
		}
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if err := d.Delete(ctx, event.Name); err != nil {
			d.logger.Error("Failed to remove workflow file", "path", event.Name, "error", err)
		}
	}
}
