package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nexuscloud/drivesync/internal/client/models"
	"github.com/nexuscloud/drivesync/internal/common"
)

// MakeDir creates a folder in the current directory: mkdir <name>.
func (a *App) MakeDir(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: mkdir <name>", common.ErrValidation)
	}

	n, err := a.store.ApplyOptimistic(ctx, models.Mutation{
		Op:       models.OpCreateFolder,
		Name:     strings.Join(args, " "),
		ParentID: a.cwd(),
	})
	if err != nil {
		return err
	}
	fmt.Println("Created folder", n.Name)
	return nil
}

// Rename changes a record's name: rename <item> <new name>.
func (a *App) Rename(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: rename <item> <new name>", common.ErrValidation)
	}
	n, err := a.resolve(args[0])
	if err != nil {
		return err
	}

	_, err = a.store.ApplyOptimistic(ctx, models.Mutation{
		Op: models.OpRename, ID: n.ID, NewName: strings.Join(args[1:], " "),
	})
	return err
}

// Move relocates a record: mv <item> <folder|/>.
func (a *App) Move(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: mv <item> <folder|/>", common.ErrValidation)
	}
	n, err := a.resolve(args[0])
	if err != nil {
		return err
	}

	dest := models.RootID
	if args[1] != "/" {
		folder, err := a.resolve(args[1])
		if err != nil {
			return err
		}
		dest = folder.ID
	}

	_, err = a.store.ApplyOptimistic(ctx, models.Mutation{
		Op: models.OpMove, ID: n.ID, DestFolderID: dest,
	})
	return err
}

// Trash soft-deletes a record: trash <item>.
func (a *App) Trash(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: trash <item>", common.ErrValidation)
	}
	n, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	_, err = a.store.ApplyOptimistic(ctx, models.Mutation{Op: models.OpTrash, ID: n.ID})
	return err
}

// Restore brings a record back from the trash: restore <id>.
func (a *App) Restore(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: restore <id>", common.ErrValidation)
	}
	n, err := a.store.Get(args[0])
	if err != nil {
		return err
	}
	_, err = a.store.ApplyOptimistic(ctx, models.Mutation{Op: models.OpRestore, ID: n.ID})
	return err
}

// Remove permanently deletes a record: rm <item>. Asks for confirmation
// since there is no way back.
func (a *App) Remove(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: rm <item>", common.ErrValidation)
	}
	n, err := a.resolve(args[0])
	if err != nil {
		return err
	}

	answer, err := getSimpleText(a.reader,
		fmt.Sprintf("Permanently delete %q? (y/N)", n.Name), os.Stdout)
	if err != nil {
		return err
	}
	if strings.ToLower(answer) != "y" {
		fmt.Println("Aborted.")
		return nil
	}

	_, err = a.store.ApplyOptimistic(ctx, models.Mutation{Op: models.OpDelete, ID: n.ID})
	return err
}

// Star toggles the starred flag; invoked as "star <item>" or "unstar <item>".
// args[0] carries the command name.
func (a *App) Star(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: %s <item>", common.ErrValidation, args[0])
	}
	n, err := a.resolve(args[1])
	if err != nil {
		return err
	}

	_, err = a.store.ApplyOptimistic(ctx, models.Mutation{
		Op: models.OpStar, ID: n.ID, Starred: args[0] == "star",
	})
	return err
}

// Share grants a user access to a record: share <item> <email>.
func (a *App) Share(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: share <item> <email>", common.ErrValidation)
	}
	n, err := a.resolve(args[0])
	if err != nil {
		return err
	}

	if err := a.api.Share(ctx, n.ID, args[1]); err != nil {
		return err
	}
	fmt.Printf("Shared %q with %s\n", n.Name, args[1])
	return nil
}
