package cli

import (
	"context"
	"fmt"

	"github.com/nexuscloud/drivesync/internal/client/models"
	"github.com/nexuscloud/drivesync/internal/client/store"
	"github.com/nexuscloud/drivesync/internal/common"
)

// currentScope maps the navigation position onto a store scope.
func (a *App) currentScope() store.Scope {
	if a.cwd() == "" {
		return store.ScopeRoot
	}
	return store.Scope(a.cwd())
}

func scopeFromArg(arg string) (store.Scope, bool) {
	switch arg {
	case "trash":
		return store.ScopeTrash, true
	case "shared":
		return store.ScopeShared, true
	case "starred":
		return store.ScopeStarred, true
	default:
		return "", false
	}
}

// List shows the current folder, or a named scope: ls [trash|shared|starred].
func (a *App) List(ctx context.Context, args []string) error {
	scope := a.currentScope()
	if len(args) > 0 {
		s, ok := scopeFromArg(args[0])
		if !ok {
			return fmt.Errorf("%w: unknown scope %q", common.ErrValidation, args[0])
		}
		scope = s
	}

	nodes := a.store.View(scope)
	if len(nodes) == 0 {
		fmt.Println("(empty)")
		return nil
	}
	for _, n := range nodes {
		fmt.Println(formatNode(n))
	}
	return nil
}

// ChangeDir moves into a child folder by name or id; ".." goes up and "/"
// returns to the root.
func (a *App) ChangeDir(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: usage: cd <folder|..|/>", common.ErrValidation)
	}

	switch args[0] {
	case "/":
		a.path = nil
		return nil
	case "..":
		if len(a.path) > 0 {
			a.path = a.path[:len(a.path)-1]
		}
		return nil
	}

	n, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	if !n.IsFolder() {
		return fmt.Errorf("%w: %q is not a folder", common.ErrValidation, n.Name)
	}

	a.path = append(a.path, crumb{id: n.ID, name: n.Name})
	if err := a.Refresh(ctx); err != nil {
		fmt.Println("Working from cached state:", err.Error())
	}
	return nil
}

// Refresh pulls the current scope from the server into the view.
func (a *App) Refresh(ctx context.Context) error {
	return a.store.Refresh(ctx, a.currentScope())
}

// resolve finds a record in the current folder by name, falling back to a
// direct id lookup so commands also work on records outside the view.
func (a *App) resolve(ref string) (*models.Node, error) {
	for _, n := range a.store.View(a.currentScope()) {
		if n.Name == ref || models.SameID(n.ID, ref) {
			return n, nil
		}
	}
	return a.store.Get(ref)
}

func formatNode(n *models.Node) string {
	kind := "-"
	if n.IsFolder() {
		kind = "d"
	}

	marks := ""
	if n.Starred {
		marks += " *"
	}
	if n.Shared {
		marks += " (shared)"
	}

	state := ""
	switch n.SyncState {
	case models.StatePendingUpload, models.StateUploading:
		state = " [" + string(n.SyncState) + "]"
	case models.StateError:
		state = " [error: " + n.SyncError + "]"
	}

	size := ""
	if !n.IsFolder() {
		size = fmt.Sprintf(" %d bytes", n.Size)
	}

	return fmt.Sprintf("%s %-36s %s%s%s%s", kind, n.ID, n.Name, size, marks, state)
}
