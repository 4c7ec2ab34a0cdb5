package assignmentaccess

import (
	"context"

	"cardsync/internal/api"
	"cardsync/internal/assignments"
)

// Access provides assignment operations regardless of API or direct store backing.
type Access interface {
	List(ctx context.Context) ([]api.Assignment, error)
	Describe(ctx context.Context, tagID string) (api.Assignment, bool, error)
	Remove(ctx context.Context, tagID string) (bool, error)
	// Source names the backing used, for operator-facing output.
	Source() string
}

// NewAPIAccess returns an Access backed by the daemon HTTP API.
func NewAPIAccess(client *api.Client) Access {
	return &apiAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct store access.
func NewStoreAccess(store assignments.Store) Access {
	return &storeAccess{store: store}
}

type apiAccess struct {
	client *api.Client
}

func (a *apiAccess) List(ctx context.Context) ([]api.Assignment, error) {
	return a.client.Assignments(ctx)
}

func (a *apiAccess) Describe(ctx context.Context, tagID string) (api.Assignment, bool, error) {
	return a.client.Assignment(ctx, tagID)
}

func (a *apiAccess) Remove(ctx context.Context, tagID string) (bool, error) {
	return a.client.RemoveAssignment(ctx, tagID)
}

func (a *apiAccess) Source() string { return "daemon" }

type storeAccess struct {
	store assignments.Store
}

func (a *storeAccess) List(ctx context.Context) ([]api.Assignment, error) {
	list, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return api.FromAssignments(list), nil
}

func (a *storeAccess) Describe(ctx context.Context, tagID string) (api.Assignment, bool, error) {
	assignment, found, err := a.store.Get(ctx, tagID)
	if err != nil || !found {
		return api.Assignment{}, false, err
	}
	return api.FromAssignment(assignment), true, nil
}

func (a *storeAccess) Remove(ctx context.Context, tagID string) (bool, error) {
	return a.store.Delete(ctx, tagID)
}

func (a *storeAccess) Source() string { return a.store.Backend() }
