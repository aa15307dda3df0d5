package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

func createTask(t *testing.T, repo TaskRepo, title string) *types.Task {
	t.Helper()
	task, err := repo.Create(context.Background(), nil, &types.Task{
		Title:    title,
		Status:   types.TaskStatusPending,
		Priority: types.TaskPriorityMedium,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestTaskRepoClaim_FirstClaimantWins(t *testing.T) {
	repo := NewTaskRepo(testDB(t), testLogger(t))
	task := createTask(t, repo, "review return")
	alice := uuid.New()
	bob := uuid.New()

	claimed, err := repo.Claim(context.Background(), nil, task.ID, alice)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if claimed.ClaimedBy == nil || *claimed.ClaimedBy != alice {
		t.Fatalf("expected claim by alice, got %#v", claimed.ClaimedBy)
	}
	if claimed.ClaimedAt == nil {
		t.Fatalf("expected claimed_at set")
	}

	if _, err := repo.Claim(context.Background(), nil, task.ID, bob); !errors.Is(err, pkgerrors.ErrAlreadyClaimed) {
		t.Fatalf("second claim should fail with ErrAlreadyClaimed, got %v", err)
	}
	got, err := repo.GetByID(context.Background(), nil, task.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ClaimedBy == nil || *got.ClaimedBy != alice {
		t.Fatalf("claim must stay with the winner, got %#v", got.ClaimedBy)
	}
}

func TestTaskRepoClaim_AssignedTaskIsNotInThePool(t *testing.T) {
	repo := NewTaskRepo(testDB(t), testLogger(t))
	task := createTask(t, repo, "amend filing")
	assignee := uuid.New()

	if _, err := repo.Assign(context.Background(), nil, task.ID, assignee); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := repo.Claim(context.Background(), nil, task.ID, uuid.New()); !errors.Is(err, pkgerrors.ErrAlreadyClaimed) {
		t.Fatalf("claiming an assigned task should fail with ErrAlreadyClaimed, got %v", err)
	}
	got, err := repo.GetByID(context.Background(), nil, task.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.AssigneeID == nil || *got.AssigneeID != assignee {
		t.Fatalf("assignment must survive the claim attempt, got %#v", got.AssigneeID)
	}
	if got.ClaimedBy != nil {
		t.Fatalf("expected no claimant, got %#v", got.ClaimedBy)
	}
}

func TestTaskRepoClaim_MissingTask(t *testing.T) {
	repo := NewTaskRepo(testDB(t), testLogger(t))
	if _, err := repo.Claim(context.Background(), nil, uuid.New(), uuid.New()); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskRepoRelease_OnlyClaimantMayRelease(t *testing.T) {
	repo := NewTaskRepo(testDB(t), testLogger(t))
	task := createTask(t, repo, "send organizer")
	alice := uuid.New()
	bob := uuid.New()

	if _, err := repo.Claim(context.Background(), nil, task.ID, alice); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := repo.Release(context.Background(), nil, task.ID, bob); !errors.Is(err, pkgerrors.ErrNotClaimant) {
		t.Fatalf("release by non-claimant should fail with ErrNotClaimant, got %v", err)
	}
	released, err := repo.Release(context.Background(), nil, task.ID, alice)
	if err != nil {
		t.Fatalf("release by claimant: %v", err)
	}
	if released.ClaimedBy != nil || released.ClaimedAt != nil {
		t.Fatalf("release must clear the claim, got %#v", released)
	}

	// Back in the pool: anyone can claim again.
	if _, err := repo.Claim(context.Background(), nil, task.ID, bob); err != nil {
		t.Fatalf("re-claim after release: %v", err)
	}
}

func TestTaskRepoAssign_ClearsClaim(t *testing.T) {
	repo := NewTaskRepo(testDB(t), testLogger(t))
	task := createTask(t, repo, "file extension")
	claimant := uuid.New()
	assignee := uuid.New()

	if _, err := repo.Claim(context.Background(), nil, task.ID, claimant); err != nil {
		t.Fatalf("claim: %v", err)
	}
	assigned, err := repo.Assign(context.Background(), nil, task.ID, assignee)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssigneeID == nil || *assigned.AssigneeID != assignee {
		t.Fatalf("expected assignee set, got %#v", assigned.AssigneeID)
	}
	if assigned.ClaimedBy != nil {
		t.Fatalf("assignment must clear the claim")
	}
}

func TestTaskRepoList_UnclaimedFiltersPool(t *testing.T) {
	repo := NewTaskRepo(testDB(t), testLogger(t))
	pooled := createTask(t, repo, "pooled")
	claimed := createTask(t, repo, "claimed")
	if _, err := repo.Claim(context.Background(), nil, claimed.ID, uuid.New()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	got, err := repo.List(context.Background(), nil, TaskListFilter{Unclaimed: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != pooled.ID {
		t.Fatalf("expected only the pooled task, got %d results", len(got))
	}
}

func TestTaskRepoUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	repo := NewTaskRepo(testDB(t), testLogger(t))
	task := createTask(t, repo, "status check")

	if err := repo.UpdateStatus(context.Background(), nil, task.ID, "archived"); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := repo.UpdateStatus(context.Background(), nil, task.ID, types.TaskStatusInProgress); err != nil {
		t.Fatalf("valid status: %v", err)
	}
	got, err := repo.GetByID(context.Background(), nil, task.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != types.TaskStatusInProgress {
		t.Fatalf("status not persisted, got %q", got.Status)
	}
}
