package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	pkgerrors "github.com/waypointcpa/taskpool-backend/internal/pkg/errors"
	"github.com/waypointcpa/taskpool-backend/internal/repos"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type ClientService interface {
	Create(ctx context.Context, client *types.Client) (*types.Client, error)
	List(ctx context.Context, limit, offset int) ([]*types.Client, error)
	// VerifyMatch lets a human overwrite a computed match: confidence 1.0,
	// match_type manual. Tasks already created from the matched item pick up
	// the verified client.
	VerifyMatch(ctx context.Context, matchID, clientID uuid.UUID) (*types.ClientMatch, error)
}

type clientService struct {
	db         *gorm.DB
	log        *logger.Logger
	clientRepo repos.ClientRepo
	matchRepo  repos.ClientMatchRepo
	itemRepo   repos.InboundItemRepo
	taskRepo   repos.TaskRepo
}

func NewClientService(db *gorm.DB, log *logger.Logger, clientRepo repos.ClientRepo, matchRepo repos.ClientMatchRepo, itemRepo repos.InboundItemRepo, taskRepo repos.TaskRepo) ClientService {
	serviceLog := log.With("service", "ClientService")
	return &clientService{
		db:         db,
		log:        serviceLog,
		clientRepo: clientRepo,
		matchRepo:  matchRepo,
		itemRepo:   itemRepo,
		taskRepo:   taskRepo,
	}
}

func (cs *clientService) Create(ctx context.Context, client *types.Client) (*types.Client, error) {
	if client == nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	if client.FullName() == "" && client.CompanyName == "" {
		return nil, fmt.Errorf("%w: client needs a name or company", pkgerrors.ErrInvalidArgument)
	}
	created, err := cs.clientRepo.Create(ctx, nil, []*types.Client{client})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return created[0], nil
}

func (cs *clientService) List(ctx context.Context, limit, offset int) ([]*types.Client, error) {
	return cs.clientRepo.List(ctx, nil, limit, offset)
}

func (cs *clientService) VerifyMatch(ctx context.Context, matchID, clientID uuid.UUID) (*types.ClientMatch, error) {
	verifier := actor(ctx)
	if verifier == nil {
		return nil, pkgerrors.ErrUnauthorized
	}
	clients, err := cs.clientRepo.GetByIDs(ctx, nil, []uuid.UUID{clientID})
	if err != nil {
		return nil, fmt.Errorf("verify client lookup: %w", err)
	}
	if len(clients) == 0 {
		return nil, pkgerrors.ErrNotFound
	}

	match, err := cs.matchRepo.Verify(ctx, nil, matchID, clientID, *verifier)
	if err != nil {
		return nil, err
	}

	// Propagate the verified client onto the item's tasks.
	item, err := cs.itemRepo.GetByID(ctx, nil, match.InboundItemID)
	if err != nil {
		cs.log.Warn("Verified match has no inbound item", "match_id", matchID, "error", err)
		return match, nil
	}
	tasks, err := cs.taskRepo.GetBySource(ctx, nil, item.SourceType, item.SourceID)
	if err != nil {
		cs.log.Warn("Task lookup for verified match failed", "match_id", matchID, "error", err)
		return match, nil
	}
	for _, task := range tasks {
		task.ClientID = &clientID
		if _, err := cs.taskRepo.Update(ctx, nil, task); err != nil {
			cs.log.Warn("Task client backfill failed", "task_id", task.ID, "error", err)
		}
	}
	return match, nil
}
