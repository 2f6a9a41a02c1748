package main

import (
	"context"
	"flag"
	"log"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/internal/auth"
	"nodebase/backend/internal/config"
	"nodebase/backend/internal/logging"
	"nodebase/backend/internal/repository"
	"nodebase/backend/internal/services"
	"nodebase/backend/internal/slug"
	"nodebase/backend/pkg/models"
)

type seedWorkflow struct {
	Name  string
	Graph services.ReplaceGraphInput
}

func position(x, y float64) *models.Position { return &models.Position{X: x, Y: y} }

var seeds = []seedWorkflow{
	{
		Name: "Fetch status page",
		Graph: services.ReplaceGraphInput{
			Nodes: []services.NodeInput{
				{ID: "trigger", Type: models.NodeTypeManualTrigger, Position: position(0, 0)},
				{ID: "fetch", Type: models.NodeTypeHTTPRequest, Position: position(300, 0), Data: models.NodeData{
					"variableName": "status",
					"endpoint":     "https://www.githubstatus.com/api/v2/status.json",
					"method":       "GET",
				}},
			},
			Edges: []services.EdgeInput{{Source: "trigger", Target: "fetch"}},
		},
	},
	{
		Name: "Post webhook",
		Graph: services.ReplaceGraphInput{
			Nodes: []services.NodeInput{
				{ID: "trigger", Type: models.NodeTypeManualTrigger, Position: position(0, 0)},
				{ID: "post", Type: models.NodeTypeHTTPRequest, Position: position(300, 0), Data: models.NodeData{
					"variableName": "webhook",
					"endpoint":     "https://example.com/hooks/nodebase",
					"method":       "POST",
					"body":         `{"text":"hello from nodebase"}`,
				}},
			},
			Edges: []services.EdgeInput{{Source: "trigger", Target: "post"}},
		},
	},
	{
		Name: "Empty draft",
	},
}

func main() {
	envFile := flag.String("env", "", "Path to .env file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Level, "console")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	pool, err := repository.OpenPool(ctx, repository.PoolConfig{DSN: cfg.DSN()})
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool, logger)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	// 1. Ensure the dev tenant exists and is premium so it may create workflows
	tenant, err := store.GetTenantBySubject(ctx, auth.DevSubject)
	if apperror.KindOf(err) == apperror.KindNotFound {
		logger.Info("Creating dev tenant", "subject", auth.DevSubject)
		tenant = &models.Tenant{Subject: auth.DevSubject, Email: auth.DevSubject, Tier: models.TierPremium}
		err = store.CreateTenant(ctx, tenant)
	}
	if err != nil {
		log.Fatalf("Failed to resolve dev tenant: %v", err)
	}
	if tenant.Tier != models.TierPremium {
		if err := store.UpdateTenantTier(ctx, tenant.ID, models.TierPremium); err != nil {
			log.Fatalf("Failed to upgrade dev tenant: %v", err)
		}
		tenant.Tier = models.TierPremium
	}
	logger.Info("Using dev tenant", "id", tenant.ID)

	caller := auth.Identity{CallerID: tenant.ID, Email: tenant.Email, Tier: tenant.Tier, Authenticated: true}
	svc := services.NewWorkflowService(store, slug.NewPetname(), cfg.Pagination, nil, logger)

	// 2. Skip seeds that already exist by name
	for _, seed := range seeds {
		existing, err := svc.GetMany(ctx, caller, services.ListQuery{Search: seed.Name, PageSize: cfg.Pagination.MaxPageSize})
		if err != nil {
			log.Fatalf("Failed to list existing workflows: %v", err)
		}
		if containsName(existing.Items, seed.Name) {
			logger.Info("Skipping existing workflow", "name", seed.Name)
			continue
		}

		// 3. Create, rename and draw the graph through the same path the API uses
		wf, err := svc.Create(ctx, caller)
		if err != nil {
			log.Fatalf("Failed to create workflow %s: %v", seed.Name, err)
		}
		if _, err := svc.Rename(ctx, caller, wf.ID, seed.Name); err != nil {
			log.Fatalf("Failed to rename workflow %s: %v", wf.ID, err)
		}
		if len(seed.Graph.Nodes) > 0 {
			if _, err := svc.ReplaceGraph(ctx, caller, wf.ID, seed.Graph); err != nil {
				log.Fatalf("Failed to draw workflow %s: %v", seed.Name, err)
			}
		}
		logger.Info("Seeded workflow", "name", seed.Name, "id", wf.ID)
	}
	logger.Info("Seeding complete!")
}

func containsName(items []*models.Workflow, name string) bool {
	for _, w := range items {
		if w.Name == name {
			return true
		}
	}
	return false
}
