package app

import (
	"fmt"
	"os"

	"github.com/enrollhq/course-portal/api"
	"github.com/enrollhq/course-portal/config"
	"github.com/enrollhq/course-portal/database"
	"github.com/enrollhq/course-portal/router"
	"github.com/enrollhq/course-portal/services/cron"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Seed the admin account and starter catalog when requested
	if os.Getenv("SEED_ON_START") == "true" {
		seeder := database.NewSeeder(store.DB())
		if err := seeder.SeedAll(); err != nil {
			print("Warning: seeding failed: ", err.Error(), "\n")
		}
	}

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes (also builds the service graph)
	deps, err := router.SetupRoutes(app, store, getEnv)
	if err != nil {
		return err
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(store.DB(), deps.Courses, deps.Feed, deps.Blacklist, getEnv.CHANGE_EVENT_RETENTION_DAYS)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
		}
	}

	// Defer Closing DB, Redis, and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		if deps.Cache != nil {
			deps.Cache.Close()
		}
		store.Close()
	}()

	// Get the PORT & Start the Server
	return server.Run()
}
