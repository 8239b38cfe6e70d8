// seed-curriculum bootstraps a fresh database: runs migrations, inserts the
// six-level curriculum and creates the first admin account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/utils"
)

func defaultCurriculum() []*models.LevelDefinition {
	return []*models.LevelDefinition{
		{ID: 1, Title: "Problem Discovery", Description: "Interview potential customers and document the problem worth solving.", Tier: models.ComplexityTierFoundation},
		{ID: 2, Title: "Prototype", Description: "Build a clickable or physical prototype validating the core assumption.", Tier: models.ComplexityTierFoundation},
		{ID: 3, Title: "First Product", Description: "Ship a usable product to a closed group of early adopters.", Tier: models.ComplexityTierCore},
		{ID: 4, Title: "MVP Launch", Description: "Launch publicly, instrument usage and collect retention data.", Tier: models.ComplexityTierCore},
		{ID: 5, Title: "Growth Experiments", Description: "Run and document repeatable acquisition experiments.", Tier: models.ComplexityTierAdvanced},
		{ID: 6, Title: "Investment Readiness", Description: "Assemble metrics, financial model and data room for fundraising.", Tier: models.ComplexityTierAdvanced},
	}
}

func main() {
	adminEmail := flag.String("admin-email", "", "Create an ADMIN account with this email (skipped when empty)")
	adminName := flag.String("admin-name", "Platform Admin", "Admin display name")
	adminPassword := flag.String("admin-password", "", "Admin password (required with --admin-email)")
	flag.Parse()

	if strings.TrimSpace(*adminEmail) != "" && strings.TrimSpace(*adminPassword) == "" {
		fmt.Fprintln(os.Stderr, "--admin-password is required with --admin-email")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	models.MigrateTable()

	ctx := context.Background()
	if err := models.SeedLevelDefinitions(ctx, defaultCurriculum()); err != nil {
		fmt.Fprintln(os.Stderr, "seeding curriculum failed:", err)
		os.Exit(1)
	}
	// a reseeded database invalidates every cache entry and session
	if err := config.ClearRedis(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flushing redis failed:", err)
		os.Exit(1)
	}
	fmt.Println("curriculum seeded")

	if strings.TrimSpace(*adminEmail) == "" {
		return
	}
	if err := utils.ValidateUnique[models.Account](ctx, "email", strings.ToLower(strings.TrimSpace(*adminEmail)), 0); err != nil {
		fmt.Println("admin account already exists, skipping")
		return
	}
	account, err := models.RegisterAccount(ctx, &models.NewAccount{
		Name:     *adminName,
		Email:    *adminEmail,
		Password: *adminPassword,
		Role:     string(models.RoleAdmin),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "creating admin account failed:", err)
		os.Exit(1)
	}
	fmt.Printf("admin account %d created\n", account.ID)
}
