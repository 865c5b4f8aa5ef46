package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/domain"
	"github.com/tbourn/go-lead-intake/internal/repo"
)

var (
	seedReset    bool
	seedPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo agents and leads",
	Long: `Seed creates two agents (john@example.com and jane@example.com) and
five leads, two of which are already claimed. Agents that already exist are
reused. Leads are only inserted into an empty pool unless --reset is given,
which first deletes every agent, lead and idempotency record.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "delete all existing data before seeding")
	seedCmd.Flags().StringVar(&seedPassword, "password", "password123", "password for the demo agents")
}

type seedAgent struct {
	name, email string
}

type seedLead struct {
	payload   domain.LeadPayload
	claimedBy string // agent email, empty for unclaimed
}

var demoAgents = []seedAgent{
	{"John Doe", "john@example.com"},
	{"Jane Smith", "jane@example.com"},
}

func str(s string) *string { return &s }

var demoLeads = []seedLead{
	{domain.LeadPayload{Name: "Alice Johnson", Email: "alice@example.com", Phone: str("+1234567890"), CourseInterest: str("Web Development"), Message: str("Interested in learning full-stack development")}, ""},
	{domain.LeadPayload{Name: "Bob Williams", Email: "bob@example.com", Phone: str("+1234567891"), CourseInterest: str("Data Science"), Message: str("Want to learn Python and machine learning")}, "john@example.com"},
	{domain.LeadPayload{Name: "Charlie Brown", Email: "charlie@example.com", Phone: str("+1234567892"), CourseInterest: str("Mobile Development"), Message: str("Looking for React Native course")}, ""},
	{domain.LeadPayload{Name: "Diana Prince", Email: "diana@example.com", Phone: str("+1234567893"), CourseInterest: str("UI/UX Design"), Message: str("Interested in design courses")}, "jane@example.com"},
	{domain.LeadPayload{Name: "Edward Norton", Email: "edward@example.com", Phone: str("+1234567894"), CourseInterest: str("DevOps"), Message: str("Want to learn Docker and Kubernetes")}, ""},
}

// seedReport summarizes what a seed run changed.
type seedReport struct {
	AgentsCreated int
	LeadsCreated  int
	LeadsClaimed  int
}

func runSeed(cmd *cobra.Command, _ []string) error {
	db, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	rep, err := seed(cmd.Context(), db, seedPassword, seedReset, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	log.Info().
		Int("agents_created", rep.AgentsCreated).
		Int("leads_created", rep.LeadsCreated).
		Int("leads_claimed", rep.LeadsClaimed).
		Msg("seed complete")
	cmd.Printf("seeded %d agents, %d leads (%d claimed)\n", rep.AgentsCreated, rep.LeadsCreated, rep.LeadsClaimed)
	for _, a := range demoAgents {
		cmd.Printf("  %s / %s\n", a.email, seedPassword)
	}
	return nil
}

func seed(ctx context.Context, db *gorm.DB, password string, reset bool, cost int) (seedReport, error) {
	var rep seedReport

	if reset {
		if err := resetData(ctx, db); err != nil {
			return rep, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return rep, fmt.Errorf("hash password: %w", err)
	}

	ids := make(map[string]uint, len(demoAgents))
	for _, a := range demoAgents {
		created, err := repo.CreateAgent(ctx, db, a.name, a.email, string(hash))
		switch {
		case err == nil:
			rep.AgentsCreated++
			ids[a.email] = created.ID
		case errors.Is(err, repo.ErrDuplicate):
			existing, err := repo.GetAgentByEmail(ctx, db, a.email)
			if err != nil {
				return rep, fmt.Errorf("load agent %s: %w", a.email, err)
			}
			ids[a.email] = existing.ID
		default:
			return rep, fmt.Errorf("create agent %s: %w", a.email, err)
		}
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&domain.Lead{}).Count(&existing).Error; err != nil {
		return rep, fmt.Errorf("count leads: %w", err)
	}
	if existing > 0 {
		log.Info().Int64("leads", existing).Msg("leads present; skipping lead seed")
		return rep, nil
	}

	for _, l := range demoLeads {
		lead, err := repo.InsertLead(ctx, db, l.payload)
		if err != nil {
			return rep, fmt.Errorf("insert lead %s: %w", l.payload.Name, err)
		}
		rep.LeadsCreated++
		if l.claimedBy == "" {
			continue
		}
		if _, err := repo.ClaimLead(ctx, db, lead.ID, ids[l.claimedBy], time.Now().UTC()); err != nil {
			return rep, fmt.Errorf("claim lead %s: %w", l.payload.Name, err)
		}
		rep.LeadsClaimed++
	}
	return rep, nil
}

// resetData empties the tables children first so foreign keys hold.
func resetData(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range []any{&domain.Idempotency{}, &domain.Lead{}, &domain.Agent{}} {
			if err := tx.Delete(m).Error; err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		return nil
	})
}
