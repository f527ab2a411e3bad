package main

import (
	"fmt"

	"github.com/aussiebroadwan/tokengate/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokengate/internal/platform/config"
	"github.com/aussiebroadwan/tokengate/pkg/cryptox"
	"github.com/spf13/cobra"
)

// settings are read from the same environment as the services; flags win.
type settings struct {
	Codec config.CodecConfig
	Store config.StoreConfig

	DatabaseFile string `env:"IDENTITY_DATABASE_FILE" envDefault:"identity.db"`
	PepperFile   string `env:"IDENTITY_PEPPER_FILE" envDefault:"pepper"`
	TOTPIssuer   string `env:"TOTP_ISSUER" envDefault:"tokengate"`
}

func newRootCmd() *cobra.Command {
	var (
		s          settings
		dbFlag     string
		pepperFlag string
	)

	root := &cobra.Command{
		Use:   "tokengatectl",
		Short: "Administer tokengate users, sessions and keys",
		Long: `
Usage: tokengatectl <command> [options]

  Operator tooling for the identity service and gateway. Configuration is
  read from the same environment variables the services use
  (IDENTITY_DATABASE_FILE, STORE_DRIVER, JWT_SECRET, ...).

      $ tokengatectl user add alice --role ADMIN
      $ tokengatectl session revoke-all 01J0ALICE
      $ tokengatectl keys generate-eddsa --out signing.pem --pub verify.pem
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ParseEnv(&s); err != nil {
				return err
			}
			if dbFlag != "" {
				s.DatabaseFile = dbFlag
			}
			if pepperFlag != "" {
				s.PepperFile = pepperFlag
			}
			cryptox.SetPepperPath(s.PepperFile)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dbFlag, "db", "", "identity database file (overrides IDENTITY_DATABASE_FILE)")
	root.PersistentFlags().StringVar(&pepperFlag, "pepper", "", "password pepper file (overrides IDENTITY_PEPPER_FILE)")

	root.AddCommand(newUserCmd(&s))
	root.AddCommand(newSessionCmd(&s))
	root.AddCommand(newKeysCmd())
	return root
}

func openUsers(s *settings) (*sqlite.Store, error) {
	db, err := sqlite.NewStore(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", s.DatabaseFile))
	if err != nil {
		return nil, fmt.Errorf("open identity database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return db, nil
}
