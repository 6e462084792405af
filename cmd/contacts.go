package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List the company contacts collected during searches",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		config, logger := bootstrap()

		if owner, _ := cmd.Flags().GetString("owner"); owner != "" {
			config.Owner = owner
		}
		if !config.Contacts.Enabled {
			logger.Fatal("contacts are disabled", zap.String("hint", "set contacts.enabled in the config"))
		}

		svc, err := newServices(ctx, config, logger)
		if err != nil {
			logger.Fatal("building services", zap.Error(err))
		}
		defer svc.Close()

		found, err := svc.contacts.List(ctx, config.Owner)
		if err != nil {
			logger.Fatal("listing contacts", zap.Error(err))
		}

		logger.Info("stored contacts", zap.Int("count", len(found)))
		for _, c := range found {
			logger.Info(c.Company,
				zap.String("website", c.Website),
				zap.String("emails", strings.Join(c.Emails, ", ")),
				zap.String("phone", c.Phone),
				zap.String("source", c.Source),
				zap.Time("updated_at", c.UpdatedAt),
			)
		}
	},
}

func init() {
	rootCmd.AddCommand(contactsCmd)

	contactsCmd.Flags().String("owner", "", "list the contacts of another owner")
}
