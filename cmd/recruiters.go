package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/recruiters"
)

var recruitersCmd = &cobra.Command{
	Use:   "recruiters <company>",
	Short: "Look for the people who hire at a company",
	Args:  cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ctx := context.Background()
		config, logger := bootstrap()

		svc, err := newServices(ctx, config, logger)
		if err != nil {
			logger.Fatal("building services", zap.Error(err))
		}
		defer svc.Close()

		company := strings.Join(args, " ")
		reportRecruiters(logger, company, svc.finder.Find(ctx, company))
	},
}

func init() {
	rootCmd.AddCommand(recruitersCmd)
}

func reportRecruiters(logger *zap.Logger, company string, people []recruiters.Person) {
	if len(people) == 0 {
		logger.Info("no recruiters found", zap.String("company", company))
		return
	}
	for _, p := range people {
		logger.Info(p.Name,
			zap.String("company", company),
			zap.String("role", p.Role),
			zap.String("linkedin", p.LinkedInURL),
		)
	}
}
