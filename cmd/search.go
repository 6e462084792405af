package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/filtering"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/logger"
	"github.com/spigell/job-harvester/internal/pipeline"
)

const (
	PromptShow             = "Show listings"
	PromptDetails          = "Show a listing"
	PromptReportBySource   = "Report by source"
	PromptReportByCompany  = "Report by company"
	PromptFilters          = "Show filters"
	PromptRecruiters       = "Find recruiters for a company"
	PromptMarkSeen         = "Mark all listings as seen"
	PromptListingsToFile   = "Dump listings to file"
	PromptExit             = "Exit"
	PromptBack             = "back"
	maxDescriptionInDetail = 600
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShow, PromptDetails, PromptReportBySource, PromptReportByCompany, PromptFilters,
		PromptRecruiters, PromptMarkSeen, PromptListingsToFile, PromptExit},
}

var searchCmd = &cobra.Command{
	Use:   "search [request]",
	Short: "Search every configured job board and rank the offers",
	Example: `  job-harvester search "stage développeur python à Montréal" --resume cv.txt
  job-harvester search "junior data analyst remote" -l 20 -y`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		search(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringP("resume", "r", "", "a text file with the résumé to match against")
	searchCmd.Flags().IntP("limit", "l", 0, "maximum number of listings (default from config, then 10)")
	searchCmd.Flags().BoolP("include-seen", "s", false, "do not exclude listings already seen")
	searchCmd.Flags().BoolP("yes", "y", false, "print the listings and exit without the interactive menu")
	searchCmd.Flags().StringP("exclude-file", "e", "", "a listings dump whose entries are excluded")
}

// search is the main command for the cli.
func search(cmd *cobra.Command, request string) {
	ctx := context.Background()
	config, logger := bootstrap()

	resume, err := readResumeFlag(cmd)
	if err != nil {
		logger.Fatal("reading the résumé", zap.Error(err))
	}
	if strings.TrimSpace(request) == "" && resume == "" {
		logger.Fatal("nothing to search for", zap.String("hint", "pass a request or --resume"))
	}

	if includeSeen, _ := cmd.Flags().GetBool("include-seen"); includeSeen {
		config.Search.IncludeSeen = true
	}
	if excludeFile, _ := cmd.Flags().GetString("exclude-file"); excludeFile != "" {
		config.Search.Filtering.ExcludeFile = excludeFile
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = config.Search.Limit
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config.Search, "", "  ")
	logger.Debug(fmt.Sprintf("starting with search config: \n %s", pretty))

	svc, err := newServices(ctx, config, logger)
	if err != nil {
		logger.Fatal("building services", zap.Error(err))
	}
	defer svc.Close()

	result, err := svc.pipeline.Run(ctx, request, resume, limit)
	if err != nil {
		logger.Error("search failed", zap.Error(err))
		return
	}

	listings := &listing.Listings{Items: result.Listings}
	logger.Info("search finished",
		zap.Strings("keywords", result.Criteria.Keywords),
		zap.String("location", result.Criteria.Location),
		zap.String("job_type", string(result.Criteria.JobType)),
		zap.Int("count", listings.Len()),
		zap.Duration("duration", result.Duration),
	)

	if listings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no listings found"))
		return
	}

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		showListings(logger, listings)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, svc, result, listings); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Error("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, svc *services, result pipeline.Result, listings *listing.Listings) error {
	logger := svc.logger

	switch action {
	case PromptShow:
		showListings(logger, listings)
		return nil
	case PromptDetails:
		return showDetails(logger, listings)
	case PromptReportBySource:
		pretty, _ := json.MarshalIndent(listings.ReportBySource(), "", "  ")
		logger.Info(string(pretty), zap.Int("listings count", listings.Len()))
		return nil
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(listings.ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("listings count", listings.Len()))
		return nil
	case PromptFilters:
		showFilters(logger, result.Filters)
		return nil
	case PromptRecruiters:
		return chooseRecruiters(ctx, svc, listings)
	case PromptMarkSeen:
		if err := svc.seen.Mark(ctx, listings.IdentityKeys()); err != nil {
			return fmt.Errorf("marking listings as seen: %w", err)
		}
		logger.Info("listings marked as seen", zap.Int("count", listings.Len()))
		return nil
	case PromptListingsToFile:
		filename, err := listings.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showListings(log *zap.Logger, listings *listing.Listings) {
	for i, l := range listings.Items {
		log.Info(fmt.Sprintf("%d. %s", i+1, l.Title),
			zap.String("company", l.Company),
			zap.String("location", l.Location),
			zap.Int("score", l.MatchScore),
			zap.String("source", l.Source),
			zap.String(logger.FieldURL, l.URL),
		)
	}
}

func showDetails(log *zap.Logger, listings *listing.Listings) error {
	items := make([]string, 0, listings.Len()+1)
	for _, l := range listings.Items {
		items = append(items, fmt.Sprintf("%s %s / %s / %d", l.ID, l.Title, l.Company, l.MatchScore))
	}

	listingPrompt := promptui.Select{
		Label: "Choose a listing and press ENTER",
		Items: append(items, PromptBack),
		Size:  15,
	}
	_, selected, err := listingPrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	l := listings.FindByID(strings.Split(selected, " ")[0])
	if l == nil {
		return fmt.Errorf("there is no such listing %s", selected)
	}

	fields := append(logger.ListingFields(l),
		zap.Int("score", l.MatchScore),
		zap.Strings("required_skills", l.RequiredSkills.Sorted()),
		zap.Strings("matched_skills", l.MatchedSkills.Sorted()),
		zap.Int("required_experience", l.RequiredExperience),
		zap.Bool("enriched", l.Enriched),
		zap.String("salary", l.Salary),
		zap.String("apply_email", l.ApplyEmail),
		zap.String("judge_reason", l.JudgeReason),
	)
	fields = append(fields, logger.Preview("description", l.Description, maxDescriptionInDetail)...)
	log.Info(l.Title, fields...)
	return nil
}

func showFilters(log *zap.Logger, statuses []filtering.Status) {
	for _, status := range statuses {
		log.Info("filter",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}
}

func chooseRecruiters(ctx context.Context, svc *services, listings *listing.Listings) error {
	companyPrompt := promptui.Select{
		Label: "Choose a company",
		Items: append(listings.Companies(), PromptBack),
		Size:  15,
	}
	_, company, err := companyPrompt.Run()
	if err != nil {
		return err
	}
	if company == PromptBack {
		return nil
	}

	reportRecruiters(svc.logger, company, svc.finder.Find(ctx, company))
	return nil
}

func readResumeFlag(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("resume")
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
