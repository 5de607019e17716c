package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/resume-recommender/internal/logger"
	"github.com/spigell/resume-recommender/internal/pipeline"
	"github.com/spigell/resume-recommender/internal/recommend"
	"go.uber.org/zap"
)

const (
	PromptLearningPaths = "Show learning paths"
	PromptDumpToFile    = "Dump results to file"
	PromptExit          = "Exit"

	OutputText = "text"
	OutputJSON = "json"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptLearningPaths, PromptDumpToFile, PromptExit},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <resume-file>",
	Short: "Recommend jobs for a resume file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRecommend(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("user", "u", "", "user id; results are persisted only for identified users")
	recommendCmd.Flags().StringP("type", "t", "", "declared media type of the file (detected from the extension when empty)")
	recommendCmd.Flags().StringP("output", "o", OutputText, "output format: text or json")
	recommendCmd.Flags().BoolP("auto-approve", "y", false, "do not show the interactive menu")
}

func runRecommend(cmd *cobra.Command, path string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the resume-recommender", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading resume file", zap.String("path", path), zap.Error(err))
	}

	app, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("building application", zap.Error(err))
	}
	defer app.Close()

	userID, _ := cmd.Flags().GetString("user")
	mediaType, _ := cmd.Flags().GetString("type")
	output, _ := cmd.Flags().GetString("output")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	res, err := app.pipeline.Run(ctx, pipeline.Upload{
		UserID:    userID,
		FileName:  filepath.Base(path),
		MediaType: mediaType,
		Data:      data,
	})
	if err != nil {
		logger.Error("processing resume failed",
			zap.String("kind", pipeline.Kind(err)),
			zap.String("message", pipeline.Describe(err)),
			zap.Error(err),
		)
		return
	}

	if res.Warning != "" {
		logger.Warn(res.Warning)
	}

	if strings.EqualFold(output, OutputJSON) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Set); err != nil {
			logger.Fatal("encoding recommendations", zap.Error(err))
		}
		return
	}

	printRecommendations(os.Stdout, res.Set)

	if autoApprove {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, os.Stdout, logger, res); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, w io.Writer, logger *zap.Logger, res *pipeline.Result) error {
	switch action {
	case PromptLearningPaths:
		printLearningPaths(w, res.Set)
		return nil
	case PromptDumpToFile:
		filename, err := dumpToTmpFile(res)
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

func printRecommendations(w io.Writer, set recommend.RecommendationSet) {
	if len(set.Jobs) == 0 {
		fmt.Fprintln(w, "No job matches found.")
	}
	for i, job := range set.Jobs {
		fmt.Fprintf(w, "%d. %s at %s (%s)\n", i+1, job.Title, job.Company, job.Match)
		fmt.Fprintf(w, "   %s\n", job.Description)
		if len(job.Skills) > 0 {
			fmt.Fprintf(w, "   Skills: %s\n", strings.Join(job.Skills, ", "))
		}
	}
	fmt.Fprintf(w, "\n%s\n", set.Insights)
}

func printLearningPaths(w io.Writer, set recommend.RecommendationSet) {
	for _, job := range set.Jobs {
		fmt.Fprintf(w, "%s:\n", job.Title)
		if len(job.LearningPath) == 0 {
			fmt.Fprintln(w, "   no learning path available")
			continue
		}
		for _, step := range job.LearningPath {
			fmt.Fprintf(w, "   - %s (%s, %s)\n", step.Title, step.Provider, step.Difficulty)
		}
	}
}

func dumpToTmpFile(res *pipeline.Result) (string, error) {
	file, err := os.CreateTemp("", "recommendations_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return "", err
	}
	return file.Name(), nil
}
