package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/ai"
	"github.com/spigell/interview-trainer/internal/interview"
	"github.com/spigell/interview-trainer/internal/logger"
	"github.com/spigell/interview-trainer/internal/report"
	"github.com/spigell/interview-trainer/internal/resume"
)

const defaultReportFile = "interview-report.html"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a mock interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume", "r", "", "path to a plain-text resume used as interview context")
	runCmd.Flags().StringP("report", "o", "", "path for the rendered report (default is "+defaultReportFile+")")

	viper.BindPFlag("resume.file", runCmd.Flags().Lookup("resume"))
	viper.BindPFlag("report.file", runCmd.Flags().Lookup("report"))
}

// run drives a full interview loop in the terminal and writes the report
// when the interview concludes.
func run(_ *cobra.Command) {
	ctx := context.Background()

	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	zlog.Info("starting the interview-trainer", zap.String("version", version))

	completer, err := newCompleter(ctx, config.AI, zlog)
	if err != nil {
		zlog.Fatal("building ai client", zap.Error(err))
	}

	engine := interview.NewEngine(completer, report.NewRenderer(), config.interviewConfig(), zlog)

	summary := summarizeResumeFile(ctx, config, completer, zlog)

	state, reply := engine.Start(summary)
	printReply(reply)

	prompt := promptui.Prompt{Label: "You"}

	for !state.Finished() {
		input, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				zlog.Info("exiting", zap.String("reason", "interview aborted"))
				return
			}
			zlog.Fatal("reading input", zap.Error(err))
		}

		state, reply = engine.HandleTurn(ctx, state, input)
		printReply(reply)
	}

	path := reportPath(config)
	if err := os.WriteFile(path, state.Report, 0o644); err != nil {
		zlog.Fatal("writing the report", zap.Error(err))
	}

	zlog.Info("report written", zap.String("filename", path))
}

func printReply(reply interview.Reply) {
	switch {
	case reply.Type == interview.MessageReport:
		fmt.Printf("\nInterviewer: %s\n", reply.Text)
	case reply.QuestionCount > 0:
		fmt.Printf("\n[%d/%d] Interviewer: %s\n", reply.QuestionCount, reply.MaxQuestions, reply.Text)
	default:
		fmt.Printf("\nInterviewer: %s\n", reply.Text)
	}
}

// summarizeResumeFile loads and condenses the resume when one is
// configured. The interview runs without a resume on any failure.
func summarizeResumeFile(ctx context.Context, config *Config, completer ai.Completer, zlog *zap.Logger) string {
	if config.Resume == nil || strings.TrimSpace(config.Resume.File) == "" {
		return ""
	}

	path := strings.TrimSpace(config.Resume.File)

	text, err := os.ReadFile(path)
	if err != nil {
		zlog.Warn("reading resume file, starting without it", zap.String("filename", path), zap.Error(err))
		return ""
	}

	summary, err := resume.NewSummarizer(completer, zlog).Summarize(ctx, string(text))
	if err != nil {
		zlog.Warn("resume summarization failed, starting without it", zap.Error(err))
		fmt.Println("Sorry, I couldn't process the resume.")
		return ""
	}

	zlog.Info("resume summarized", zap.Int("summary length", len(summary)))

	return summary
}

func reportPath(config *Config) string {
	if config.Report != nil && strings.TrimSpace(config.Report.File) != "" {
		return strings.TrimSpace(config.Report.File)
	}

	return defaultReportFile
}
