package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-trainer/internal/ai"
	"github.com/spigell/interview-trainer/internal/interview"
	"github.com/spigell/interview-trainer/internal/logger"
	"github.com/spigell/interview-trainer/internal/report"
	"github.com/spigell/interview-trainer/internal/resume"
	"github.com/spigell/interview-trainer/internal/secrets"
	"github.com/spigell/interview-trainer/internal/server"
	"github.com/spigell/interview-trainer/internal/session"
	"github.com/spigell/interview-trainer/internal/speech"
)

const defaultListenAddr = ":8080"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve interview sessions over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address (default is "+defaultListenAddr+")")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	zlog.Info("starting the interview-trainer server", zap.String("version", version))

	completer, err := newCompleter(ctx, config.AI, zlog)
	if err != nil {
		zlog.Fatal("building ai client", zap.Error(err))
	}

	engine := interview.NewEngine(completer, report.NewRenderer(), config.interviewConfig(), zlog)

	transcriber, synthesizer := newSpeechClients(config.Speech, zlog)

	sessions := session.NewManager(engine, transcriber, synthesizer, zlog)
	summarizer := resume.NewSummarizer(completer, zlog)

	srv := server.New(sessions, summarizer, zlog)

	addr := defaultListenAddr
	if config.Server != nil && config.Server.Listen != "" {
		addr = config.Server.Listen
	}

	if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Fatal("http server failed", zap.Error(err))
	}

	zlog.Info("server stopped")
}

// newSpeechClients builds the speech backend client when voice turns are
// enabled. The server runs text-only otherwise.
func newSpeechClients(cfg *SpeechConfig, zlog *zap.Logger) (ai.Transcriber, ai.Synthesizer) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	token, err := secrets.Load("speech token", cfg.TokenFile, cfg.Token)
	if err != nil {
		// The backend may be unauthenticated.
		token = ""
	}

	client, err := speech.New(cfg.URL, token, zlog)
	if err != nil {
		zlog.Warn("speech backend misconfigured, running text-only", zap.Error(err))
		return nil, nil
	}

	return client, client
}
