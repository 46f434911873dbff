package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"kiosk/internal/assistant"
	"kiosk/internal/backend"
	"kiosk/internal/config"
	"kiosk/internal/dialog"
	"kiosk/internal/logging"
	"kiosk/internal/models"
	"kiosk/internal/notify"
	"kiosk/internal/presenter"
	"kiosk/internal/session"
	"kiosk/internal/speech"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0a84ff")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)

	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#0a84ff")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#30d158")).Bold(true)
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	disabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// kiosk holds everything one customer conversation needs
type kiosk struct {
	client    *backend.Client
	sess      *session.Session
	view      *presenter.Presenter
	assistant *assistant.Assistant
	speaker   *speech.Speaker
	listener  *speech.Listener
	channel   *notify.Channel
	logger    logrus.FieldLogger

	adminUser     string
	adminPassword string
}

func newKiosk(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*kiosk, error) {
	client := backend.NewClient(cfg.Client.BackendURL,
		backend.WithTimeout(cfg.Client.RequestTimeout),
		backend.WithLogger(logger),
	)
	if err := client.CheckHealth(ctx); err != nil {
		logger.WithError(err).Warn("order desk is not reachable yet")
	}

	sess := session.New(client,
		session.WithLogger(logger),
		session.WithDefaults(cfg.Session.Defaults),
		session.WithInitialWait(cfg.Session.InitialWaitMinutes),
	)

	speaker, listener, err := newSpeech(cfg.Speech, cfg.Client.BackendURL, client, logger)
	if err != nil {
		return nil, err
	}

	view := presenter.New(sess)
	router := dialog.NewRouter(loadMenu(ctx, client, logger))

	channel := notify.NewChannel(cfg.Client.WSURL,
		notify.WithRetries(cfg.Client.ReconnectRetries),
		notify.WithBackoff(cfg.Client.ReconnectBackoff),
		notify.WithLogger(logger),
	)
	channel.OnStatusEvent(func(ev models.StatusEvent) {
		if !sess.ApplyStatusEvent(ev) {
			logger.WithField("order_number", ev.OrderNumber).Debug("status event for another order")
		}
	})

	return &kiosk{
		client:        client,
		sess:          sess,
		view:          view,
		assistant:     assistant.New(sess, router, client, view, speaker, assistant.WithLogger(logger)),
		speaker:       speaker,
		listener:      listener,
		channel:       channel,
		logger:        logger,
		adminUser:     cfg.Server.AdminUser,
		adminPassword: cfg.Server.AdminPassword,
	}, nil
}

// newSpeech builds the speaker and listener from config. Missing capabilities
// are Unsupported so the kiosk stays usable by keyboard.
func newSpeech(cfg config.SpeechConfig, baseURL string, client *backend.Client, logger logrus.FieldLogger) (*speech.Speaker, *speech.Listener, error) {
	var (
		synth  speech.Synthesizer = speech.Unsupported{}
		player speech.Player      = speech.Unsupported{}
		rec    speech.Recognizer  = speech.Unsupported{}
	)

	if cfg.Synthesizer == "cloud" {
		cloud, err := speech.NewCloudSynthesizer(client, cfg.VoiceStyle, baseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create synthesizer: %w", err)
		}
		cmd, err := speech.NewCommandPlayer(cfg.PlayerCommand)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create player: %w", err)
		}
		synth, player = cloud, cmd
	}
	if cfg.Recognizer == "command" {
		cmd, err := speech.NewCommandRecognizer(cfg.RecognizeCommand)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create recognizer: %w", err)
		}
		rec = cmd
	}

	speaker := speech.NewSpeaker(synth, player,
		speech.WithMode(speech.Mode(cfg.Mode)),
		speech.WithSpeakerLogger(logger),
	)
	listener := speech.NewListener(rec,
		speech.WithTimeout(cfg.RecognizeTimeout),
		speech.WithListenerLogger(logger),
	)
	return speaker, listener, nil
}

// loadMenu asks the order desk for its drinks and falls back to the built-in list
func loadMenu(ctx context.Context, client *backend.Client, logger logrus.FieldLogger) *models.Menu {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	items, err := client.Menu(ctx)
	if err != nil || len(items) == 0 {
		logger.WithError(err).Warn("using built-in menu")
		return models.DefaultMenu()
	}
	return models.NewMenu(items)
}

func (k *kiosk) Close() {
	k.view.Close()
	k.speaker.Close()
	if err := k.channel.Close(); err != nil {
		k.logger.WithError(err).Warn("failed to close status channel")
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	logPath := flag.String("log", "kiosk.log", "log file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// the terminal belongs to the UI
	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Printf("Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := logging.NewWithOutput(cfg.Log, logFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k, err := newKiosk(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("Error starting kiosk: %v\n", err)
		os.Exit(1)
	}
	defer k.Close()

	p := tea.NewProgram(newModel(ctx, k), tea.WithAltScreen())
	k.view.AddSink(&programSink{p: p})
	k.channel.Connect(ctx)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v", err)
		os.Exit(1)
	}
}
