package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"saathi/internal/audio"
	"saathi/internal/backend"
	"saathi/internal/config"
	"saathi/internal/device"
	"saathi/internal/ipc"
	"saathi/internal/sched"
	"saathi/internal/store"
	"saathi/internal/vision"
	"saathi/internal/wake"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// audioPort narrows *audio.Port to the loop-handle interface the
// orchestrator consumes.
type audioPort struct {
	*audio.Port
}

func (a audioPort) PlayLooped(cue string) device.CueLoop {
	return a.Port.PlayLooped(cue)
}

func main() {
	cfgFile := cli.StringP("config", "c", "saathi.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	checkAssets(cfg)

	accessKey := os.Getenv("PICOVOICE_ACCESS_KEY")
	if accessKey == "" {
		log.Error("PICOVOICE_ACCESS_KEY not set")
		os.Exit(1)
	}
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Warn("GEMINI_API_KEY not set, pouch validation will reject everything")
	}

	port := audio.NewPort(cfg.Paths.SoundDir, cfg.Audio.SampleRate,
		cfg.Audio.LoopPoll, cfg.Audio.LoopStopWait)
	if err := port.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}

	log.Debug("Loaded audio")

	detector, err := wake.NewPorcupine(accessKey, cfg.Wake.KeywordPath,
		float32(cfg.Wake.Sensitivity))
	if err != nil {
		log.Error("Failed to init wake engine", "err", err)
		port.Close()
		os.Exit(1)
	}
	listener := wake.NewListener(detector, port, cfg.Wake.ListenWindow)

	log.Debug("Loaded wake engine")

	client := backend.NewClient(cfg.Backend.URL, backend.Options{
		Timeout:    cfg.Backend.Timeout,
		Retries:    cfg.Backend.Retries,
		RetryPause: cfg.Backend.RetryPause,
	})

	schedule, err := sched.LoadSchedule(cfg.Schedule.Path)
	if err != nil {
		log.Error("Failed to load medication schedule", "err", err)
		os.Exit(1)
	}
	scheduler := sched.New(schedule, sched.Options{
		SweepEvery: cfg.Schedule.SweepEvery,
		Window:     cfg.Schedule.Window,
		Staleness:  cfg.Schedule.Staleness,
	})
	if err := scheduler.Start(); err != nil {
		log.Error("Failed to start scheduler", "err", err)
		os.Exit(1)
	}
	scheduler.Sweep()

	log.Debug("Loaded scheduler", "medications", len(schedule))

	validator := vision.NewValidator(
		vision.NewExecCamera(cfg.Vision.CameraCmd),
		vision.NewGemini(cfg.Vision.GeminiURL, geminiKey, cfg.Vision.Timeout),
		vision.ValidatorOptions{
			Attempts:     cfg.Vision.Attempts,
			AttemptPause: cfg.Vision.AttemptPause,
			Warmup:       cfg.Vision.Warmup,
		})

	st, err := store.Open(cfg.Paths.DBPath)
	if err != nil {
		log.Error("Failed to open verification store", "err", err)
		os.Exit(1)
	}

	orch := device.New(device.Config{
		RecordDuration: cfg.Device.RecordDuration,
		TickPause:      cfg.Device.TickPause,
		TempDir:        cfg.Paths.TempDir,
		SnapshotDir:    cfg.Paths.SnapshotDir,
	}, audioPort{port}, listener, client, scheduler, validator, st)

	closeIPC, err := ipc.StartServer(cfg.Paths.Socket, func(msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case "trigger":
			orch.Trigger()
			return ipc.Reply{OK: true, Detail: "triggered"}
		case "status":
			return ipc.Reply{OK: true, Detail: orch.Status()}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Reply{OK: false, Detail: "unknown command: " + msg.Cmd}
		}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Boot up - successful")

	orch.Run(ctx)

	// Teardown order matters: cues first, then timers, then the rest.
	log.Info("Shutting down")
	closeIPC()
	port.Close()
	scheduler.Stop(2 * time.Second)
	if err := detector.Close(); err != nil {
		log.Warn("Wake engine close failed", "err", err)
	}
	if err := st.Close(); err != nil {
		log.Warn("Store close failed", "err", err)
	}
	for _, name := range []string{"recording.wav", "response.wav"} {
		os.Remove(filepath.Join(cfg.Paths.TempDir, name))
	}
	log.Info("Bye")
}

// checkAssets verifies on-disk resources before the loop starts. The wake
// model is fatal, a missing cue just degrades that one sound.
func checkAssets(cfg *config.Config) {
	if _, err := os.Stat(cfg.Wake.KeywordPath); err != nil {
		log.Error("Wake keyword model missing", "path", cfg.Wake.KeywordPath)
		os.Exit(1)
	}
	if _, err := os.Stat(cfg.Paths.SoundDir); err != nil {
		log.Error("Sound directory missing", "path", cfg.Paths.SoundDir)
		os.Exit(1)
	}
	for _, cue := range device.CueFiles() {
		if _, err := os.Stat(filepath.Join(cfg.Paths.SoundDir, cue)); err != nil {
			log.Warn("Cue file missing", "cue", cue)
		}
	}
}
