package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "log/slog"

	"github.com/spf13/viper"
)

// Config carries every tunable of the daemon. Tick intervals and timeouts
// live here rather than as constants so the same binary can run on slower
// target boards.
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Wake     WakeConfig     `mapstructure:"wake"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Device   DeviceConfig   `mapstructure:"device"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

type BackendConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RetryPause time.Duration `mapstructure:"retry_pause"`
}

type AudioConfig struct {
	SampleRate   int           `mapstructure:"sample_rate"`
	LoopPoll     time.Duration `mapstructure:"loop_poll"`
	LoopStopWait time.Duration `mapstructure:"loop_stop_wait"`
}

type WakeConfig struct {
	KeywordPath  string        `mapstructure:"keyword_path"`
	Sensitivity  float64       `mapstructure:"sensitivity"`
	ListenWindow time.Duration `mapstructure:"listen_window"`
}

type ScheduleConfig struct {
	Path       string        `mapstructure:"path"`
	SweepEvery time.Duration `mapstructure:"sweep_every"`
	Window     time.Duration `mapstructure:"window"`
	Staleness  time.Duration `mapstructure:"staleness"`
}

type VisionConfig struct {
	CameraCmd    []string      `mapstructure:"camera_cmd"`
	Attempts     int           `mapstructure:"attempts"`
	AttemptPause time.Duration `mapstructure:"attempt_pause"`
	Warmup       time.Duration `mapstructure:"warmup"`
	GeminiURL    string        `mapstructure:"gemini_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type DeviceConfig struct {
	RecordDuration time.Duration `mapstructure:"record_duration"`
	TickPause      time.Duration `mapstructure:"tick_pause"`
}

type PathsConfig struct {
	SoundDir    string `mapstructure:"sound_dir"`
	TempDir     string `mapstructure:"temp_dir"`
	DBPath      string `mapstructure:"db_path"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
	Socket      string `mapstructure:"socket"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://127.0.0.1:5000/audio")
	v.SetDefault("backend.timeout", 45*time.Second)
	v.SetDefault("backend.retries", 2)
	v.SetDefault("backend.retry_pause", time.Second)

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.loop_poll", 100*time.Millisecond)
	v.SetDefault("audio.loop_stop_wait", 2*time.Second)

	v.SetDefault("wake.keyword_path", "wake_words/keyword.ppn")
	v.SetDefault("wake.sensitivity", 0.5)
	v.SetDefault("wake.listen_window", 5*time.Second)

	v.SetDefault("schedule.path", "medication_schedule.json")
	v.SetDefault("schedule.sweep_every", time.Minute)
	v.SetDefault("schedule.window", 30*time.Minute)
	v.SetDefault("schedule.staleness", time.Hour)

	v.SetDefault("vision.camera_cmd", []string{
		"libcamera-jpeg", "-n", "--width", "640", "--height", "480", "-o", "{out}",
	})
	v.SetDefault("vision.attempts", 3)
	v.SetDefault("vision.attempt_pause", time.Second)
	v.SetDefault("vision.warmup", 2*time.Second)
	v.SetDefault("vision.gemini_url",
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent")
	v.SetDefault("vision.timeout", 10*time.Second)

	v.SetDefault("device.record_duration", 8*time.Second)
	v.SetDefault("device.tick_pause", 100*time.Millisecond)

	v.SetDefault("paths.sound_dir", "sound")
	v.SetDefault("paths.temp_dir", os.TempDir())
	v.SetDefault("paths.db_path", "saathi.db")
	v.SetDefault("paths.snapshot_dir", "verifications")
	v.SetDefault("paths.socket", "/tmp/saathi.sock")
}

// Load reads the config file at path, layering SAATHI_* env vars and
// defaults underneath. A missing file is fine; a broken one is not.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SAATHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			log.Warn("Config file missing, using defaults", "path", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}
