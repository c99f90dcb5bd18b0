package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		PublicURL    string `yaml:"public_url"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL      string `yaml:"ttl"`
		SetsFile string `yaml:"sets_file"`
	} `yaml:"quiz"`
	Game      Game      `yaml:"game"`
	Transport Transport `yaml:"transport"`
	Log       struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

type Game struct {
	RoomIdleTTL        string   `yaml:"room_idle_ttl"`
	EndedRoomTTL       string   `yaml:"ended_room_ttl"`
	ReaperInterval     string   `yaml:"reaper_interval"`
	CafeTick           string   `yaml:"cafe_tick"`
	JoinWindow         string   `yaml:"join_window"`
	JoinLimit          int      `yaml:"join_limit"`
	DefaultBannedWords []string `yaml:"default_banned_words"`
	Quorum             string   `yaml:"quorum"`
	AutoCloseQuestions *bool    `yaml:"auto_close_questions"`
	HostGrace          string   `yaml:"host_grace"`
	HostTokenSecret    string   `yaml:"host_token_secret"`
	HostTokenTTL       string   `yaml:"host_token_ttl"`
}

type Transport struct {
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	Burst             int     `yaml:"burst"`
	SendBuffer        int     `yaml:"send_buffer"`
}

// Load reads YAML config from path. A missing file yields the zero config, which every consumer
// treats as "use the defaults".
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// JoinLimitOrDefault returns the configured joins per window, defaulting to 5.
func (g Game) JoinLimitOrDefault() int {
	if g.JoinLimit <= 0 {
		return 5
	}
	return g.JoinLimit
}

// AutoClose reports whether open questions close on their own when the time limit elapses.
func (g Game) AutoClose() bool {
	if g.AutoCloseQuestions == nil {
		return true
	}
	return *g.AutoCloseQuestions
}

func (t Transport) RateOrDefault() float64 {
	if t.MessagesPerSecond <= 0 {
		return 20
	}
	return t.MessagesPerSecond
}

func (t Transport) BurstOrDefault() int {
	if t.Burst <= 0 {
		return 40
	}
	return t.Burst
}

func (t Transport) SendBufferOrDefault() int {
	if t.SendBuffer <= 0 {
		return 32
	}
	return t.SendBuffer
}
