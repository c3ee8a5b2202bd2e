package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Engine  EngineConfig
	Capture CaptureConfig
	Roster  RosterConfig
	Encoder EncoderConfig
	Store   StoreConfig
	Reports ReportsConfig
	Chatbot ChatbotConfig
	AI      AIConfig
	Log     LogConfig
}

// EngineConfig controls the recognition and session core.
type EngineConfig struct {
	FaceThreshold    float64       // maximum match distance, lower = stricter
	RecognitionModel string        // "fast" or "accurate", passed to the encoder service
	SessionDuration  time.Duration // attendance session time box
	FrameStride      int           // process every Nth frame
}

type CaptureConfig struct {
	CameraIndex  int      // index into Cameras
	Cameras      []string // MJPEG stream URLs
	PollInterval time.Duration
}

type RosterConfig struct {
	ImagesDir string // one face image per student, filename is the student id
	CacheFile string // gob cache of loaded encodings (optional)
}

type EncoderConfig struct {
	URL string // face embedding service, defaults to http://localhost:8000
	Dim int    // expected embedding dimension (default 512)
}

type StoreConfig struct {
	Backend      string // sqlite (default), postgres, mariadb
	SQLitePath   string
	PostgresURL  string
	MariaDBURL   string
	MaxOpenConns int
	MaxIdleConns int
	RetainDays   int // attendance rows older than this are cleaned up
}

type ReportsConfig struct {
	Format    string // csv, json, both
	Directory string
}

type ChatbotConfig struct {
	FAQFile       string  // user FAQ corpus, JSON; embedded defaults used when empty
	MinConfidence float64 // minimum keyword score to accept a match
}

type AIConfig struct {
	Provider     string // openai, gemini, anthropic or empty to disable fallback
	OpenAIToken  string
	GeminiAPIKey string
	AnthropicKey string
}

type LogConfig struct {
	Level   string
	File    string
	Console bool
	Pretty  bool
}

// defaults mirrors the embedded defaults.yaml file.
type defaults struct {
	Engine struct {
		FaceThreshold          float64 `yaml:"face_threshold"`
		RecognitionModel       string  `yaml:"recognition_model"`
		SessionDurationSeconds int     `yaml:"session_duration_seconds"`
		ProcessEveryNFrames    int     `yaml:"process_every_n_frames"`
	} `yaml:"engine"`
	Capture struct {
		CameraIndex    int `yaml:"camera_index"`
		PollIntervalMs int `yaml:"poll_interval_ms"`
	} `yaml:"capture"`
	Reports struct {
		Format    string `yaml:"format"`
		Directory string `yaml:"directory"`
	} `yaml:"reports"`
	Chatbot struct {
		MinConfidence float64 `yaml:"min_confidence"`
	} `yaml:"chatbot"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envIndex is envInt but accepts zero (camera indexes start at 0).
func envIndex(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

func Load() *Config {
	var def defaults
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// Embedded file, cannot happen outside of a broken build.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	model := envString("RECOGNITION_MODEL", def.Engine.RecognitionModel)
	if model != "fast" && model != "accurate" {
		model = "fast"
	}

	var cameras []string
	if s := os.Getenv("CAMERA_URLS"); s != "" {
		for _, u := range strings.Split(s, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cameras = append(cameras, u)
			}
		}
	}

	return &Config{
		Engine: EngineConfig{
			FaceThreshold:    envFloat("FACE_THRESHOLD", def.Engine.FaceThreshold),
			RecognitionModel: model,
			SessionDuration:  time.Duration(envInt("SESSION_DURATION_SECONDS", def.Engine.SessionDurationSeconds)) * time.Second,
			FrameStride:      envInt("PROCESS_EVERY_N_FRAMES", def.Engine.ProcessEveryNFrames),
		},
		Capture: CaptureConfig{
			CameraIndex:  envIndex("CAMERA_INDEX", def.Capture.CameraIndex),
			Cameras:      cameras,
			PollInterval: time.Duration(envInt("CAPTURE_POLL_INTERVAL_MS", def.Capture.PollIntervalMs)) * time.Millisecond,
		},
		Roster: RosterConfig{
			ImagesDir: envString("ROSTER_IMAGES_DIR", "data/student_images"),
			CacheFile: os.Getenv("ROSTER_CACHE_FILE"),
		},
		Encoder: EncoderConfig{
			URL: os.Getenv("ENCODER_URL"),
			Dim: envInt("ENCODER_DIM", 512),
		},
		Store: StoreConfig{
			Backend:      envString("STORE_BACKEND", "sqlite"),
			SQLitePath:   envString("SQLITE_PATH", "data/attendance.db"),
			PostgresURL:  os.Getenv("POSTGRES_URL"),
			MariaDBURL:   os.Getenv("MARIADB_URL"),
			MaxOpenConns: envInt("STORE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("STORE_MAX_IDLE_CONNS", 5),
			RetainDays:   envInt("STORE_RETAIN_DAYS", 90),
		},
		Reports: ReportsConfig{
			Format:    envString("REPORTS_FORMAT", def.Reports.Format),
			Directory: envString("REPORTS_DIR", def.Reports.Directory),
		},
		Chatbot: ChatbotConfig{
			FAQFile:       os.Getenv("FAQ_FILE"),
			MinConfidence: envFloat("CHATBOT_MIN_CONFIDENCE", def.Chatbot.MinConfidence),
		},
		AI: AIConfig{
			Provider:     os.Getenv("AI_PROVIDER"),
			OpenAIToken:  os.Getenv("OPENAI_TOKEN"),
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		},
		Log: LogConfig{
			Level:   envString("LOG_LEVEL", "info"),
			File:    os.Getenv("LOG_FILE"),
			Console: envBool("LOG_CONSOLE", true),
			Pretty:  envBool("LOG_PRETTY", true),
		},
	}
}
