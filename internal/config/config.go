package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
	Platform Platform `yaml:"platform"`
	Twitter  Twitter  `yaml:"twitter"`
	Listener Listener `yaml:"listener"`
	Assets   Assets   `yaml:"assets"`
	Output   Output   `yaml:"output"`
	Wrapped  Wrapped  `yaml:"wrapped"`
	S3       S3       `yaml:"s3"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string        `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"120s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
}

// Address returns the full server address
func (s Server) Address() string {
	return s.Host + ":" + s.Port
}

// Log holds logger configuration
type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Platform holds the bot's platform configuration
type Platform struct {
	Variant       string `yaml:"variant" env:"PLATFORM_VARIANT" env-default:"bark"`
	BaseURL       string `yaml:"base_url" env:"PLATFORM_BASE_URL" env-default:"https://misskey.io"`
	Token         string `yaml:"token" env:"PLATFORM_TOKEN"`
	BotHandle     string `yaml:"bot_handle" env:"PLATFORM_BOT_HANDLE" env-default:"@barkwrapped"`
	Keyword       string `yaml:"keyword" env:"PLATFORM_KEYWORD" env-default:"wrapped"`
	ReplyTemplate string `yaml:"reply_template" env:"PLATFORM_REPLY_TEMPLATE" env-default:"Here's your Bark Wrapped, @{username}!"`
	// Timezone of the calendar-year fetch window
	Timezone string `yaml:"timezone" env:"PLATFORM_TIMEZONE" env-default:"UTC"`
}

// Twitter holds Twitter API configuration for the tweet variant
type Twitter struct {
	BaseURL     string `yaml:"base_url" env:"TWITTER_BASE_URL" env-default:"https://api.twitter.com"`
	BearerToken string `yaml:"bearer_token" env:"TWITTER_BEARER_TOKEN"`
}

// Listener holds mention listener configuration
type Listener struct {
	Enabled        bool          `yaml:"enabled" env:"LISTENER_ENABLED" env-default:"false"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"LISTENER_RECONNECT_DELAY" env-default:"10s"`
	QueueSize      int           `yaml:"queue_size" env:"LISTENER_QUEUE_SIZE" env-default:"32"`
}

// Assets locates the template images and fonts
type Assets struct {
	Dir string `yaml:"dir" env:"ASSETS_DIR" env-default:"./assets"`
}

// Output holds where dumps and images are written
type Output struct {
	DumpDir        string `yaml:"dump_dir" env:"OUTPUT_DUMP_DIR" env-default:"./data/dumps"`
	ImageDir       string `yaml:"image_dir" env:"OUTPUT_IMAGE_DIR" env-default:"./data/images"`
	Sink           string `yaml:"sink" env:"OUTPUT_SINK" env-default:"local"`
	ParallelRender bool   `yaml:"parallel_render" env:"OUTPUT_PARALLEL_RENDER" env-default:"false"`
}

// Wrapped holds the generation parameters
type Wrapped struct {
	LikeThresholds []int  `yaml:"like_thresholds" env:"WRAPPED_LIKE_THRESHOLDS" env-separator:"," env-default:"1,5,15,10000"`
	Watermark      string `yaml:"watermark" env:"WRAPPED_WATERMARK" env-default:"@BarkWrapped"`
	MaxCloudWords  int    `yaml:"max_cloud_words" env:"WRAPPED_MAX_CLOUD_WORDS" env-default:"200"`
}

// S3 holds S3/MinIO storage configuration
type S3 struct {
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"http://localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET" env-default:"wrapped"`
	Region          string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	PublicURL       string `yaml:"public_url" env:"S3_PUBLIC_URL" env-default:"http://localhost:9000/wrapped"`
}

// Load reads configuration from the environment, loading .env first if present
func Load() (Config, error) {
	// Load .env file if exists (for development)
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MustLoad loads configuration from environment and exits on error
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFromFile loads configuration from a YAML file; environment variables override it
func LoadFromFile(path string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
