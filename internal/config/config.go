package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTPConfig       `yaml:"http"`
	Gallery    GalleryConfig    `yaml:"gallery"`
	MediaStore MediaStoreConfig `yaml:"media_store"`
	Settings   SettingsConfig   `yaml:"settings"`
	Thumbnails ThumbnailsConfig `yaml:"thumbnails"`
	Redis      RedisConf        `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
}

type HTTPConfig struct {
	Host          string        `yaml:"host"`
	Port          string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
	SessionSecret string        `yaml:"session_secret" env:"SESSION_SECRET" env-default:"change-me"`
	MaxUploadSize string        `yaml:"max_upload_size" env-default:"20M"`
}

type GalleryConfig struct {
	RootFolder             string   `yaml:"root_folder" env-default:"ImageGalleries"`
	AllowedExtensions      []string `yaml:"allowed_extensions" env-default:".jpg,.jpeg,.png,.gif,.bmp,.webp"`
	DefaultThumbnailWidth  int      `yaml:"default_thumbnail_width" env-default:"100"`
	DefaultThumbnailHeight int      `yaml:"default_thumbnail_height" env-default:"100"`
	RenamePolicy           string   `yaml:"rename_policy" env-default:"migrate"` // migrate | keep
}

type MediaStoreConfig struct {
	Driver  string   `yaml:"driver" env:"MEDIA_STORE_DRIVER" env-default:"local"` // local | s3
	BaseDir string   `yaml:"base_dir" env-default:"./media"`
	BaseURL string   `yaml:"base_url" env-default:"/media"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Region          string `yaml:"region" env:"S3_REGION" env-default:"auto"`
	Bucket          string `yaml:"bucket" env:"S3_BUCKET"`
	Prefix          string `yaml:"prefix" env:"S3_PREFIX"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	PublicURL       string `yaml:"public_url" env:"S3_PUBLIC_URL"`
}

type SettingsConfig struct {
	Driver     string `yaml:"driver" env:"SETTINGS_DRIVER" env-default:"sqlite"` // sqlite | postgres
	DSN        string `yaml:"dsn" env:"DSN"`
	SQLitePath string `yaml:"sqlite_path" env-default:"./gallery.db"`
}

type ThumbnailsConfig struct {
	Folder   string        `yaml:"folder" env-default:"_thumbnails"`
	Quality  int           `yaml:"quality" env-default:"85"`
	Cache    string        `yaml:"cache" env-default:"memory"` // memory | redis
	CacheTTL time.Duration `yaml:"cache_ttl" env-default:"24h"`
}

type RedisConf struct {
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redispassword" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db"`
}

type AuthConfig struct {
	AdminLogin        string        `yaml:"admin_login" env-default:"admin"`
	AdminPasswordHash string        `yaml:"admin_password_hash" env:"ADMIN_PASSWORD_HASH" env-required:"true"`
	TokenSecret       string        `yaml:"token_secret" env:"TOKEN_SECRET" env-required:"true"`
	TokenTTL          time.Duration `yaml:"token_ttl" env-default:"1h"`
}

func MustLoad() *Config {
	// .env не обязателен
	_ = godotenv.Load()

	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
