/*配置加载*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MissingVoicePolicy 说话人未分配声音时的处理方式
type MissingVoicePolicy string

const (
	PolicySkip MissingVoicePolicy = "skip" // 跳过并在结果中列出
	PolicyFail MissingVoicePolicy = "fail" // 合成前直接报错
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Database DatabaseConfig `mapstructure:"database"`
	Render   RenderConfig   `mapstructure:"render"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Video    VideoConfig    `mapstructure:"video"`
	Image    ImageConfig    `mapstructure:"image"`
	Voices   VoicesConfig   `mapstructure:"voices"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// PathsConfig 各类产物目录。每个会话在 workspace 下有独立的
// audio/backgrounds/scenes 子目录，成片和字幕写入 output。
type PathsConfig struct {
	Characters string `mapstructure:"characters"`
	Workspace  string `mapstructure:"workspace"`
	Output     string `mapstructure:"output"`
}

type DatabaseConfig struct {
	// 为空时使用系统应用数据目录
	Path string `mapstructure:"path"`
}

// RenderConfig 画面参数
type RenderConfig struct {
	Width            int `mapstructure:"width"`
	Height           int `mapstructure:"height"`
	FPS              int `mapstructure:"fps"`
	TransitionFrames int `mapstructure:"transition_frames"`
	CharacterWidth   int `mapstructure:"character_width"`
	CharacterHeight  int `mapstructure:"character_height"`
}

// AudioConfig 语音合成参数
type AudioConfig struct {
	Engine             string             `mapstructure:"engine"`
	MissingVoicePolicy MissingVoicePolicy `mapstructure:"missing_voice_policy"`
	NarratorVoice      string             `mapstructure:"narrator_voice"`
}

type VideoConfig struct {
	VideoCodec string `mapstructure:"video_codec"`
	AudioCodec string `mapstructure:"audio_codec"`
	Subtitles  bool   `mapstructure:"subtitles"`
}

type ImageConfig struct {
	FontPath string  `mapstructure:"font_path"`
	FontSize float64 `mapstructure:"font_size"`
	Captions bool    `mapstructure:"captions"`
}

// VoicesConfig 角色声音参数覆盖
type VoicesConfig struct {
	Default  voice.Profile            `mapstructure:"default"`
	Profiles map[string]voice.Profile `mapstructure:"profiles"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("paths.characters", "characters")
	v.SetDefault("paths.workspace", "workspace")
	v.SetDefault("paths.output", "output")

	v.SetDefault("render.width", 1920)
	v.SetDefault("render.height", 1080)
	v.SetDefault("render.fps", 24)
	v.SetDefault("render.transition_frames", 12)
	v.SetDefault("render.character_width", 400)
	v.SetDefault("render.character_height", 600)

	v.SetDefault("audio.engine", "espeak-ng")
	v.SetDefault("audio.missing_voice_policy", string(PolicySkip))

	v.SetDefault("video.video_codec", "libx264")
	v.SetDefault("video.audio_codec", "aac")
	v.SetDefault("video.subtitles", true)

	v.SetDefault("image.font_size", 40.0)

	v.SetDefault("voices.default.rate", voice.DefaultProfile.Rate)
	v.SetDefault("voices.default.volume", voice.DefaultProfile.Volume)
	v.SetDefault("voices.default.pitch", voice.DefaultProfile.Pitch)

	v.SetDefault("log.level", "info")
}

// Load 加载配置。path 为空时依次查找当前目录和可执行文件目录下的 config.yaml，
// 都不存在则只使用默认值和环境变量(前缀 DVW_)。
func Load(path string) (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DVW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 仅包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return errors.New("render.width/render.height 必须大于0")
	}
	if c.Render.FPS <= 0 {
		return errors.New("render.fps 必须大于0")
	}
	if c.Render.TransitionFrames < 1 {
		return errors.New("render.transition_frames 不能小于1")
	}
	switch c.Audio.MissingVoicePolicy {
	case PolicySkip, PolicyFail:
	default:
		return fmt.Errorf("未知的 audio.missing_voice_policy: %q", c.Audio.MissingVoicePolicy)
	}
	return nil
}

func findConfigFile() string {
	wd, _ := os.Getwd()
	candidates := []string{filepath.Join(wd, "config.yaml")}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
