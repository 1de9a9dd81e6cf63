package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/database"
	tts "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/tts"
	video "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/video"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const defaultConfig = `# HTTP 服务
server:
  addr: ":8080"

paths:
  # 角色立绘目录，文件名(小写，不含扩展名)即角色名
  characters: "characters"
  # 每个会话的中间产物
  workspace: "workspace"
  # 成片和字幕
  output: "output"

database:
  # 为空时使用系统应用数据目录
  path: ""

render:
  width: 1920
  height: 1080
  fps: 24
  transition_frames: 12
  character_width: 400
  character_height: 600

audio:
  engine: "espeak-ng"
  # skip: 跳过未分配声音的角色; fail: 直接报错
  missing_voice_policy: "skip"
  # 非空时旁白也会朗读
  narrator_voice: ""

video:
  video_codec: "libx264"
  audio_codec: "aac"
  subtitles: true

image:
  font_path: ""
  font_size: 40
  # 在画面底部绘制台词
  captions: false

voices:
  default:
    rate: 150
    volume: 0.9
    pitch: 0
  profiles: {}

log:
  level: "info"
  development: false
`

var (
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "检查 ffmpeg、ffprobe、语音引擎和数据库",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "在当前目录生成默认 config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat("config.yaml"); err == nil {
				return errors.New("config.yaml 已存在")
			}
			if err := os.WriteFile("config.yaml", []byte(defaultConfig), 0644); err != nil {
				return fmt.Errorf("写入配置失败: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "已生成 config.yaml")
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(checkCmd, configCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	var missing []string

	for _, tool := range video.CheckTools() {
		if tool.Available {
			fmt.Fprintf(out, "✅ %-10s %s\n", tool.Name, tool.Path)
		} else {
			fmt.Fprintf(out, "❌ %-10s 未找到\n", tool.Name)
			missing = append(missing, tool.Name)
		}
	}

	if engine, err := tts.NewEspeakEngine(cfg.Audio.Engine, logger); err != nil {
		fmt.Fprintf(out, "❌ %-10s %v\n", cfg.Audio.Engine, err)
		missing = append(missing, cfg.Audio.Engine)
	} else if voices, err := engine.Voices(cmd.Context()); err != nil {
		fmt.Fprintf(out, "❌ %-10s %v\n", cfg.Audio.Engine, err)
		missing = append(missing, cfg.Audio.Engine)
	} else {
		fmt.Fprintf(out, "✅ %-10s %d 个声音\n", cfg.Audio.Engine, len(voices))
	}

	dbPath, err := database.InitDatabase(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(out, "❌ %-10s %v\n", "database", err)
		missing = append(missing, "database")
	} else {
		size := "0 B"
		if st, err := os.Stat(dbPath); err == nil {
			size = humanize.Bytes(uint64(st.Size()))
		}
		fmt.Fprintf(out, "✅ %-10s %s (%s)\n", "database", dbPath, size)
	}

	if len(missing) > 0 {
		return fmt.Errorf("以下依赖不可用: %v", missing)
	}
	return nil
}
