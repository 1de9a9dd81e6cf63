package video

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration 使用 ffprobe 获取媒体文件时长(秒)
func Duration(path string) (float64, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe执行失败: %w", err)
	}

	var res probeResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return 0, fmt.Errorf("解析ffprobe输出失败: %w", err)
	}
	d, err := strconv.ParseFloat(res.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("无效的时长 %q: %w", res.Format.Duration, err)
	}
	return d, nil
}

// Tool 外部工具检查结果
type Tool struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
}

// CheckTools 检查 ffmpeg 和 ffprobe 是否可用
func CheckTools() []Tool {
	var tools []Tool
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		path, err := exec.LookPath(name)
		tools = append(tools, Tool{Name: name, Path: path, Available: err == nil})
	}
	return tools
}
