package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/characters"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/script"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/workflow"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	scriptFiles []string
	voicePairs  []string
	outputName  string
	jsonOutput  bool

	renderCmd = &cobra.Command{
		Use:   "render",
		Short: "渲染一个或多个剧本",
		Example: `  dvw render --script story.txt --voice john=en-us --voice sarah=en-gb
  dvw render --script a.txt,b.txt --voice john=en-us,sarah=en-gb`,
		Args: cobra.NoArgs,
		RunE: runRender,
	}

	parseCmd = &cobra.Command{
		Use:   "parse [FILE|-]",
		Short: "解析剧本并检查角色图片",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runParse,
	}

	voicesCmd = &cobra.Command{
		Use:   "voices",
		Short: "列出可用声音",
		Args:  cobra.NoArgs,
		RunE:  runVoices,
	}
)

func init() {
	renderCmd.Flags().StringSliceVarP(&scriptFiles, "script", "s", nil, "剧本文件，- 表示标准输入")
	renderCmd.Flags().StringSliceVarP(&voicePairs, "voice", "v", nil, "声音分配 speaker=voice")
	renderCmd.Flags().StringVarP(&outputName, "name", "n", "", "成片名称 (默认使用剧本文件名)")
	_ = renderCmd.MarkFlagRequired("script")

	parseCmd.Flags().BoolVar(&jsonOutput, "json", false, "以 JSON 输出")
	voicesCmd.Flags().BoolVar(&jsonOutput, "json", false, "以 JSON 输出")

	rootCmd.AddCommand(renderCmd, parseCmd, voicesCmd)
}

func readScript(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取剧本失败: %w", err)
	}
	return string(data), nil
}

func jobName(path string, index, total int) string {
	if outputName != "" {
		if total > 1 {
			return fmt.Sprintf("%s_%d", outputName, index+1)
		}
		return outputName
	}
	if path == "-" {
		return "stdin"
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func runRender(cmd *cobra.Command, _ []string) error {
	assignments, err := voice.ParsePairs(voicePairs)
	if err != nil {
		return err
	}

	jobs := make([]workflow.Job, 0, len(scriptFiles))
	for i, path := range scriptFiles {
		text, err := readScript(path)
		if err != nil {
			return err
		}
		jobs = append(jobs, workflow.Job{
			Name:        jobName(path, i, len(scriptFiles)),
			Script:      text,
			Assignments: assignments,
		})
	}

	a, err := newApp(false, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	results, errs := a.processor.RenderAll(ctx, jobs)

	out := cmd.OutOrStdout()
	var failed int
	for i, r := range results {
		if errs[i] != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", jobs[i].Name, errs[i])
			continue
		}
		printResult(out, r)
	}
	fmt.Fprintf(out, "完成 %d/%d，用时 %s\n", len(jobs)-failed, len(jobs), humanize.RelTime(start, time.Now(), "", ""))

	if failed > 0 {
		return fmt.Errorf("%d 个剧本渲染失败", failed)
	}
	return nil
}

func printResult(w io.Writer, r *workflow.RenderResult) {
	size := "?"
	if st, err := os.Stat(r.OutputPath); err == nil {
		size = humanize.Bytes(uint64(st.Size()))
	}
	fmt.Fprintf(w, "✓ %s (%s, %.1fs, %d 个场景)\n", r.OutputPath, size, r.Duration, len(r.Scenes))
	if r.SubtitlePath != "" {
		fmt.Fprintf(w, "  字幕: %s\n", r.SubtitlePath)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  跳过 #%d %s: %s\n", s.Order, s.Speaker, s.Reason)
	}
	for _, s := range r.Failed {
		fmt.Fprintf(w, "  失败 #%d %s: %s\n", s.Order, s.Speaker, s.Reason)
	}
	for _, o := range r.Missing {
		fmt.Fprintf(w, "  缺失片段 #%d\n", o)
	}
}

// runParse 只解析，不需要语音引擎
func runParse(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	text, err := readScript(path)
	if err != nil {
		return err
	}

	lines := script.Parse(text)
	registry, err := characters.NewRegistry(cfg.Paths.Characters, logger)
	if err != nil {
		return err
	}
	statuses := registry.Classify(script.Speakers(lines))

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"lines": lines, "speakers": statuses})
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSPEAKER\tDIALOGUE")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", l.Position, l.Speaker, l.Dialogue)
	}
	tw.Flush()

	fmt.Fprintln(out)
	for _, s := range statuses {
		fmt.Fprintf(out, "%-12s %s\n", s.Speaker, s.Status)
	}
	if missing := characters.Missing(statuses); len(missing) > 0 {
		logger.Warn("部分角色没有图片", zap.Strings("speakers", missing), zap.String("dir", registry.Dir()))
	}
	return nil
}

func runVoices(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	voices, err := a.processor.Voices(cmd.Context())
	if err != nil {
		return err
	}
	if len(voices) == 0 {
		return errors.New("没有找到已安装的声音")
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(voices)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL")
	for _, v := range voices {
		fmt.Fprintf(tw, "%s\t%s\n", v.ID, v.Label())
	}
	return tw.Flush()
}
