package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
	"go.uber.org/zap"
)

// Job 一次完整渲染的输入
type Job struct {
	Name        string
	Script      string
	Assignments voice.Assignments
}

// Render 创建会话并依次完成解析、分配声音、生成音频和视频
func (p *Processor) Render(ctx context.Context, job Job) (*RenderResult, error) {
	state, err := p.sessions.Create(job.Name)
	if err != nil {
		return nil, err
	}
	id := state.ID

	// 1. 解析剧本
	if _, err := p.ParseScript(id, job.Script); err != nil {
		return nil, fmt.Errorf("解析剧本失败: %w", err)
	}

	// 2. 分配声音，按说话人排序保证日志稳定
	speakers := make([]string, 0, len(job.Assignments))
	for speaker := range job.Assignments {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)
	for _, speaker := range speakers {
		if _, err := p.AssignVoice(ctx, id, speaker, job.Assignments[speaker]); err != nil {
			return nil, fmt.Errorf("分配声音失败 %s: %w", speaker, err)
		}
	}

	// 3. 检查素材，缺失只提示
	analysis, err := p.Analyze(id)
	if err != nil {
		return nil, err
	}
	if len(analysis.MissingAssets) > 0 {
		p.logger.Warn("部分角色没有图片", zap.Strings("speakers", analysis.MissingAssets))
	}
	if len(analysis.Unassigned) > 0 {
		p.logger.Warn("部分角色没有分配声音", zap.Strings("speakers", analysis.Unassigned))
	}

	// 4. 音频
	if _, err := p.GenerateAudio(ctx, id); err != nil {
		return nil, err
	}

	// 5. 视频
	result, err := p.GenerateVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	p.finish(id, StepRender, nil)
	return result, nil
}

// RenderAll 顺序渲染多个剧本。单个剧本失败不影响后续剧本，错误按下标返回。
func (p *Processor) RenderAll(ctx context.Context, jobs []Job) ([]*RenderResult, []error) {
	results := make([]*RenderResult, len(jobs))
	errs := make([]error, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		p.logger.Info("开始渲染", zap.Int("index", i+1), zap.Int("total", len(jobs)), zap.String("name", job.Name))
		results[i], errs[i] = p.Render(ctx, job)
		if errs[i] != nil {
			p.logger.Error("渲染失败", zap.String("name", job.Name), zap.Error(errs[i]))
		}
	}
	return results, errs
}
