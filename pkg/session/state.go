/*会话状态*/
package session

import (
	"time"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/database"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/script"
	tts "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/tts"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
)

// Scene 已合成的场景片段
type Scene struct {
	Order      int     `json:"order"`
	Speaker    string  `json:"speaker"`
	Camera     string  `json:"camera"`
	Background string  `json:"background"`
	VideoPath  string  `json:"video_path"`
	Duration   float64 `json:"duration"`
}

// Output 成片
type Output struct {
	VideoPath    string `json:"video_path,omitempty"`
	SubtitlePath string `json:"subtitle_path,omitempty"`
}

// Step 处理步骤记录
type Step struct {
	Name     string                 `json:"name"`
	Status   database.ProcessStatus `json:"status"`
	Error    string                 `json:"error,omitempty"`
	Details  string                 `json:"details,omitempty"`
	Started  time.Time              `json:"started"`
	Finished time.Time              `json:"finished"`
}

// State 一个会话的全部状态，每次工作流调用都显式传入
type State struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Script      string                 `json:"script"`
	Lines       []script.Line          `json:"lines"`
	Assignments voice.Assignments      `json:"assignments"`
	Audio       tts.AudioResult        `json:"audio"`
	Scenes      []Scene                `json:"scenes"`
	Failed      []tts.SkippedLine      `json:"failed_scenes,omitempty"`
	Output      Output                 `json:"output"`
	Status      database.ProcessStatus `json:"status"`
	Error       string                 `json:"error,omitempty"`
	Steps       []Step                 `json:"steps,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NewState 创建空会话
func NewState(id, name string) *State {
	now := time.Now()
	return &State{
		ID:          id,
		Name:        name,
		Assignments: voice.Assignments{},
		Status:      database.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetScript 替换剧本。下游的音频和视频全部作废，声音分配保留。
func (s *State) SetScript(text string, lines []script.Line) {
	s.Script = text
	s.Lines = lines
	s.ResetAudio()
}

// ResetAudio 作废音频及其之后的产物
func (s *State) ResetAudio() {
	s.Audio = tts.AudioResult{}
	s.ResetVideo()
}

// ResetVideo 作废场景片段和成片
func (s *State) ResetVideo() {
	s.Scenes = nil
	s.Failed = nil
	s.Output = Output{}
}

// Speakers 剧本中出现的说话人，按首次出现排序
func (s *State) Speakers() []string {
	return script.Speakers(s.Lines)
}

// Line 按位置查找台词
func (s *State) Line(position int) (script.Line, bool) {
	for _, l := range s.Lines {
		if l.Position == position {
			return l, true
		}
	}
	return script.Line{}, false
}

// BeginStep 记录步骤开始，返回的函数用于记录结束
func (s *State) BeginStep(name string) func(err error, details string) {
	s.Steps = append(s.Steps, Step{Name: name, Status: database.StatusProcessing, Started: time.Now()})
	idx := len(s.Steps) - 1
	s.Status = database.StatusProcessing
	s.Error = ""

	return func(err error, details string) {
		step := &s.Steps[idx]
		step.Finished = time.Now()
		step.Details = details
		if err != nil {
			step.Status = database.StatusFailed
			step.Error = err.Error()
			s.Status = database.StatusFailed
			s.Error = err.Error()
			return
		}
		step.Status = database.StatusCompleted
		s.Status = database.StatusCompleted
	}
}

// Clone 深拷贝
func (s *State) Clone() *State {
	c := *s
	c.Lines = append([]script.Line(nil), s.Lines...)
	c.Assignments = make(voice.Assignments, len(s.Assignments))
	for k, v := range s.Assignments {
		c.Assignments[k] = v
	}
	c.Audio = tts.AudioResult{
		Units:   append([]tts.AudioUnit(nil), s.Audio.Units...),
		Skipped: append([]tts.SkippedLine(nil), s.Audio.Skipped...),
		Failed:  append([]tts.SkippedLine(nil), s.Audio.Failed...),
	}
	c.Scenes = append([]Scene(nil), s.Scenes...)
	c.Failed = append([]tts.SkippedLine(nil), s.Failed...)
	c.Steps = append([]Step(nil), s.Steps...)
	return &c
}
