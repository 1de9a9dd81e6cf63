package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/database"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/script"
	tts "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/tts"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
)

// Summary 会话列表项
type Summary struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Status    database.ProcessStatus `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
}

// Store 会话持久化。Load 在会话不存在时返回 nil, nil。
type Store interface {
	Create(s *State) error
	Load(id string) (*State, error)
	Save(s *State) error
	Delete(id string) error
	List() ([]Summary, error)
}

// MemoryStore 进程内存储，命令行一次性渲染使用
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*State)}
}

func (m *MemoryStore) Create(s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("会话已存在: %s", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Load(id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List() ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, Summary{ID: s.ID, Name: s.Name, Status: s.Status, CreatedAt: s.CreatedAt})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

// GormStore 基于 sqlite 的持久化存储
type GormStore struct {
	gm *database.GormManager
}

// NewGormStore 创建数据库存储
func NewGormStore(gm *database.GormManager) *GormStore {
	return &GormStore{gm: gm}
}

func (g *GormStore) Create(s *State) error {
	row := toModel(s)
	if err := g.gm.CreateSession(row); err != nil {
		return err
	}
	s.CreatedAt, s.UpdatedAt = row.CreatedAt.Time, row.UpdatedAt.Time
	return nil
}

func (g *GormStore) Load(id string) (*State, error) {
	row, err := g.gm.GetSession(id)
	if err != nil || row == nil {
		return nil, err
	}
	return fromModel(row), nil
}

func (g *GormStore) Save(s *State) error {
	row := toModel(s)
	if err := g.gm.ReplaceSession(row); err != nil {
		return err
	}
	s.UpdatedAt = row.UpdatedAt.Time
	return nil
}

func (g *GormStore) Delete(id string) error {
	return g.gm.DeleteSession(id)
}

func (g *GormStore) List() ([]Summary, error) {
	rows, err := g.gm.ListSessions()
	if err != nil {
		return nil, err
	}
	result := make([]Summary, 0, len(rows))
	for _, r := range rows {
		result = append(result, Summary{ID: r.ID, Name: r.Name, Status: r.Status, CreatedAt: r.CreatedAt.Time})
	}
	return result, nil
}

func toModel(s *State) *database.Session {
	row := &database.Session{
		ID:           s.ID,
		CreatedAt:    database.MyTime{Time: s.CreatedAt},
		Name:         s.Name,
		Script:       s.Script,
		Status:       s.Status,
		ErrorMsg:     s.Error,
		OutputPath:   s.Output.VideoPath,
		SubtitlePath: s.Output.SubtitlePath,
	}

	for _, l := range s.Lines {
		row.Lines = append(row.Lines, database.ScriptLine{
			Position:     l.Position,
			Speaker:      l.Speaker,
			Dialogue:     l.Dialogue,
			OriginalLine: l.OriginalLine,
		})
	}

	speakers := make([]string, 0, len(s.Assignments))
	for speaker := range s.Assignments {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)
	for _, speaker := range speakers {
		row.Assignments = append(row.Assignments, database.VoiceAssignment{Speaker: speaker, VoiceID: s.Assignments[speaker]})
	}

	for _, u := range s.Audio.Units {
		row.AudioUnits = append(row.AudioUnits, database.AudioUnit{
			Order:     u.Order,
			Speaker:   u.Speaker,
			Dialogue:  u.Dialogue,
			VoiceID:   u.VoiceID,
			AudioPath: u.AudioPath,
			Estimated: u.Estimated,
			Status:    database.StatusCompleted,
		})
	}
	for _, sk := range s.Audio.Skipped {
		row.AudioUnits = append(row.AudioUnits, database.AudioUnit{Order: sk.Order, Speaker: sk.Speaker, Status: database.StatusSkipped, ErrorMsg: sk.Reason})
	}
	for _, f := range s.Audio.Failed {
		row.AudioUnits = append(row.AudioUnits, database.AudioUnit{Order: f.Order, Speaker: f.Speaker, Status: database.StatusFailed, ErrorMsg: f.Reason})
	}

	for _, sc := range s.Scenes {
		row.Clips = append(row.Clips, database.SceneClip{
			Order:      sc.Order,
			Camera:     sc.Camera,
			Background: sc.Background,
			VideoPath:  sc.VideoPath,
			Duration:   sc.Duration,
			Status:     database.StatusCompleted,
		})
	}
	for _, f := range s.Failed {
		row.Clips = append(row.Clips, database.SceneClip{Order: f.Order, Status: database.StatusFailed, ErrorMsg: f.Reason})
	}

	for _, st := range s.Steps {
		row.Steps = append(row.Steps, database.ProcessStep{
			StepName:  st.Name,
			Status:    st.Status,
			ErrorMsg:  st.Error,
			Details:   st.Details,
			StartTime: database.MyTime{Time: st.Started},
			EndTime:   database.MyTime{Time: st.Finished},
			Duration:  st.Finished.Sub(st.Started).Milliseconds(),
		})
	}
	return row
}

func fromModel(row *database.Session) *State {
	s := &State{
		ID:          row.ID,
		Name:        row.Name,
		Script:      row.Script,
		Assignments: voice.Assignments{},
		Status:      row.Status,
		Error:       row.ErrorMsg,
		Output:      Output{VideoPath: row.OutputPath, SubtitlePath: row.SubtitlePath},
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}

	for _, l := range row.Lines {
		s.Lines = append(s.Lines, script.Line{
			Position:     l.Position,
			Speaker:      l.Speaker,
			Dialogue:     l.Dialogue,
			OriginalLine: l.OriginalLine,
		})
	}
	for _, a := range row.Assignments {
		s.Assignments[a.Speaker] = a.VoiceID
	}

	speakers := make(map[int]string, len(row.Lines))
	for _, l := range row.Lines {
		speakers[l.Position] = l.Speaker
	}

	for _, u := range row.AudioUnits {
		switch u.Status {
		case database.StatusCompleted:
			s.Audio.Units = append(s.Audio.Units, tts.AudioUnit{
				Order:     u.Order,
				Speaker:   u.Speaker,
				Dialogue:  u.Dialogue,
				AudioPath: u.AudioPath,
				VoiceID:   u.VoiceID,
				Estimated: u.Estimated,
			})
		case database.StatusSkipped:
			s.Audio.Skipped = append(s.Audio.Skipped, tts.SkippedLine{Order: u.Order, Speaker: u.Speaker, Reason: u.ErrorMsg})
		case database.StatusFailed:
			s.Audio.Failed = append(s.Audio.Failed, tts.SkippedLine{Order: u.Order, Speaker: u.Speaker, Reason: u.ErrorMsg})
		}
	}

	for _, c := range row.Clips {
		if c.Status == database.StatusFailed {
			s.Failed = append(s.Failed, tts.SkippedLine{Order: c.Order, Speaker: speakers[c.Order], Reason: c.ErrorMsg})
			continue
		}
		s.Scenes = append(s.Scenes, Scene{
			Order:      c.Order,
			Speaker:    speakers[c.Order],
			Camera:     c.Camera,
			Background: c.Background,
			VideoPath:  c.VideoPath,
			Duration:   c.Duration,
		})
	}

	for _, st := range row.Steps {
		s.Steps = append(s.Steps, Step{
			Name:     st.StepName,
			Status:   st.Status,
			Error:    st.ErrorMsg,
			Details:  st.Details,
			Started:  st.StartTime.Time,
			Finished: st.EndTime.Time,
		})
	}
	return s
}
