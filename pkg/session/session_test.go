package session

import (
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/database"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/script"
	tts "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/tts"
	"go.uber.org/zap"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	gm, err := database.NewGormManager(filepath.Join(t.TempDir(), "sessions.sqlite"))
	if err != nil {
		t.Fatalf("创建数据库失败: %v", err)
	}
	t.Cleanup(func() { gm.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   NewGormStore(gm),
	}
}

func TestManagerRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			m := NewManager(store, zap.NewNop())
			created, err := m.Create("demo")
			if err != nil {
				t.Fatalf("创建会话失败: %v", err)
			}

			text := "Hi, I'm John.\nSarah: Thanks!\nThe end."
			_, err = m.Update(created.ID, func(s *State) error {
				s.SetScript(text, script.Parse(text))
				s.Assignments["john"] = "en-us"
				s.Audio = tts.AudioResult{
					Units:   []tts.AudioUnit{{Order: 0, Speaker: "john", Dialogue: "Hi, I'm John.", AudioPath: "a/000_john.wav", VoiceID: "en-us", Estimated: 1.5}},
					Skipped: []tts.SkippedLine{{Order: 1, Speaker: "sarah", Reason: "未分配声音"}, {Order: 2, Speaker: "narrator", Reason: "旁白未配置声音"}},
				}
				s.Scenes = []Scene{{Order: 0, Speaker: "john", Camera: "wide", Background: "neutral", VideoPath: "s/scene_000.mp4", Duration: 1.5}}
				s.Output = Output{VideoPath: "out/final.mp4", SubtitlePath: "out/final.srt"}
				done := s.BeginStep("video")
				done(nil, "1 scene")
				return nil
			})
			if err != nil {
				t.Fatalf("更新会话失败: %v", err)
			}

			got, err := m.Get(created.ID)
			if err != nil {
				t.Fatalf("读取会话失败: %v", err)
			}
			if !reflect.DeepEqual(got.Lines, script.Parse(text)) {
				t.Errorf("台词不一致: %+v", got.Lines)
			}
			if got.Assignments["john"] != "en-us" {
				t.Errorf("声音分配丢失: %v", got.Assignments)
			}
			if len(got.Audio.Units) != 1 || got.Audio.Units[0].Estimated != 1.5 {
				t.Errorf("音频单元 = %+v", got.Audio.Units)
			}
			if len(got.Audio.Skipped) != 2 {
				t.Errorf("跳过列表 = %+v", got.Audio.Skipped)
			}
			if len(got.Scenes) != 1 || got.Scenes[0].Speaker != "john" || got.Scenes[0].Camera != "wide" {
				t.Errorf("场景 = %+v", got.Scenes)
			}
			if got.Output.VideoPath != "out/final.mp4" {
				t.Errorf("成片 = %+v", got.Output)
			}
			if got.Status != database.StatusCompleted || len(got.Steps) != 1 || got.Steps[0].Details != "1 scene" {
				t.Errorf("步骤 = %s %+v", got.Status, got.Steps)
			}

			list, err := m.List()
			if err != nil || len(list) != 1 || list[0].ID != created.ID {
				t.Errorf("List = %+v %v", list, err)
			}

			if err := m.Delete(created.ID); err != nil {
				t.Fatalf("删除失败: %v", err)
			}
			if _, err := m.Get(created.ID); !errors.Is(err, ErrSessionNotFound) {
				t.Errorf("删除后应返回 ErrSessionNotFound: %v", err)
			}
		})
	}
}

func TestUpdateKeepsChangesOnError(t *testing.T) {
	m := NewManager(NewMemoryStore(), zap.NewNop())
	s, _ := m.Create("")
	if s.Name == "" {
		t.Error("未指定名称时应生成默认名称")
	}

	boom := errors.New("boom")
	_, err := m.Update(s.ID, func(st *State) error {
		done := st.BeginStep("audio")
		done(boom, "")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("应返回 fn 的错误: %v", err)
	}

	got, _ := m.Get(s.ID)
	if got.Status != database.StatusFailed || got.Error != "boom" {
		t.Errorf("失败状态未保存: %s %q", got.Status, got.Error)
	}
}

func TestUpdateMissing(t *testing.T) {
	m := NewManager(NewMemoryStore(), zap.NewNop())
	called := false
	_, err := m.Update("nope", func(*State) error { called = true; return nil })
	if !errors.Is(err, ErrSessionNotFound) || called {
		t.Errorf("不存在的会话: err=%v called=%v", err, called)
	}
}

func TestUpdateSerialized(t *testing.T) {
	m := NewManager(NewMemoryStore(), zap.NewNop())
	s, _ := m.Create("counter")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Update(s.ID, func(st *State) error {
				st.Steps = append(st.Steps, Step{Name: "tick"})
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := m.Get(s.ID)
	if len(got.Steps) != 20 {
		t.Errorf("并发修改丢失: %d", len(got.Steps))
	}
}

func TestSetScriptResetsDownstream(t *testing.T) {
	s := NewState("id", "demo")
	s.Assignments["john"] = "en-us"
	s.Audio.Units = []tts.AudioUnit{{Order: 0}}
	s.Scenes = []Scene{{Order: 0}}
	s.Output.VideoPath = "x.mp4"

	s.SetScript("Mike: hi", script.Parse("Mike: hi"))
	if len(s.Audio.Units) != 0 || len(s.Scenes) != 0 || s.Output.VideoPath != "" {
		t.Errorf("下游产物未清空: %+v", s)
	}
	if s.Assignments["john"] != "en-us" {
		t.Error("声音分配应保留")
	}
	if got := s.Speakers(); !reflect.DeepEqual(got, []string{"mike"}) {
		t.Errorf("Speakers = %v", got)
	}
}

func TestCloneIndependent(t *testing.T) {
	s := NewState("id", "demo")
	s.Assignments["john"] = "a"
	s.Lines = []script.Line{{Speaker: "john"}}

	c := s.Clone()
	c.Assignments["john"] = "b"
	c.Lines[0].Speaker = "mike"
	if s.Assignments["john"] != "a" || s.Lines[0].Speaker != "john" {
		t.Error("Clone 与原对象共享数据")
	}
}
