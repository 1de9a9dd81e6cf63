package script

import (
	"reflect"
	"testing"
)

func TestParseExamples(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		speaker  string
		dialogue string
	}{
		{"自我介绍", "Hi, I'm John. Nice to meet you!", "john", "Hi, I'm John. Nice to meet you!"},
		{"弯引号自我介绍", "Hello, I’m Emma.", "emma", "Hello, I’m Emma."},
		{"反引号自我介绍", "Hey, I`m Mike", "mike", "Hey, I`m Mike"},
		{"缺少撇号不算自我介绍", "Im Mike, hi there", "narrator", "Im Mike, hi there"},
		{"缺少撇号的直接称呼", "Sarah: Im Park Lee", "sarah", "Im Park Lee"},
		{"未缩写不算自我介绍", "I am John.", "narrator", "I am John."},
		{"转述", "Sarah replied: Thanks John!", "sarah", "Thanks John!"},
		{"said", "John said: How are you doing today?", "john", "How are you doing today?"},
		{"直接称呼", "Mike: Let's go.", "mike", "Let's go."},
		{"旁白", "The sun was setting.", "narrator", "The sun was setting."},
		{"优先自我介绍", "Sarah: I'm Great", "great", "Sarah: I'm Great"},
		{"全大写名字", "JOHN: hello", "narrator", "JOHN: hello"},
		{"小写开头名字", "mcKenzie: hi", "narrator", "mcKenzie: hi"},
		{"冒号后为空", "Mike:", "narrator", "Mike:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := Parse(tt.input)
			if len(lines) != 1 {
				t.Fatalf("期望1条记录，实际得到 %d 条", len(lines))
			}
			if lines[0].Speaker != tt.speaker {
				t.Errorf("speaker = %q, 期望 %q", lines[0].Speaker, tt.speaker)
			}
			if lines[0].Dialogue != tt.dialogue {
				t.Errorf("dialogue = %q, 期望 %q", lines[0].Dialogue, tt.dialogue)
			}
			if lines[0].OriginalLine != tt.input {
				t.Errorf("original_line = %q, 期望 %q", lines[0].OriginalLine, tt.input)
			}
		})
	}
}

func TestParseSelfIntroductionBeatsDirectAddress(t *testing.T) {
	lines := Parse("Sarah: I'm great")
	if len(lines) != 1 {
		t.Fatalf("期望1条记录，实际得到 %d 条", len(lines))
	}
	if lines[0].Speaker != "sarah" || lines[0].Dialogue != "Sarah: I'm great" {
		t.Errorf("应保留整行台词: %+v", lines[0])
	}

	lines = Parse("Sarah: I’m doing great, thanks for asking!")
	if lines[0].Speaker != "sarah" || lines[0].Dialogue != lines[0].OriginalLine {
		t.Errorf("弯引号也应按自我介绍规则处理: %+v", lines[0])
	}

	// 转述句中的 I'm 没有行首标签，交给后续规则
	lines = Parse("John said: I'm tired")
	if lines[0].Speaker != "john" || lines[0].Dialogue != "I'm tired" {
		t.Errorf("转述规则结果不符合预期: %+v", lines[0])
	}

	lines = Parse("Sarah: I'm Sarah and I'm great")
	if lines[0].Speaker != "sarah" || lines[0].Dialogue != "Sarah: I'm Sarah and I'm great" {
		t.Errorf("自我介绍规则应保留整行: %+v", lines[0])
	}
}

func TestParseBlankLinesAndOrder(t *testing.T) {
	input := "\n\n   \nHi, I'm John. Nice to meet you!\n\nSarah replied: Thanks John, good to meet you too!\r\n  John said: How are you doing today?  \nSarah: I'm doing great, thanks for asking!\n\n"
	lines := Parse(input)
	if len(lines) != 4 {
		t.Fatalf("期望4条记录，实际得到 %d 条", len(lines))
	}

	wantSpeakers := []string{"john", "sarah", "john", "sarah"}
	for i, l := range lines {
		if l.Position != i {
			t.Errorf("第%d条 position = %d", i, l.Position)
		}
		if l.Speaker != wantSpeakers[i] {
			t.Errorf("第%d条 speaker = %q, 期望 %q", i, l.Speaker, wantSpeakers[i])
		}
	}

	if got := Parse("   "); len(got) != 0 {
		t.Errorf("空白输入不应产生记录: %+v", got)
	}
}

func TestParseIdempotent(t *testing.T) {
	input := "Hi, I'm John.\nThe park was quiet.\nMike: Let's go outside."
	first := Parse(input)
	second := Parse(input)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("重复解析结果不一致:\n%+v\n%+v", first, second)
	}
}

func TestCustomMatcherOrder(t *testing.T) {
	p := NewParser(
		Matcher{Name: "direct_address", Match: matchDirectAddress},
		Matcher{Name: "narrator", Match: matchNarrator},
	)
	lines := p.Parse("Sarah: I'm Great")
	if lines[0].Speaker != "sarah" || lines[0].Dialogue != "I'm Great" {
		t.Errorf("自定义顺序未生效: %+v", lines[0])
	}
}

func TestSpeakers(t *testing.T) {
	lines := Parse("Mike: a\nThe end.\nSarah: b\nMike: c")
	got := Speakers(lines)
	want := []string{"mike", "narrator", "sarah"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Speakers() = %v, 期望 %v", got, want)
	}
}
