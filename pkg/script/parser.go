/*剧本解析*/
package script

import (
	"regexp"
	"strings"
)

// Narrator 旁白的保留说话人名称
const Narrator = "narrator"

// Line 剧本中的一行对白
type Line struct {
	Position     int    `json:"position"`
	Speaker      string `json:"speaker"`
	Dialogue     string `json:"dialogue"`
	OriginalLine string `json:"original_line"`
}

// IsNarrator 是否为旁白
func (l Line) IsNarrator() bool {
	return l.Speaker == Narrator
}

// Matcher 单行匹配器，未命中时返回 false
type Matcher struct {
	Name  string
	Match func(line string) (Line, bool)
}

var (
	// 兼容直引号、弯引号、反引号；必须有撇号，"Im Park" 不算自我介绍
	selfIntroPattern = regexp.MustCompile("\\bI['’‘`]m\\s+([A-Z][a-z]+)")
	contraction      = regexp.MustCompile("\\bI['’‘`]m\\b")
	labelPattern     = regexp.MustCompile(`^([A-Z][a-z]+):`)
	reportedPattern  = regexp.MustCompile(`([A-Z][a-z]+)\s+(?:replied|said):`)
	reportedPrefix   = regexp.MustCompile(`^[^:]+:\s*`)
	directPattern    = regexp.MustCompile(`^([A-Z][a-z]+):\s*(.+)`)
)

// DefaultMatchers 按优先级排列的匹配器，先命中者胜出
var DefaultMatchers = []Matcher{
	{Name: "self_introduction", Match: matchSelfIntroduction},
	{Name: "reported_speech", Match: matchReportedSpeech},
	{Name: "direct_address", Match: matchDirectAddress},
	{Name: "narrator", Match: matchNarrator},
}

// matchSelfIntroduction "Hi, I'm John" 整行作为台词。
// 含 I'm 但后面不是名字时，"Sarah: I'm great" 仍按本规则保留整行，说话人取行首标签。
func matchSelfIntroduction(line string) (Line, bool) {
	if m := selfIntroPattern.FindStringSubmatch(line); m != nil {
		return Line{
			Speaker:      strings.ToLower(m[1]),
			Dialogue:     line,
			OriginalLine: line,
		}, true
	}
	if !contraction.MatchString(line) {
		return Line{}, false
	}
	m := labelPattern.FindStringSubmatch(line)
	if m == nil {
		return Line{}, false
	}
	return Line{
		Speaker:      strings.ToLower(m[1]),
		Dialogue:     line,
		OriginalLine: line,
	}, true
}

// matchReportedSpeech "Sarah replied: ..." / "John said: ..."
func matchReportedSpeech(line string) (Line, bool) {
	m := reportedPattern.FindStringSubmatch(line)
	if m == nil {
		return Line{}, false
	}
	return Line{
		Speaker:      strings.ToLower(m[1]),
		Dialogue:     strings.TrimSpace(reportedPrefix.ReplaceAllString(line, "")),
		OriginalLine: line,
	}, true
}

// matchDirectAddress "Sarah: ..."
func matchDirectAddress(line string) (Line, bool) {
	m := directPattern.FindStringSubmatch(line)
	if m == nil {
		return Line{}, false
	}
	return Line{
		Speaker:      strings.ToLower(m[1]),
		Dialogue:     strings.TrimSpace(m[2]),
		OriginalLine: line,
	}, true
}

func matchNarrator(line string) (Line, bool) {
	return Line{
		Speaker:      Narrator,
		Dialogue:     line,
		OriginalLine: line,
	}, true
}

// Parser 剧本解析器
type Parser struct {
	matchers []Matcher
}

// NewParser 创建解析器，未传入匹配器时使用默认顺序
func NewParser(matchers ...Matcher) *Parser {
	if len(matchers) == 0 {
		matchers = DefaultMatchers
	}
	return &Parser{matchers: matchers}
}

// Parse 将原始文本解析为有序的对白列表，空行被丢弃
func (p *Parser) Parse(text string) []Line {
	var lines []Line
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		parsed, ok := p.classify(line)
		if !ok {
			continue
		}
		parsed.Position = len(lines)
		lines = append(lines, parsed)
	}
	return lines
}

func (p *Parser) classify(line string) (Line, bool) {
	for _, m := range p.matchers {
		if parsed, ok := m.Match(line); ok {
			return parsed, true
		}
	}
	return Line{}, false
}

// Parse 使用默认匹配器解析
func Parse(text string) []Line {
	return NewParser().Parse(text)
}

// Speakers 按首次出现顺序返回去重后的说话人
func Speakers(lines []Line) []string {
	seen := make(map[string]bool)
	var speakers []string
	for _, l := range lines {
		if seen[l.Speaker] {
			continue
		}
		seen[l.Speaker] = true
		speakers = append(speakers, l.Speaker)
	}
	return speakers
}
