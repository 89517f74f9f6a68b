package intent

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Phrases holds the four phrase lists of the two-stage classifier. Matching
// is case-insensitive substring matching.
//
//	triggers:    [...]  # stage 1, no match routes solo
//	exclusions:  [...]  # stage 2, any match routes solo
//	actions:     [...]  # stage 2, needed together with a subject
//	subjects:    [...]
type Phrases struct {
	Triggers   []string `yaml:"triggers" json:"triggers"`
	Exclusions []string `yaml:"exclusions" json:"exclusions"`
	Actions    []string `yaml:"actions" json:"actions"`
	Subjects   []string `yaml:"subjects" json:"subjects"`
}

// Normalize lower-cases and trims every phrase and drops empty entries and
// duplicates.
func (p Phrases) Normalize() Phrases {
	return Phrases{
		Triggers:   normalizeList(p.Triggers),
		Exclusions: normalizeList(p.Exclusions),
		Actions:    normalizeList(p.Actions),
		Subjects:   normalizeList(p.Subjects),
	}
}

// Empty reports whether no trigger phrase is configured, in which case every
// message routes solo.
func (p Phrases) Empty() bool { return len(p.Triggers) == 0 }

func normalizeList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ParsePhrases decodes phrase lists from YAML. Unknown fields and files
// without trigger phrases are rejected.
func ParsePhrases(data []byte) (Phrases, error) {
	var p Phrases
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Phrases{}, fmt.Errorf("decode phrases: %w", err)
	}
	if len(normalizeList(p.Triggers)) == 0 {
		return Phrases{}, fmt.Errorf("decode phrases: no trigger phrases")
	}
	return p.Normalize(), nil
}

// LoadPhrases reads phrase lists from a YAML file.
func LoadPhrases(path string) (Phrases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Phrases{}, fmt.Errorf("read phrases %s: %w", path, err)
	}
	p, err := ParsePhrases(data)
	if err != nil {
		return Phrases{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// DefaultPhrases returns the phrase lists of the test-case-design
// deployment: messages asking to design, write or plan test cases go to the
// producer/reviewer pipeline, everything else (including document analysis
// and recruiting questions that merely mention testing) stays solo.
func DefaultPhrases() Phrases {
	return Phrases{
		Triggers: []string{
			"设计测试用例", "编写测试用例", "写测试用例", "制定测试用例", "创建测试用例", "生成测试用例",
			"测试用例设计", "测试用例编写", "测试用例", "用例设计", "用例编写", "用例制定", "用例创建",
			"测试计划", "测试方案", "测试策略", "制定测试计划", "设计测试方案",
			"测试", "用例",
			"test case", "test plan", "testing",
			"design test", "write test", "create test",
		},
		Exclusions: []string{
			"简历", "resume", "cv", "工作经历", "项目经验", "面试", "求职", "招聘", "职位", "岗位", "人才", "候选人",
			"分析这个文档", "总结这个文件", "评价这个材料", "这个文档说了什么",
			"文档内容", "文件内容", "材料内容",
		},
		Actions: []string{
			"设计", "编写", "写", "制定", "创建", "生成", "帮我", "请", "如何",
			"design", "write", "create", "generate", "help", "how to",
		},
		Subjects: []string{
			"测试用例", "测试计划", "测试方案", "用例", "测试",
			"test case", "test plan", "testing", "test",
		},
	}.Normalize()
}
