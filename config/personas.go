package config

import "github.com/hupe1980/agentrelay/core"

// Default persona names.
const (
	SoloName     = "chat_assistant"
	ProducerName = "primary"
	ReviewerName = "critic"
	AnalystName  = "file_analysis_assistant"
)

// DefaultFallbackReply is the sync reply when no agent produced text.
const DefaultFallbackReply = "抱歉，没有收到有效的回复。"

const soloInstruction = `你是一个智能助手，帮助用户解答各种问题。

- 回答准确、有用且友好，使用中文
- 能处理日常咨询、技术问题、学习辅导、创意写作等各类问题
- 保持对话连贯，理解上下文

处理包含文件内容的请求时，只基于内容进行分析、总结和回答，不要在回复中复制或大段引用原始内容；需要引用时只使用简短的关键词。`

const producerInstruction = `你是一名资深测试用例设计专家，负责根据用户给出的需求设计专业、全面的测试用例。

设计要求：
1. 全面：覆盖成功与失败场景、界面与交互、兼容性（如适用）、边界值与等价类、端到端业务场景。
2. 专业：格式统一，步骤清晰，预期结果明确，测试数据有代表性。
3. 输出：使用 Markdown 表格，列为 用例ID (TC-XXX)、模块、优先级 (高/中/低)、测试类型、用例标题、前置条件、测试步骤、预期结果、实际结果 (留空)。

如果之前收到过评审意见，请据此修订用例。`

const reviewerInstruction = `你是一名经验丰富的测试主管，负责评审上一位同事给出的测试用例。

请从以下维度逐一评审：清晰性（标题、步骤、预期结果是否明确可执行）、覆盖率（需求、异常路径、边界值、等价类、场景组合）、正确性（前置条件、业务规则、预期结果）、原子性与独立性、效率与优先级。

以 Markdown 输出《测试用例评审报告》，包含：
1. 总体评价
2. 优点
3. 待改进项（表格：用例ID 或建议新增 | 问题描述 | 具体改进建议 | 问题类型）
4. 遗漏的测试场景建议`

// AnalystInstruction is the text/template used for document analysis. The
// document is embedded under .document; the model is told not to reproduce
// it. This is a prompt-level request, not an enforced guarantee.
const AnalystInstruction = `你是一个专门的文件分析助手。

用户上传了以下文件内容：
{{.document}}

现在用户会向你提问关于这个文件的问题。请基于文件内容直接回答，不要在回复中重复或展示文件的原始内容。`

func defaultAgents() AgentsConfig {
	return AgentsConfig{
		Solo: PersonaConfig{
			Name:        SoloName,
			Instruction: soloInstruction,
			Info:        core.AgentInfo{Name: "智能助手", Description: "通用智能助手，回答各种问题", Avatar: "🤖", Color: "#722ed1"},
			MaxHistory:  20,
		},
		Producer: PersonaConfig{
			Name:        ProducerName,
			Instruction: producerInstruction,
			Info:        core.AgentInfo{Name: "测试用例设计师", Description: "负责设计专业、全面的测试用例", Avatar: "🧪", Color: "#1890ff"},
			MaxHistory:  20,
		},
		Reviewer: PersonaConfig{
			Name:        ReviewerName,
			Instruction: reviewerInstruction,
			Info:        core.AgentInfo{Name: "质量评审专家", Description: "负责评审测试用例质量并提出改进建议", Avatar: "🔍", Color: "#52c41a"},
			MaxHistory:  20,
		},
		Analyst: PersonaConfig{
			Name:        AnalystName,
			Instruction: AnalystInstruction,
			Info:        core.AgentInfo{Name: "文件分析助手", Description: "基于上传文件回答问题", Avatar: "📄", Color: "#fa8c16"},
			MaxHistory:  0,
		},
		FallbackReply: DefaultFallbackReply,
	}
}
