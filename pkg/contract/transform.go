package contract

import "context"

// Raw: 外部通道返回的原始文本载荷（万能容器）。
// 约束：原样返回，不做清洗/截断/归一化；格式无任何保证。
type Raw struct {
	Text string
}

// Prompt: 不透明载荷，由具体 PromptBuilder/Transformer 配对解释。
type Prompt any

// Message: 最小会话消息形状（可用于 ChatPrompt）。
type Message struct {
	Role    string
	Content string
}

// TextPrompt: 文本型提示词载荷。
type TextPrompt string

// ChatPrompt: 会话型提示词载荷（最小集合）。
type ChatPrompt []Message

// Transformer: 外部文本生成通道。
// 约束：单次调用、同步返回；应尊重 ctx 取消/超时并及时释放资源；
// 可用性与输出格式均不可信（超时/格式错误由上层重试与恢复级联处理）。
type Transformer interface {
	Invoke(ctx context.Context, p Prompt) (Raw, error)
}

// PromptBuilder: 基于已编码的块载荷构造确定性 Prompt。
// 约束：
//   - 纯计算，不做 I/O；
//   - 不改动 payload 内容；
//   - excluded 中的路径须以"禁止改动"指令形式传达给通道。
type PromptBuilder interface {
	Build(ctx context.Context, payload string, target string, excluded ExclusionSet) (Prompt, error)
}
