package llm

import "os"

// Supported providers.
const (
	ProviderDeepSeek = "deepseek"
	ProviderQwen     = "qwen"
)

const (
	deepSeekBaseURL = "https://api.deepseek.com/v1"
	qwenBaseURL     = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// NewDeepSeek builds the DeepSeek backend, reading DEEPSEEK_API_KEY
// unless overridden.
func NewDeepSeek(opts ...ClientOption) Client {
	return newOpenAIClient(ProviderDeepSeek, deepSeekBaseURL, os.Getenv("DEEPSEEK_API_KEY"), opts...)
}

// NewQwen builds the DashScope/Qwen backend, reading DASHSCOPE_API_KEY
// unless overridden.
func NewQwen(opts ...ClientOption) Client {
	return newOpenAIClient(ProviderQwen, qwenBaseURL, os.Getenv("DASHSCOPE_API_KEY"), opts...)
}

// FallbackOf returns the other provider in the two-backend pair.
func FallbackOf(primary string) string {
	if primary == ProviderQwen {
		return ProviderDeepSeek
	}
	return ProviderQwen
}
