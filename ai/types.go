package ai

// Provider kinds accepted by Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// ProviderKinds lists the valid values of Config.Provider.
var ProviderKinds = []string{
	ProviderGemini,
	ProviderMock,
	ProviderOpenAI,
}
