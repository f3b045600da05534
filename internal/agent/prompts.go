package agent

import "agentchat/internal/domain"

// defaultPrompts maps each agent type to its system prompt.
var defaultPrompts = map[domain.AgentType]string{
	domain.AgentResearch: "You are a research assistant specialized in finding, analyzing, " +
		"and synthesizing information from various sources. You excel at " +
		"web research, document analysis, and knowledge synthesis.",
	domain.AgentCoding: "You are a coding assistant specialized in writing, debugging, " +
		"and explaining code. You are proficient in multiple programming " +
		"languages and software engineering best practices.",
	domain.AgentDataAnalysis: "You are a data analysis specialist. You excel at statistical " +
		"analysis, data visualization, and deriving insights from data. " +
		"You can work with various data formats and analysis tools.",
	domain.AgentGeneral: "You are a helpful AI assistant with access to various tools. " +
		"Use the tools when appropriate to provide accurate and helpful " +
		"responses to user queries.",
}

// defaultPrompt returns the system prompt for an agent type, falling back
// to the general prompt for unknown types.
func defaultPrompt(t domain.AgentType) string {
	if prompt, ok := defaultPrompts[t]; ok {
		return prompt
	}
	return defaultPrompts[domain.AgentGeneral]
}
