package models

// QuickPrompt is a canned example question the chat page offers as a shortcut.
type QuickPrompt struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

var quickPrompts = []QuickPrompt{
	{
		ID:          "symptoms",
		Title:       "Symptom Checker",
		Description: "Describe your symptoms for general information",
		Prompt:      "I have been experiencing headaches and fatigue. What could this mean?",
	},
	{
		ID:          "medications",
		Title:       "Drug Information",
		Description: "Get information about medications",
		Prompt:      "Can you tell me about ibuprofen dosage and side effects?",
	},
	{
		ID:          "conditions",
		Title:       "Disease Q&A",
		Description: "Learn about medical conditions",
		Prompt:      "What is diabetes and how can it be managed?",
	},
	{
		ID:          "wellness",
		Title:       "Health Tips",
		Description: "Get wellness and lifestyle advice",
		Prompt:      "What are some tips for maintaining good heart health?",
	},
}

// QuickPrompts returns a copy of the shortcut catalogue.
func QuickPrompts() []QuickPrompt {
	out := make([]QuickPrompt, len(quickPrompts))
	copy(out, quickPrompts)
	return out
}
