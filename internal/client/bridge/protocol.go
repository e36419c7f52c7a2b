package bridge

// Frames from the extension.
const (
	TypeTabUpdated    = "tab_updated"
	TypeExtractResult = "extract_result"
	TypeIncludeImage  = "include_image"
)

// Frames to the extension.
const (
	TypeExtract = "extract"
)

type BaseMessage struct {
	Type string `json:"type"`
}

// TabUpdatedMessage reports a finished navigation of the active tab.
type TabUpdatedMessage struct {
	BaseMessage
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

// ExtractMessage asks the content script of a tab for its text.
type ExtractMessage struct {
	BaseMessage
	RequestID string `json:"requestId"`
	TabID     int    `json:"tabId"`
}

// ExtractResultMessage answers an ExtractMessage.
type ExtractResultMessage struct {
	BaseMessage
	RequestID string `json:"requestId"`
	Text      string `json:"text"`
	Error     string `json:"error,omitempty"`
}

// IncludeImageMessage carries the context-menu "include image" action.
type IncludeImageMessage struct {
	BaseMessage
	ImageURL string `json:"imageUrl"`
}
