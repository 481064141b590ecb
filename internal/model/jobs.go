package model

// TranscriptJob carries one completed question/answer exchange to the
// message worker.
type TranscriptJob struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TitleJob asks the title worker to name a chat from its first document.
type TitleJob struct {
	ChatID string `json:"chat_id"`
}
