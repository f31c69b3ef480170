package dto

type CreateReportRequest struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	Reason      string `json:"reason"`
	Detail      string `json:"detail"`
}

type ActionReportRequest struct {
	Status    string `json:"status"`
	AdminNote string `json:"admin_note"`
}

type BlockUserRequest struct {
	BlockedID string `json:"blocked_id"`
}

type BlockedUserResponse struct {
	ID        string `json:"id"`
	BlockedID string `json:"blocked_id"`
	Nickname  string `json:"nickname"`
	CreatedAt string `json:"created_at"`
}
