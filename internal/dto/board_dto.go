package dto

type CreatePostRequest struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	ImageURLs []string `json:"image_urls"`
}

type UpdatePostRequest struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	ImageURLs []string `json:"image_urls"`
}

type CreateCommentRequest struct {
	Content  string `json:"content"`
	ParentID *int64 `json:"parent_id"`
}

type ReactRequest struct {
	Reaction string `json:"reaction"`
}

type CategoryRequest struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	SortOrder int    `json:"sort_order"`
}

type PresignUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type PresignUploadResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
}
