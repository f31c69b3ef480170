package dto

// IdentityResponse is the identity snapshot the UI consumes. It never carries
// the raw account id or email outward; content attribution is by anon id only.
type IdentityResponse struct {
	State       string `json:"state"`
	AnonID      string `json:"anon_id"`
	Nickname    string `json:"nickname,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
	TermsAgreed bool   `json:"terms_agreed"`
	Loading     bool   `json:"loading"`
	CanWrite    bool   `json:"can_write"`
}

type SetNicknameRequest struct {
	Nickname string `json:"nickname"`
}

type AdminUserResponse struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	IsAdmin   bool   `json:"is_admin"`
	Withdrawn bool   `json:"withdrawn"`
	UpdatedAt string `json:"updated_at"`
}

type ToggleAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}
