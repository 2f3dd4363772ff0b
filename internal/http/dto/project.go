package dto

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type RegisterRepositoryRequest struct {
	URL    string `json:"url" binding:"required"`
	Branch string `json:"branch"`
}
