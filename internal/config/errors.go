package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Session errors
	ErrLoginFailed     = "Login failed. Please try again."
	ErrRegisterFailed  = "Registration failed. Please try again."
	ErrSessionRequired = "Please log in to continue."

	// List errors
	ErrFetchPages     = "Failed to fetch pages. Please try again later."
	ErrFetchSections  = "Failed to fetch sections. Please try again later."
	ErrDeletePage     = "Failed to delete page. Please try again later."
	ErrDeleteSection  = "Failed to delete section. Please try again later."
	ErrReorderRefetch = "Could not save the new order; the list was reloaded."

	// Form errors
	ErrFetchPage     = "Failed to fetch page data. Please try again."
	ErrFetchSection  = "Failed to fetch section data. Please try again."
	ErrSavePage      = "Failed to save the page. Please try again."
	ErrSaveSection   = "Failed to save the section. Please try again."
	ErrDraftNotFound = "Edit session expired. Please reopen the editor."

	// Upload errors
	ErrNoFilesSelected = "No files selected for upload."
	ErrOnlyImages      = "Please upload only image files."
	ErrFileTooLarge    = "File exceeds the upload size limit."
	ErrUploadFailed    = "Failed to upload image. Please try again."
	ErrUploadNoURL     = "Invalid server response. Image URL is missing."

	ErrInternalServerError = "Internal server error"
)
