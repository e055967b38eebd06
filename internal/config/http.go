package config

const (
	HCType         = "Content-Type"
	HETag          = "ETag"
	HCacheControl  = "Cache-Control"
	HAccept        = "Accept"
	HAuthorization = "Authorization"

	HHxRequest  = "Hx-Request"
	HHxRedirect = "Hx-Redirect"
	HHxTrigger  = "Hx-Trigger"

	CTypeCSS  = "text/css"
	CTypeHTML = "text/html"
	CTypeJSON = "application/json"
)

const (
	CookieTheme       = "theme"
	CookieSyntaxTheme = "syntax-theme"
)

const (
	EnvConfigPath   = "CMS_CONFIG"
	EnvAPIURL       = "CMS_API_URL"
	EnvSessionDB    = "CMS_SESSION_DB"
	EnvLogLevel     = "CMS_LOG_LEVEL"
	EnvServerPort   = "CMS_PORT"
	EnvUploadTarget = "CMS_UPLOAD_TARGET"
	EnvS3Bucket     = "CMS_S3_BUCKET"
	EnvS3Endpoint   = "CMS_S3_ENDPOINT"
	EnvS3PublicURL  = "CMS_S3_PUBLIC_URL"
	EnvS3AccessKey  = "CMS_S3_ACCESS_KEY_ID"
	EnvS3SecretKey  = "CMS_S3_SECRET_ACCESS_KEY"
)

const (
	LightTheme string = "light-theme"
	DarkTheme  string = "dark-theme"

	LightThemeIcon string = `<i class="fas fa-sun"></i>`
	DarkThemeIcon  string = `<i class="fas fa-moon"></i>`
)
