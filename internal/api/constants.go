package api

// API limits and constants.
const (
	// MaxUploadSize is the default page upload limit (20 MB).
	MaxUploadSize = 20 << 20
)

// CacheOneWeek is the Cache-Control value for immutable uploaded files.
const CacheOneWeek = "public, max-age=604800, immutable"
