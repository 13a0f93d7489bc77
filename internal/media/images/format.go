package images

// Format is a supported upload format.
type Format struct {
	ContentType string
	Ext         string
}

// Supported formats, detected by magic bytes.
var (
	FormatJPEG = Format{ContentType: "image/jpeg", Ext: "jpg"}
	FormatPNG  = Format{ContentType: "image/png", Ext: "png"}
	FormatGIF  = Format{ContentType: "image/gif", Ext: "gif"}
	FormatWebP = Format{ContentType: "image/webp", Ext: "webp"}
)

// DetectFormat sniffs the image format from the leading bytes. The zero
// Format is returned for anything else, including PDFs.
func DetectFormat(data []byte) (Format, bool) {
	if len(data) < 12 {
		return Format{}, false
	}
	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG, true
	case data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G':
		return FormatPNG, true
	case data[0] == 'G' && data[1] == 'I' && data[2] == 'F':
		return FormatGIF, true
	case string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWebP, true
	}
	return Format{}, false
}

// ContentTypeForExt maps a stored file extension back to its content type.
func ContentTypeForExt(ext string) string {
	for _, f := range []Format{FormatJPEG, FormatPNG, FormatGIF, FormatWebP} {
		if f.Ext == ext {
			return f.ContentType
		}
	}
	return "application/octet-stream"
}
