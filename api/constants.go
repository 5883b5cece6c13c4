package api

// Metadata headers exposed to browser scripts alongside the compressed
// document stream.
const (
	HeaderOriginalSize        = "X-Original-Size"
	HeaderCompressedSize      = "X-Compressed-Size"
	HeaderReductionPercentage = "X-Reduction-Percentage"
	HeaderQualitySetting      = "X-Quality-Setting"
)

const (
	// DefaultQuality applies when neither quality nor level is supplied.
	DefaultQuality = 85

	// TimestampLayout names downloaded attachments.
	TimestampLayout = "20060102_150405"
)
