package logfile

// Format version written into every log preamble.
const (
	// FormatVersion is the version produced by Writer.
	FormatVersion uint16 = 1

	// MinCompatibleFormatVersion is the oldest version Reader accepts.
	MinCompatibleFormatVersion uint16 = 1
)
