package models

// Metadata keys shared by all parser strategies.
const (
	MetaSourceURL = "source_url"
	MetaSourceID  = "source_id"

	// html statute strategy
	MetaParagraphNumber = "paragraph_number"
	MetaParagraphTitle  = "paragraph_title"

	// readability / markdown strategies
	MetaTitle        = "title"
	MetaSectionTitle = "section_title"
	MetaSectionLevel = "section_level"

	// only set when chunk indexing is enabled
	MetaChunkIndex = "chunk_index"
	MetaChunkCount = "chunk_count"
)

const (
	DefaultUserAgent = "UniRAGIngestor/1.0"
)
