package models

// RawRecord is one semantic unit extracted from a source document,
// e.g. one statute paragraph.
type RawRecord struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Chunk is a bounded slice of a RawRecord's content. It carries a copy of
// the source record's metadata.
type Chunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// EmbeddedChunk pairs a chunk with the vector produced for it.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"-"`
}

// PersistedRow is the tuple written to storage.
type PersistedRow struct {
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// CopyMetadata returns an independent copy of m. A nil map yields an empty one.
func CopyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
