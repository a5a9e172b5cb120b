package anthropic

// BuildCachedSystemBlocks returns the static instructions as one cached block
// followed by an uncached block for per-request context. The taxonomy prompt
// is identical across leads, so every call after the first reads it from cache.
func BuildCachedSystemBlocks(static, dynamic string) []SystemBlock {
	blocks := []SystemBlock{{
		Text:         static,
		CacheControl: &CacheControl{TTL: "5m"},
	}}
	if dynamic != "" {
		blocks = append(blocks, SystemBlock{Text: dynamic})
	}
	return blocks
}
