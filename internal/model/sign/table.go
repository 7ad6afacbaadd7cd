package sign

import "strings"

// Table is the immutable phrase-to-asset lookup used by the avatar.
type Table struct {
	assets map[string]string
	order  []string
}

// NewTable builds a Table from items. Keys are normalized; blank keys or refs
// are skipped and later duplicates win. A default entry is always present.
func NewTable(items []Asset) *Table {
	t := &Table{assets: make(map[string]string, len(items)+1)}
	for _, item := range items {
		key := Normalize(item.Key)
		ref := strings.TrimSpace(item.AssetRef)
		if key == "" || ref == "" {
			continue
		}
		if _, seen := t.assets[key]; !seen {
			t.order = append(t.order, key)
		}
		t.assets[key] = ref
	}

	if _, ok := t.assets[DefaultKey]; !ok {
		t.assets[DefaultKey] = IdleAsset
		t.order = append(t.order, DefaultKey)
	}
	return t
}

// Normalize case-folds and trims a phrase.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Default returns the idle asset.
func (t *Table) Default() string {
	return t.assets[DefaultKey]
}

// Lookup reports the asset for an exact normalized match.
func (t *Table) Lookup(text string) (string, bool) {
	key := Normalize(text)
	if key == "" {
		return "", false
	}
	ref, ok := t.assets[key]
	return ref, ok
}

// Resolve returns the asset for text, or the default asset on a miss.
// Matching is exact after normalization; there is no fuzzy matching.
func (t *Table) Resolve(text string) string {
	return t.ResolveFor(text, false)
}

// ResolveFor is Resolve with the caller's processing flag: while processing
// the default asset is returned regardless of text.
func (t *Table) ResolveFor(text string, processing bool) string {
	if processing {
		return t.Default()
	}
	if ref, ok := t.Lookup(text); ok {
		return ref
	}
	return t.Default()
}

// List returns the table entries in insertion order.
func (t *Table) List() []Asset {
	items := make([]Asset, 0, len(t.order))
	for _, key := range t.order {
		items = append(items, Asset{Key: key, AssetRef: t.assets[key]})
	}
	return items
}
