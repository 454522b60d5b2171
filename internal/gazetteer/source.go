package gazetteer

import "context"

// Source supplies the names a DictionarySplitter matches against. Cities are
// listed per prefecture and towns per city. Unknown keys return an empty list.
type Source interface {
	Prefectures(ctx context.Context) ([]string, error)
	Cities(ctx context.Context, pref string) ([]string, error)
	Towns(ctx context.Context, pref, city string) ([]string, error)
}
