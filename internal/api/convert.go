package api

import (
	"net/url"

	"beatshop/internal/catalog"
	"beatshop/internal/deps"
	"beatshop/internal/preflight"
	"beatshop/internal/storage"
)

// FromAssetRef converts a storage ref into its API form.
func FromAssetRef(ref storage.AssetRef) Beat {
	base := "/api/categories/" + url.PathEscape(ref.Category) + "/beats/" + url.PathEscape(ref.Name)
	beat := Beat{
		Category:    ref.Category,
		Name:        ref.Name,
		SizeBytes:   ref.Size,
		ContentType: ref.ContentType,
		DownloadURL: base,
		PreviewURL:  base + "/preview",
	}
	if !ref.CreatedAt.IsZero() {
		beat.CreatedAt = ref.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return beat
}

// FromAssetRefs converts refs, never returning nil.
func FromAssetRefs(refs []storage.AssetRef) []Beat {
	out := make([]Beat, 0, len(refs))
	for _, ref := range refs {
		out = append(out, FromAssetRef(ref))
	}
	return out
}

// FromSummaries converts catalog summaries.
func FromSummaries(summaries []catalog.Summary) []Category {
	out := make([]Category, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, Category{Name: s.Name, Label: s.Label, Beats: s.Beats})
	}
	return out
}

// FromDependencyStatuses converts dependency probe results.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}
