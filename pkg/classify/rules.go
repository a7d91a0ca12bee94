package classify

// Options configures the default routing table.
type Options struct {
	// APIPrefix is the backend API mount point
	APIPrefix string

	// DataServiceHost is matched as a substring of the request host
	DataServiceHost string

	// AssetDirs are path prefixes of static asset directories
	AssetDirs []string

	// AssetExtensions are treated as static assets wherever they live
	AssetExtensions []string
}

// DefaultOptions returns the routing options of the community site.
func DefaultOptions() Options {
	return Options{
		APIPrefix:       "/api/",
		DataServiceHost: "supabase",
		AssetDirs:       []string{"/assets/", "/lovable-uploads/"},
		AssetExtensions: []string{".js", ".css", ".png", ".jpg", ".jpeg", ".svg", ".gif", ".webp", ".ico"},
	}
}

// DefaultRules builds the routing table. API rules come first so that data
// service calls ending in an asset-like extension are never served cache-first.
func DefaultRules(opts Options) []Rule {
	if len(opts.AssetExtensions) == 0 {
		opts.AssetExtensions = DefaultOptions().AssetExtensions
	}
	return []Rule{
		{Name: "api-prefix", Match: PathPrefix(opts.APIPrefix), Class: ClassAPIData},
		{Name: "data-service-host", Match: HostContains(opts.DataServiceHost), Class: ClassAPIData},
		{Name: "asset-dir", Match: PathPrefix(opts.AssetDirs...), Class: ClassStaticAsset},
		{Name: "asset-extension", Match: Extension(opts.AssetExtensions...), Class: ClassStaticAsset},
	}
}

// NewDefault creates a classifier with DefaultRules.
func NewDefault(opts Options) *Classifier {
	return New(DefaultRules(opts)...)
}
