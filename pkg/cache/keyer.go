package cache

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey identifies the positions computed for a graph.
	LayoutKey(graphHash string, opts LayoutKeyOpts) string
	// ArtifactKey identifies one rendered output of a positioned graph.
	ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string
}

// LayoutKeyOpts holds everything besides the graph that changes a layout.
type LayoutKeyOpts struct {
	Seed    uint64            `json:"seed"`
	Options any               `json:"options,omitempty"` // effective engine options
	Hints   map[string]string `json:"hints,omitempty"`
}

// ArtifactKeyOpts holds everything besides the positions that changes a
// rendered artifact.
type ArtifactKeyOpts struct {
	Format   string  `json:"format"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Selected string  `json:"selected,omitempty"`
}

// DefaultKeyer hashes the key inputs into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// LayoutKey implements Keyer.
func (DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", graphHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact:"+opts.Format, layoutHash, opts)
}

// ScopedKeyer prefixes every key of an inner keyer. The server uses it to
// keep entries of different graph services apart in one shared backend.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// LayoutKey implements Keyer.
func (k *ScopedKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(graphHash, opts)
}

// ArtifactKey implements Keyer.
func (k *ScopedKeyer) ArtifactKey(layoutHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(layoutHash, opts)
}
