package assets

// Logical asset names resolved by a Provider.
const (
	AssetMap   = "map"
	AssetEvent = "event"
)

// Provider resolves logical asset names to image bytes. A failed lookup is
// non-fatal to the chat; the controller renders a text fallback.
type Provider interface {
	Name() string

	Load(logical string) ([]byte, error)
}
