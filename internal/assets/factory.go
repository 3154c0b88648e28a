package assets

import (
	"fmt"

	"festival-bot/internal/assets/fs"
	"festival-bot/internal/config"
)

func NewProvider(cfg config.Config) (Provider, error) {
	switch cfg.AssetProvider {
	case "fs":
		return fs.New(map[string]string{
			AssetMap:   cfg.MapImagePath,
			AssetEvent: cfg.EventImagePath,
		}), nil
	default:
		return nil, fmt.Errorf("unknown asset provider: %s", cfg.AssetProvider)
	}
}
